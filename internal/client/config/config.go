package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MOODKEEPER"

// Remote backends.
const (
	RemoteGRPC = "grpc"
	RemoteS3   = "s3"
	RemoteNone = "none"
)

// Keys as they appear in config files.
const (
	KeyServerAddr          = "server_addr"
	KeyAccessToken         = "access_token"
	KeyUserID              = "user_id"
	KeyDatabasePath        = "db_path"
	KeyRemote              = "remote"
	KeyRemoteTimeout       = "remote_timeout"
	KeyOnlineCheckInterval = "online_check_interval"
	KeySyncInterval        = "sync_interval"
	KeyTimeZone            = "time_zone"

	KeyS3Endpoint     = "s3.endpoint"
	KeyS3Region       = "s3.region"
	KeyS3Bucket       = "s3.bucket"
	KeyS3AccessKey    = "s3.access_key"
	KeyS3SecretKey    = "s3.secret_key"
	KeyS3UsePathStyle = "s3.use_path_style"

	KeyLogFile       = "log.file"
	KeyLogLevel      = "log.level"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAgeDays = "log.max_age_days"
)

type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Config holds runtime settings for the moodkeeper CLI.
type Config struct {
	ServerAddr   string `mapstructure:"server_addr"`
	AccessToken  string `mapstructure:"access_token"`
	UserID       string `mapstructure:"user_id"`
	DatabasePath string `mapstructure:"db_path"`

	// Remote is one of RemoteGRPC, RemoteS3 or RemoteNone.
	Remote string `mapstructure:"remote"`

	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval"`
	SyncInterval        time.Duration `mapstructure:"sync_interval"`

	// TimeZone decides calendar days for streaks. Empty means local time.
	TimeZone string `mapstructure:"time_zone"`

	S3  S3Config  `mapstructure:"s3"`
	Log LogConfig `mapstructure:"log"`
}

// Defaults registers the built-in value of every key.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyServerAddr, "127.0.0.1:50051")
	v.SetDefault(KeyAccessToken, "")
	v.SetDefault(KeyUserID, "")
	v.SetDefault(KeyDatabasePath, "moodkeeper.db")
	v.SetDefault(KeyRemote, RemoteGRPC)
	v.SetDefault(KeyRemoteTimeout, 10*time.Second)
	v.SetDefault(KeyOnlineCheckInterval, 30*time.Second)
	v.SetDefault(KeySyncInterval, 5*time.Minute)
	v.SetDefault(KeyTimeZone, "")

	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")
	v.SetDefault(KeyS3UsePathStyle, true)

	v.SetDefault(KeyLogFile, "moodkeeper.log")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)
}

// Load reads configFile (if not empty) and the environment into v and
// decodes the result. Defaults and flags must already be registered on v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Remote = strings.ToLower(strings.TrimSpace(cfg.Remote))
	return &cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, errors.New("user id is required (--user or MOODKEEPER_USER_ID)"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	switch c.Remote {
	case RemoteGRPC:
		if c.ServerAddr == "" {
			errs = append(errs, errors.New("server address is required for the grpc remote"))
		}
	case RemoteS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 remote"))
		}
	case RemoteNone:
	default:
		errs = append(errs, fmt.Errorf("unknown remote %q: must be one of %s, %s, %s", c.Remote, RemoteGRPC, RemoteS3, RemoteNone))
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("remote timeout must be positive"))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, errors.New("online check interval must be positive"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync interval must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves TimeZone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
