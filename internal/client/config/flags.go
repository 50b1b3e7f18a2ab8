package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagConfig is the name of the flag selecting a config file. It is not
// bound to a key.
const FlagConfig = "config"

var flagKeys = map[string]string{
	"server":          KeyServerAddr,
	"token":           KeyAccessToken,
	"user":            KeyUserID,
	"db":              KeyDatabasePath,
	"remote":          KeyRemote,
	"remote-timeout":  KeyRemoteTimeout,
	"online-interval": KeyOnlineCheckInterval,
	"sync-interval":   KeySyncInterval,
	"tz":              KeyTimeZone,
	"log-file":        KeyLogFile,
	"log-level":       KeyLogLevel,
}

// BindFlags registers the persistent flags of the CLI on fs and binds them
// to their keys in v. Flag defaults are left empty so that an unset flag
// does not hide file or environment values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String(FlagConfig, "", "config file (json, yaml or toml)")

	fs.StringP("server", "a", "", "address:port of the remote store server")
	fs.String("token", "", "access token for the remote store")
	fs.StringP("user", "u", "", "user id")
	fs.String("db", "", "path to the local database")
	fs.String("remote", "", "remote backend: grpc, s3 or none")
	fs.Duration("remote-timeout", 0, "timeout of a single remote call")
	fs.Duration("online-interval", 0, "connectivity check interval")
	fs.Duration("sync-interval", 0, "sync interval of the watch command")
	fs.String("tz", "", "time zone for calendar days, e.g. Europe/Riga")
	fs.String("log-file", "", "log file path")
	fs.String("log-level", "", "log level: debug, info, warn or error")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
