package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/analytics"
	"github.com/dmitrijs2005/moodkeeper/internal/client/config"
	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/kinds"
	"github.com/dmitrijs2005/moodkeeper/internal/client/localdb"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote/grpcstore"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote/s3store"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/streaks"
	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// Construction seams, replaced in tests.
var (
	openDatabase = localdb.Open
	openBackend  = defaultBackend
	newLogger    = defaultLogger
	clock        = time.Now
)

func defaultBackend(ctx context.Context, c *config.Config) (remote.Backend, error) {
	switch c.Remote {
	case config.RemoteGRPC:
		return grpcstore.Dial(c.ServerAddr, c.AccessToken)
	case config.RemoteS3:
		return s3store.New(ctx, s3store.Options{
			Endpoint:     c.S3.Endpoint,
			Region:       c.S3.Region,
			Bucket:       c.S3.Bucket,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
			UsePathStyle: c.S3.UsePathStyle,
		})
	default:
		return remote.Disabled{}, nil
	}
}

func defaultLogger(c *config.Config) (logging.Logger, io.Closer, error) {
	if c.Log.File == "" {
		return logging.NewNop(), nil, nil
	}
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	l, closer := logging.NewFileLogger(logging.FileOptions{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Level:      level,
	})
	return l, closer, nil
}

// App is one CLI session: the local database, the remote backend and the
// services built on them.
type App struct {
	cfg    *config.Config
	userID string
	loc    *time.Location
	out    io.Writer
	format string
	now    func() time.Time

	db      *sql.DB
	backend remote.Backend
	monitor *connectivity.Monitor
	logger  logging.Logger
	closers []io.Closer

	diaryRepo entries.Repository[models.DiaryEntry]
	moodRepo  entries.Repository[models.MoodEntry]

	entries *services.EntryService
	sync    *services.Orchestrator
	streaks *analytics.StreakTracker
	crisis  *analytics.CrisisMonitor

	mu   sync.Mutex
	mode Mode
}

func NewApp(ctx context.Context, c *config.Config, out io.Writer) (a *App, err error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	a = &App{cfg: c, userID: c.UserID, loc: loc, out: out, format: FormatText, now: clock}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logger, closer, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger.With("user_id", c.UserID)

	if a.db, err = openDatabase(ctx, c.DatabasePath); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db)

	if a.backend, err = openBackend(ctx, c); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.backend)

	var online connectivity.Checker = connectivity.Static(false)
	a.mode = ModeDisabled
	if c.Remote != config.RemoteNone {
		a.monitor = connectivity.NewMonitor(a.backend, c.OnlineCheckInterval, connectivity.DefaultTimeout, a.logger)
		online = a.monitor
		a.mode = ModeOffline
	}

	opts := []services.Option{services.WithTimeout(c.RemoteTimeout), services.WithClock(a.now)}
	a.diaryRepo = entries.NewDiaryRepository(a.db)
	a.moodRepo = entries.NewMoodRepository(a.db)
	meta := metadata.NewSQLiteRepository(a.db)

	a.streaks = analytics.NewStreakTracker(streaks.NewSQLiteRepository(a.db), a.now)
	a.crisis = analytics.NewCrisisMonitor(a.diaryRepo, a.moodRepo, meta, a.now)
	a.entries = services.NewEntryService(services.EntryDeps{
		Diary:    services.NewReconciler(kinds.Diary, a.diaryRepo, a.backend, a.logger, opts...),
		Moods:    services.NewReconciler(kinds.Mood, a.moodRepo, a.backend, a.logger, opts...),
		Activity: services.NewReconciler(kinds.Activity, entries.NewActivityRepository(a.db), a.backend, a.logger, opts...),
		Streaks:  a.streaks,
		Metadata: meta,
		Online:   online,
		Logger:   a.logger,
		Location: loc,
		Now:      a.now,
	})
	a.sync = services.NewOrchestrator(online, meta, a.logger, a.entries.Syncers()...)

	a.refreshOnline(ctx)
	return a, nil
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		a.logger.Info(ctx, "switched mode", "mode", string(mode))
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// refreshOnline probes the remote right away instead of waiting for the
// next poll.
func (a *App) refreshOnline(ctx context.Context) {
	if a.monitor == nil {
		return
	}
	if a.monitor.Check(ctx) {
		a.setMode(ctx, ModeOnline)
	} else {
		a.setMode(ctx, ModeOffline)
	}
}

// Status is shown in the REPL prompt.
func (a *App) Status() string {
	return fmt.Sprintf("(%s %s)", a.userID, a.Mode())
}
