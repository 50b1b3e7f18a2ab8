// Package server wires the remote store: Postgres storage, schema
// migrations and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/server/auth"
	"github.com/dmitrijs2005/moodkeeper/internal/server/config"
	"github.com/dmitrijs2005/moodkeeper/internal/server/documents"
	"github.com/dmitrijs2005/moodkeeper/internal/server/migrations"

	gs "github.com/dmitrijs2005/moodkeeper/internal/server/grpc"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	runMigrations = migrations.Up
	newLogger     = func() logging.Logger { return logging.NewJSONLogger(slog.LevelInfo) }
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds the gRPC server.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := newLogger()

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	ds := documents.NewService(db, logger)
	s := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, ds, c.SecretKey)

	return &App{config: c, logger: logger, db: db, server: s}, nil
}

// Run serves until ctx is done or the process gets SIGINT, SIGTERM or
// SIGQUIT, then closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
	}

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "db close error", "error", cerr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}

// IssueToken writes a signed access token for c.IssueTokenFor to w.
func IssueToken(w io.Writer, c *config.Config) error {
	token, err := auth.GenerateToken(c.IssueTokenFor, []byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
