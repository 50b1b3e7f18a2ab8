// Package localdb opens the on-device SQLite database and brings its schema
// up to date.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/moodkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/moodkeeper/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// MemoryDSN is a private in-memory database; handy for tests and dry runs.
const MemoryDSN = ":memory:"

// Open opens the database at path, applies connection pragmas and runs the
// embedded migrations. The caller owns the returned handle.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryDSN {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if path == MemoryDSN {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// dsn applies the pragmas to every pooled connection, not just the first.
func dsn(path string) string {
	pragmas := []string{"busy_timeout(5000)", "foreign_keys(1)"}
	if path != MemoryDSN {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Migrate applies all pending embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
