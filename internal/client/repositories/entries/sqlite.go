package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

// Schema maps one entry kind onto its table.
type Schema[E any] struct {
	Table string

	// Columns are the payload columns in the order Values and Targets use.
	Columns []string

	Header  func(*E) *models.Header
	Values  func(*E) []any
	Targets func(*E) []any
}

var headerColumns = []string{"local_id", "user_id", "timestamp_ms", "remote_id", "sync_state", "updated_at"}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository[E any] struct {
	db     dbx.DBTX
	schema Schema[E]

	selectSQL string
	upsertSQL string
}

// NewSQLiteRepository returns a repository for the kind described by schema.
func NewSQLiteRepository[E any](db dbx.DBTX, schema Schema[E]) *SQLiteRepository[E] {
	r := &SQLiteRepository[E]{db: db, schema: schema}

	cols := append(append([]string{}, headerColumns...), schema.Columns...)
	r.selectSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), schema.Table)

	updates := []string{
		"user_id = excluded.user_id",
		"timestamp_ms = excluded.timestamp_ms",
		fmt.Sprintf("remote_id = COALESCE(%s.remote_id, excluded.remote_id)", schema.Table),
		"sync_state = excluded.sync_state",
		"updated_at = excluded.updated_at",
	}
	for _, c := range schema.Columns {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	r.upsertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(local_id) DO UPDATE SET %s",
		schema.Table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
	)

	return r
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

func (r *SQLiteRepository[E]) Upsert(ctx context.Context, e *E) error {
	h := r.schema.Header(e)
	if h.LocalID == "" {
		return storageErr("upsert "+r.schema.Table, errors.New("local id is empty"))
	}

	args := []any{h.LocalID, h.UserID, h.Timestamp, nullString(h.RemoteID), string(h.SyncState), h.UpdatedAt}
	args = append(args, r.schema.Values(e)...)

	if _, err := r.db.ExecContext(ctx, r.upsertSQL, args...); err != nil {
		return storageErr("upsert "+r.schema.Table, err)
	}

	// the stored remote id wins over whatever the caller carried
	var stored sql.NullString
	row := r.db.QueryRowContext(ctx, "SELECT remote_id FROM "+r.schema.Table+" WHERE local_id = ?", h.LocalID)
	if err := row.Scan(&stored); err != nil {
		return storageErr("upsert "+r.schema.Table, err)
	}
	h.RemoteID = stored.String
	return nil
}

func (r *SQLiteRepository[E]) Get(ctx context.Context, localID string) (*E, error) {
	items, err := r.query(ctx, "get", " WHERE local_id = ?", localID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *SQLiteRepository[E]) GetAll(ctx context.Context, userID string) ([]E, error) {
	return r.query(ctx, "get all", " WHERE user_id = ? ORDER BY timestamp_ms DESC, local_id", userID)
}

func (r *SQLiteRepository[E]) GetPending(ctx context.Context, userID string) ([]E, error) {
	return r.query(ctx, "get pending", " WHERE user_id = ? AND sync_state = ? ORDER BY timestamp_ms, local_id",
		userID, string(models.SyncPending))
}

func (r *SQLiteRepository[E]) GetUnlinked(ctx context.Context, userID string) ([]E, error) {
	return r.query(ctx, "get unlinked", " WHERE user_id = ? AND remote_id IS NULL ORDER BY timestamp_ms, local_id", userID)
}

func (r *SQLiteRepository[E]) GetByRemoteID(ctx context.Context, remoteID string) (*E, error) {
	if remoteID == "" {
		return nil, nil
	}
	items, err := r.query(ctx, "get by remote id", " WHERE remote_id = ?", remoteID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *SQLiteRepository[E]) Delete(ctx context.Context, localIDs ...string) (int64, error) {
	if len(localIDs) == 0 {
		return 0, nil
	}
	args := make([]any, len(localIDs))
	for i, id := range localIDs {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE local_id IN (%s)",
		r.schema.Table, strings.TrimSuffix(strings.Repeat("?, ", len(localIDs)), ", "))
	return r.exec(ctx, "delete", query, args...)
}

func (r *SQLiteRepository[E]) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, "delete by user", "DELETE FROM "+r.schema.Table+" WHERE user_id = ?", userID)
}

// InTx runs fn in a new transaction, or directly when the repository is
// already bound to one.
func (r *SQLiteRepository[E]) InTx(ctx context.Context, fn func(Repository[E]) error) error {
	beginner, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return fn(r)
	}
	err := dbx.WithTx(ctx, beginner, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&SQLiteRepository[E]{db: tx, schema: r.schema, selectSQL: r.selectSQL, upsertSQL: r.upsertSQL})
	})
	if err != nil && !errors.Is(err, common.ErrStorage) {
		return storageErr(r.schema.Table+" tx", err)
	}
	return err
}

func (r *SQLiteRepository[E]) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr(op+" "+r.schema.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(op+" "+r.schema.Table, err)
	}
	return n, nil
}

func (r *SQLiteRepository[E]) query(ctx context.Context, op, where string, args ...any) ([]E, error) {
	rows, err := r.db.QueryContext(ctx, r.selectSQL+where, args...)
	if err != nil {
		return nil, storageErr(op+" "+r.schema.Table, err)
	}
	defer rows.Close()

	var result []E
	for rows.Next() {
		var (
			item     E
			remoteID sql.NullString
			state    string
		)
		h := r.schema.Header(&item)
		dest := []any{&h.LocalID, &h.UserID, &h.Timestamp, &remoteID, &state, &h.UpdatedAt}
		dest = append(dest, r.schema.Targets(&item)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, storageErr(op+" "+r.schema.Table, err)
		}
		h.RemoteID = remoteID.String
		h.SyncState = models.SyncState(state)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op+" "+r.schema.Table, err)
	}
	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
