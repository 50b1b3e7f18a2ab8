// Package streaks persists per-user streak state and the milestones a user
// has already been notified about.
package streaks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

type Repository interface {
	// Get returns the stored state, or a zero state for an unknown user.
	Get(ctx context.Context, userID string) (models.Streak, error)
	Save(ctx context.Context, s models.Streak) error

	HasMilestone(ctx context.Context, userID string, days int) (bool, error)
	// AddMilestone is a no-op when the milestone is already recorded.
	AddMilestone(ctx context.Context, userID string, days int, at time.Time) error
	Milestones(ctx context.Context, userID string) ([]int, error)

	// Reset drops the state and the notified milestones of the user.
	Reset(ctx context.Context, userID string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID string) (models.Streak, error) {
	s := models.Streak{UserID: userID}
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT current, longest, last_entry_date_key FROM streaks WHERE user_id = ?`, userID).
		Scan(&s.Current, &s.Longest, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return models.Streak{}, fmt.Errorf("%w: get streak: %w", common.ErrStorage, err)
	}
	s.LastEntryDateKey = last.String
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s models.Streak) error {
	last := sql.NullString{String: s.LastEntryDateKey, Valid: s.LastEntryDateKey != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current, longest, last_entry_date_key) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current = excluded.current,
			longest = excluded.longest,
			last_entry_date_key = excluded.last_entry_date_key
	`, s.UserID, s.Current, s.Longest, last)
	if err != nil {
		return fmt.Errorf("%w: save streak: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) HasMilestone(ctx context.Context, userID string, days int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM streak_milestones WHERE user_id = ? AND days = ?`, userID, days).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: get milestone: %w", common.ErrStorage, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) AddMilestone(ctx context.Context, userID string, days int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO streak_milestones (user_id, days, notified_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		userID, days, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: add milestone: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) Milestones(ctx context.Context, userID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT days FROM streak_milestones WHERE user_id = ? ORDER BY days`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list milestones: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	var result []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: scan milestone: %w", common.ErrStorage, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list milestones: %w", common.ErrStorage, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Reset(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM streak_milestones WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: reset milestones: %w", common.ErrStorage, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM streaks WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: reset streak: %w", common.ErrStorage, err)
	}
	return nil
}
