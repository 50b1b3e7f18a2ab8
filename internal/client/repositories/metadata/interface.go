// Package metadata is a small key/value store for client bookkeeping that
// does not deserve its own table, such as the crisis cooldown timestamp and
// the time of the last successful sync.
package metadata

import (
	"context"
	"fmt"
	"time"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context) (map[string][]byte, error)
}

// Keys used by the client. User-scoped keys end with the user id.
const (
	KeyCrisisNotifiedAt = "crisis.notified_at."
	KeyLastSyncAt       = "sync.last_success_at."
)

// UserKey builds a user-scoped key from one of the prefixes above.
func UserKey(prefix, userID string) string {
	return prefix + userID
}

// GetTime reads a timestamp stored by SetTime. A missing key yields the zero
// time and no error.
func GetTime(ctx context.Context, r Repository, key string) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("metadata[%s]: %w", key, err)
	}
	return t, nil
}

// SetTime stores t in RFC 3339 form.
func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	return r.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}
