package entries

import (
	"context"
)

// Repository is the local store for one entry kind.
type Repository[E any] interface {
	// Upsert inserts e or updates the row with the same local id. A remote
	// id already stored on the row is never replaced.
	Upsert(ctx context.Context, e *E) error

	// Get returns the row with localID, or nil if there is none.
	Get(ctx context.Context, localID string) (*E, error)

	// GetAll returns the user's entries, newest timestamp first.
	GetAll(ctx context.Context, userID string) ([]E, error)

	// GetPending returns the user's entries whose sync state is pending.
	GetPending(ctx context.Context, userID string) ([]E, error)

	// GetByRemoteID returns the row linked to remoteID, or nil if none is.
	GetByRemoteID(ctx context.Context, remoteID string) (*E, error)

	// GetUnlinked returns the user's entries that have no remote id.
	GetUnlinked(ctx context.Context, userID string) ([]E, error)

	// Delete removes rows by local id and reports how many were removed.
	Delete(ctx context.Context, localIDs ...string) (int64, error)

	// DeleteByUser removes every row of the user.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// InTx runs fn against a repository bound to a single transaction.
	InTx(ctx context.Context, fn func(Repository[E]) error) error
}
