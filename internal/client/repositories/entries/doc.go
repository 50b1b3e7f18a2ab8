// Package entries persists diary, mood and activity entries in the local
// SQLite database.
//
// One generic SQLiteRepository serves all three kinds. A Schema describes
// the kind-specific table and payload columns; the sync header columns
// (local_id, user_id, timestamp_ms, remote_id, sync_state, updated_at) are
// shared.
//
// Every error returned here wraps common.ErrStorage. The package never
// retries and never talks to the network.
//
// Typical usage
//
//	repo := entries.NewDiaryRepository(db)
//	_ = repo.Upsert(ctx, &entry)
//	all, _ := repo.GetAll(ctx, userID)
//	pending, _ := repo.GetPending(ctx, userID)
package entries
