package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/kinds"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/google/uuid"
)

// DefaultRemoteTimeout bounds every remote call made by a Reconciler.
const DefaultRemoteTimeout = 10 * time.Second

type options struct {
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type Option func(*options)

// WithTimeout sets the per-call remote timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func buildOptions(opts []Option) options {
	o := options{timeout: DefaultRemoteTimeout, now: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// PullStats describes one PullAll run.
type PullStats struct {
	Fetched  int `json:"fetched" yaml:"fetched"`
	Updated  int `json:"updated" yaml:"updated"`
	Linked   int `json:"linked" yaml:"linked"`
	Inserted int `json:"inserted" yaml:"inserted"`
	Skipped  int `json:"skipped" yaml:"skipped"`

	// RemoteFailed is set when the remote could not be queried. Nothing
	// was changed locally in that case.
	RemoteFailed bool `json:"remoteFailed" yaml:"remoteFailed"`
}

// PushStats describes one PushPending run.
type PushStats struct {
	Attempted int `json:"attempted" yaml:"attempted"`
	Pushed    int `json:"pushed" yaml:"pushed"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Reconciler merges the local and remote views of one entry kind.
//
// Remote failures never change local state. PushOne reports them to its
// caller wrapped in common.ErrRemote; PullAll and PushPending log them and
// carry on. Errors from the local store are always returned.
type Reconciler[E any] struct {
	kind   kinds.Kind[E]
	repo   entries.Repository[E]
	remote remote.Store
	logger logging.Logger
	opts   options

	// locks serializes pushes and pulls of one user, keyed by user id.
	locks sync.Map
}

func NewReconciler[E any](kind kinds.Kind[E], repo entries.Repository[E], rs remote.Store, logger logging.Logger, opts ...Option) *Reconciler[E] {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler[E]{
		kind:   kind,
		repo:   repo,
		remote: rs,
		logger: logger.With("kind", kind.Name),
		opts:   buildOptions(opts),
	}
}

func (r *Reconciler[E]) KindName() string { return r.kind.Name }

func (r *Reconciler[E]) lock(userID string) func() {
	v, _ := r.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *Reconciler[E]) nowMillis() int64 { return r.opts.now().UnixMilli() }

// SaveLocal stores e as a new pending row and returns its local id. A zero
// timestamp is replaced by the current time.
func (r *Reconciler[E]) SaveLocal(ctx context.Context, e *E) (string, error) {
	h := r.kind.Header(e)
	if h.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", common.ErrorValidation)
	}

	now := r.nowMillis()
	h.LocalID = r.opts.newID()
	h.RemoteID = ""
	h.SyncState = models.SyncPending
	h.UpdatedAt = now
	if h.Timestamp == 0 {
		h.Timestamp = now
	}

	if err := r.repo.Upsert(ctx, e); err != nil {
		return "", err
	}
	return h.LocalID, nil
}

// MarkPending flags a row whose content changed locally so the next push
// overwrites the remote copy.
func (r *Reconciler[E]) MarkPending(ctx context.Context, e *E) error {
	h := r.kind.Header(e)
	h.SyncState = models.SyncPending
	h.UpdatedAt = r.nowMillis()
	return r.repo.Upsert(ctx, e)
}

func (r *Reconciler[E]) QueryAll(ctx context.Context, userID string) ([]E, error) {
	return r.repo.GetAll(ctx, userID)
}

func (r *Reconciler[E]) QueryPending(ctx context.Context, userID string) ([]E, error) {
	return r.repo.GetPending(ctx, userID)
}

// DeleteUser removes every local row of the user. Remote records are kept.
func (r *Reconciler[E]) DeleteUser(ctx context.Context, userID string) (int64, error) {
	defer r.lock(userID)()
	return r.repo.DeleteByUser(ctx, userID)
}

// PushOne creates the remote record when e has no remote id yet and
// overwrites it otherwise. On success the row is stored as synced and e is
// updated in place. On failure e and its row are left as they were.
// Pushes, pulls and dedup of one user never overlap.
func (r *Reconciler[E]) PushOne(ctx context.Context, e *E) error {
	defer r.lock(r.kind.Header(e).UserID)()
	return r.pushOne(ctx, e)
}

// pushOne expects the user's lock to be held.
func (r *Reconciler[E]) pushOne(ctx context.Context, e *E) error {
	updated := *e
	h := r.kind.Header(&updated)

	// a concurrent push may have linked the row after e was read
	if !h.Linked() && h.LocalID != "" {
		stored, err := r.repo.Get(ctx, h.LocalID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("%w: %s %s was deleted before the push", common.ErrorNotFound, r.kind.Name, h.LocalID)
		}
		h.RemoteID = r.kind.Header(stored).RemoteID
	}
	fields := r.kind.Encode(updated)

	rctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	if h.Linked() {
		if err := r.remote.Update(rctx, r.kind.Collection, h.RemoteID, fields); err != nil {
			return r.remoteFailure(ctx, h, "update", err)
		}
		h.SyncState = models.SyncSynced
	} else {
		rid, err := r.remote.Create(rctx, r.kind.Collection, fields)
		if err != nil {
			return r.remoteFailure(ctx, h, "create", err)
		}
		h.MarkSynced(rid)
	}

	if err := r.repo.Upsert(ctx, &updated); err != nil {
		return err
	}
	*e = updated
	return nil
}

func (r *Reconciler[E]) remoteFailure(ctx context.Context, h *models.Header, op string, err error) error {
	r.logger.Warn(ctx, "remote "+op+" failed, row stays pending",
		"local_id", h.LocalID,
		"user_id", h.UserID,
		"error", err,
	)
	return fmt.Errorf("%w: %s %s %s: %w", common.ErrRemote, op, r.kind.Name, h.LocalID, err)
}

// PushPending pushes every pending row of the user. A failed row does not
// stop the run.
func (r *Reconciler[E]) PushPending(ctx context.Context, userID string) (PushStats, error) {
	defer r.lock(userID)()
	var stats PushStats

	pending, err := r.repo.GetPending(ctx, userID)
	if err != nil {
		return stats, err
	}

	for i := range pending {
		stats.Attempted++
		err := r.pushOne(ctx, &pending[i])
		switch {
		case err == nil:
			stats.Pushed++
		case errors.Is(err, common.ErrRemote):
			stats.Failed++
		default:
			return stats, err
		}
	}
	return stats, nil
}

// PullAll fetches every remote record of the user and merges it locally:
// rows linked by remote id take the remote payload, unlinked rows with an
// equal match key get linked, and anything else is inserted as a new row.
func (r *Reconciler[E]) PullAll(ctx context.Context, userID string) (PullStats, error) {
	defer r.lock(userID)()
	var stats PullStats

	rctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	docs, err := r.remote.QueryByUser(rctx, r.kind.Collection, userID)
	cancel()
	if err != nil {
		r.logger.Warn(ctx, "remote query failed, pull skipped", "user_id", userID, "error", err)
		stats.RemoteFailed = true
		return stats, nil
	}
	stats.Fetched = len(docs)

	unlinked, err := r.repo.GetUnlinked(ctx, userID)
	if err != nil {
		return stats, err
	}
	// rows sharing a key are consumed one per remote record
	candidates := make(map[string][]int, len(unlinked))
	for i := range unlinked {
		key := r.kind.MatchKey(unlinked[i])
		candidates[key] = append(candidates[key], i)
	}

	for _, doc := range docs {
		incoming, err := r.kind.Decode(doc.Fields)
		if err != nil || doc.ID == "" {
			r.logger.Warn(ctx, "skipping malformed remote document",
				"remote_id", doc.ID, "user_id", userID, "error", err)
			stats.Skipped++
			continue
		}
		ih := r.kind.Header(&incoming)
		if ih.UserID != userID {
			r.logger.Warn(ctx, "skipping remote document of another user",
				"remote_id", doc.ID, "user_id", userID, "owner", ih.UserID)
			stats.Skipped++
			continue
		}

		existing, err := r.repo.GetByRemoteID(ctx, doc.ID)
		if err != nil {
			return stats, err
		}
		if existing != nil {
			if err := r.applyRemote(ctx, existing, incoming, doc.ID); err != nil {
				return stats, err
			}
			stats.Updated++
			continue
		}

		key := r.kind.MatchKey(incoming)
		if idx := candidates[key]; len(idx) > 0 {
			candidates[key] = idx[1:]
			row := &unlinked[idx[0]]
			r.kind.Header(row).MarkSynced(doc.ID)
			if err := r.repo.Upsert(ctx, row); err != nil {
				return stats, err
			}
			stats.Linked++
			continue
		}

		ih.LocalID = r.opts.newID()
		ih.RemoteID = doc.ID
		ih.SyncState = models.SyncSynced
		ih.UpdatedAt = r.nowMillis()
		if err := r.repo.Upsert(ctx, &incoming); err != nil {
			return stats, err
		}
		stats.Inserted++
	}

	return stats, nil
}

// applyRemote overwrites the payload of a linked row with the remote
// version. The header, including the timestamp, stays local.
func (r *Reconciler[E]) applyRemote(ctx context.Context, row *E, incoming E, remoteID string) error {
	h := r.kind.Header(row)
	before := r.kind.MatchKey(*row)
	r.kind.CopyPayload(row, incoming)
	if r.kind.MatchKey(*row) != before {
		h.UpdatedAt = r.nowMillis()
	}
	h.MarkSynced(remoteID)
	return r.repo.Upsert(ctx, row)
}

// Deduplicate removes redundant copies of one event: rows of the user whose
// match keys are equal. The survivor of each group is chosen by
// pickSurvivor. Each group is deleted in its own transaction.
func (r *Reconciler[E]) Deduplicate(ctx context.Context, userID string) (int, error) {
	defer r.lock(userID)()
	all, err := r.repo.GetAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	var order []string
	groups := make(map[string][]int)
	for i := range all {
		key := r.kind.MatchKey(all[i])
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	removed := 0
	for _, key := range order {
		idx := groups[key]
		if len(idx) < 2 {
			continue
		}

		survivor := r.pickSurvivor(all, idx)
		victims := make([]string, 0, len(idx)-1)
		for _, i := range idx {
			if i != survivor {
				victims = append(victims, r.kind.Header(&all[i]).LocalID)
			}
		}

		err := r.repo.InTx(ctx, func(tx entries.Repository[E]) error {
			n, err := tx.Delete(ctx, victims...)
			if err != nil {
				return err
			}
			if n != int64(len(victims)) {
				return fmt.Errorf("%w: dedup %s: removed %d of %d rows", common.ErrStorage, r.kind.Name, n, len(victims))
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
		removed += len(victims)
		r.logger.Debug(ctx, "removed duplicates",
			"user_id", userID,
			"local_id", r.kind.Header(&all[survivor]).LocalID,
			"count", len(victims),
		)
	}
	return removed, nil
}

// pickSurvivor prefers a row that already has a remote identity, so the
// next pull does not bring the deleted copy back. Ties go to the most
// recently modified row, then the highest timestamp, then the larger local id.
func (r *Reconciler[E]) pickSurvivor(all []E, idx []int) int {
	best := idx[0]
	for _, i := range idx[1:] {
		if r.better(r.kind.Header(&all[i]), r.kind.Header(&all[best])) {
			best = i
		}
	}
	return best
}

func (r *Reconciler[E]) better(a, b *models.Header) bool {
	if a.Linked() != b.Linked() {
		return a.Linked()
	}
	if a.UpdatedAt != b.UpdatedAt {
		return a.UpdatedAt > b.UpdatedAt
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.LocalID > b.LocalID
}
