package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// KindSyncer is the part of a Reconciler the orchestrator drives.
type KindSyncer interface {
	KindName() string
	PullAll(ctx context.Context, userID string) (PullStats, error)
	PushPending(ctx context.Context, userID string) (PushStats, error)
}

// KindReport is the outcome for one kind.
type KindReport struct {
	Kind string    `json:"kind" yaml:"kind"`
	Pull PullStats `json:"pull" yaml:"pull"`
	Push PushStats `json:"push" yaml:"push"`

	// PushSkipped is set when the pull could not reach the remote, so the
	// push was not attempted either.
	PushSkipped bool `json:"pushSkipped,omitempty" yaml:"pushSkipped,omitempty"`

	// Shared is set when the result came from a concurrent run for the same
	// user and kind.
	Shared bool `json:"shared,omitempty" yaml:"shared,omitempty"`

	Err error `json:"-" yaml:"-"`
}

type SyncReport struct {
	// Offline is set when the run was skipped for lack of connectivity.
	Offline bool         `json:"offline" yaml:"offline"`
	Kinds   []KindReport `json:"kinds" yaml:"kinds"`
}

// Complete reports whether every kind reached the remote and had no
// failed push.
func (r SyncReport) Complete() bool {
	if r.Offline {
		return false
	}
	for _, k := range r.Kinds {
		if k.Err != nil || k.Pull.RemoteFailed || k.PushSkipped || k.Push.Failed > 0 {
			return false
		}
	}
	return true
}

const (
	opSyncAll     = "all"
	opPendingOnly = "pending"
)

// Orchestrator runs reconciliation for all kinds of one user. Kinds run in
// parallel. Runs for the same user and kind never overlap: identical
// concurrent requests share one run and different ones wait for each other.
type Orchestrator struct {
	syncers []KindSyncer
	online  connectivity.Checker
	meta    metadata.Repository
	logger  logging.Logger
	now     func() time.Time

	flights singleflight.Group
	locks   sync.Map // user/kind -> *sync.Mutex
}

// NewOrchestrator builds an orchestrator. meta may be nil, in which case the
// last successful sync time is not recorded.
func NewOrchestrator(online connectivity.Checker, meta metadata.Repository, logger logging.Logger, syncers ...KindSyncer) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		syncers: syncers,
		online:  online,
		meta:    meta,
		logger:  logger,
		now:     time.Now,
	}
}

// SyncAll pulls and then pushes every kind. It returns immediately with an
// Offline report when there is no connectivity. The error is non-nil only
// for local storage failures.
func (o *Orchestrator) SyncAll(ctx context.Context, userID string) (SyncReport, error) {
	return o.run(ctx, userID, opSyncAll)
}

// SyncPendingOnly pushes pending rows of every kind without pulling.
func (o *Orchestrator) SyncPendingOnly(ctx context.Context, userID string) (SyncReport, error) {
	return o.run(ctx, userID, opPendingOnly)
}

// LastSyncAt returns the time of the last complete SyncAll for the user.
func (o *Orchestrator) LastSyncAt(ctx context.Context, userID string) (time.Time, error) {
	if o.meta == nil {
		return time.Time{}, nil
	}
	return metadata.GetTime(ctx, o.meta, metadata.UserKey(metadata.KeyLastSyncAt, userID))
}

func (o *Orchestrator) run(ctx context.Context, userID, op string) (SyncReport, error) {
	if !o.online.IsOnline() {
		o.logger.Debug(ctx, "offline, sync skipped", "user_id", userID, "op", op)
		return SyncReport{Offline: true}, nil
	}

	report := SyncReport{Kinds: make([]KindReport, len(o.syncers))}

	var g errgroup.Group
	for i, s := range o.syncers {
		g.Go(func() error {
			report.Kinds[i] = o.runKind(ctx, userID, op, s)
			return report.Kinds[i].Err
		})
	}
	if g.Wait() != nil {
		errs := make([]error, 0, len(report.Kinds))
		for _, k := range report.Kinds {
			errs = append(errs, k.Err)
		}
		return report, errors.Join(errs...)
	}

	if op == opSyncAll && report.Complete() && o.meta != nil {
		key := metadata.UserKey(metadata.KeyLastSyncAt, userID)
		if err := metadata.SetTime(ctx, o.meta, key, o.now()); err != nil {
			return report, err
		}
	}

	o.logger.Info(ctx, "sync finished", "user_id", userID, "op", op, "complete", report.Complete())
	return report, nil
}

func (o *Orchestrator) runKind(ctx context.Context, userID, op string, s KindSyncer) KindReport {
	kind := s.KindName()
	v, _, shared := o.flights.Do(userID+"/"+kind+"/"+op, func() (any, error) {
		mu := o.lockFor(userID, kind)
		mu.Lock()
		defer mu.Unlock()
		return o.reconcile(ctx, userID, op, s), nil
	})

	r := v.(KindReport)
	r.Shared = shared
	return r
}

func (o *Orchestrator) reconcile(ctx context.Context, userID, op string, s KindSyncer) KindReport {
	r := KindReport{Kind: s.KindName()}

	if op == opSyncAll {
		r.Pull, r.Err = s.PullAll(ctx, userID)
		if r.Err != nil {
			return r
		}
		if r.Pull.RemoteFailed {
			r.PushSkipped = true
			return r
		}
	}

	r.Push, r.Err = s.PushPending(ctx, userID)
	return r
}

func (o *Orchestrator) lockFor(userID, kind string) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(userID+"/"+kind, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
