package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/kinds"
	"github.com/dmitrijs2005/moodkeeper/internal/client/localdb"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote/memstore"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "u1"

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.Open(context.Background(), localdb.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func testOpts(prefix string) []Option {
	return []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(seqIDs(prefix)),
		WithTimeout(time.Second),
	}
}

func newDiary(t *testing.T, rs remote.Store, opts ...Option) (*Reconciler[models.DiaryEntry], entries.Repository[models.DiaryEntry]) {
	t.Helper()
	repo := entries.NewDiaryRepository(openDB(t))
	return NewReconciler(kinds.Diary, repo, rs, logging.NewNop(), append(testOpts("local"), opts...)...), repo
}

func diaryEntry(ts int64, text string, mood models.Mood) *models.DiaryEntry {
	return &models.DiaryEntry{Header: models.Header{UserID: testUser, Timestamp: ts}, Text: text, Mood: mood}
}

func TestSaveLocal(t *testing.T) {
	rc, repo := newDiary(t, memstore.New())
	ctx := context.Background()

	e := diaryEntry(100, "hello", models.MoodHappy)
	e.RemoteID = "stale"
	e.SyncState = models.SyncSynced

	id, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "local-1", id)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SyncPending, rows[0].SyncState)
	assert.Empty(t, rows[0].RemoteID)
	assert.Equal(t, testNow.UnixMilli(), rows[0].UpdatedAt)
	assert.Equal(t, int64(100), rows[0].Timestamp)
}

func TestSaveLocal_DefaultsTimestampAndRequiresUser(t *testing.T) {
	rc, _ := newDiary(t, memstore.New())
	ctx := context.Background()

	e := diaryEntry(0, "now", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, testNow.UnixMilli(), e.Timestamp)

	_, err = rc.SaveLocal(ctx, &models.DiaryEntry{Text: "nobody"})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestPushOne_CreateThenUpdate(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "hello", models.MoodHappy)
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)

	require.NoError(t, rc.PushOne(ctx, e))
	require.NotEmpty(t, e.RemoteID)
	assert.Equal(t, models.SyncSynced, e.SyncState)
	rid := e.RemoteID

	// pushing the synced row again overwrites instead of creating
	require.NoError(t, rc.PushOne(ctx, e))
	assert.Equal(t, rid, e.RemoteID)
	assert.Equal(t, 1, rs.Calls(memstore.OpCreate))
	assert.Equal(t, 1, rs.Calls(memstore.OpUpdate))
	assert.Equal(t, 1, rs.Len(kinds.Diary.Collection))

	stored, err := repo.GetByRemoteID(ctx, rid)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.SyncSynced, stored.SyncState)
}

func TestPushOne_RemoteFailureLeavesRowPending(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "hello", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	before := *e

	rs.FailWith(memstore.OpCreate, remote.ErrUnavailable)
	err = rc.PushOne(ctx, e)
	require.ErrorIs(t, err, common.ErrRemote)
	require.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Equal(t, before, *e)

	pending, err := repo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].RemoteID)
}

type blockingStore struct {
	remote.Store
}

func (blockingStore) Create(ctx context.Context, _ string, _ map[string]any) (string, error) {
	<-ctx.Done()
	return "", fmt.Errorf("%w: %w", remote.ErrUnavailable, ctx.Err())
}

func (blockingStore) QueryByUser(ctx context.Context, _, _ string) ([]remote.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRemoteTimeout(t *testing.T) {
	rc, _ := newDiary(t, blockingStore{}, WithTimeout(20*time.Millisecond))
	ctx := context.Background()

	e := diaryEntry(100, "slow", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)

	start := time.Now()
	err = rc.PushOne(ctx, e)
	require.ErrorIs(t, err, common.ErrRemote)
	assert.Less(t, time.Since(start), time.Second)

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, stats.RemoteFailed)
}

// failOnText fails creates whose text contains a marker.
type failOnText struct {
	remote.Store
	marker string
}

func (f failOnText) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if text, _ := fields["text"].(string); strings.Contains(text, f.marker) {
		return "", remote.ErrUnavailable
	}
	return f.Store.Create(ctx, collection, fields)
}

func TestPushPending_ContinuesPastFailures(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, failOnText{Store: rs, marker: "bad"})
	ctx := context.Background()

	for i, text := range []string{"one", "bad two", "three"} {
		_, err := rc.SaveLocal(ctx, diaryEntry(int64(100+i), text, ""))
		require.NoError(t, err)
	}

	stats, err := rc.PushPending(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PushStats{Attempted: 3, Pushed: 2, Failed: 1}, stats)

	pending, err := repo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bad two", pending[0].Text)

	// the next run only retries what is left
	stats, err = rc.PushPending(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PushStats{Attempted: 1, Failed: 1}, stats)
	assert.Equal(t, 2, rs.Len(kinds.Diary.Collection))
}

func TestPushThenPull_NoDuplicate(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "hello", models.MoodHappy)
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	require.NoError(t, rc.PushOne(ctx, e))

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PullStats{Fetched: 1, Updated: 1}, stats)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, e.LocalID, rows[0].LocalID)
}

func TestPullAll_InsertsUnseenRecords(t *testing.T) {
	rs := memstore.New()
	const n = 4
	for i := 0; i < n; i++ {
		rs.Put(kinds.Diary.Collection, fmt.Sprintf("r%d", i), kinds.Diary.Encode(*diaryEntry(int64(200+i), fmt.Sprintf("remote %d", i), models.MoodCalm)))
	}
	rs.Put(kinds.Diary.Collection, "other", map[string]any{"userId": "u2", "timestamp": 1, "text": "not mine"})

	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PullStats{Fetched: n, Inserted: n}, stats)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, n)
	seen := map[string]bool{}
	for _, r := range rows {
		assert.Equal(t, models.SyncSynced, r.SyncState)
		assert.NotEmpty(t, r.RemoteID)
		assert.NotEmpty(t, r.LocalID)
		seen[r.RemoteID] = true
	}
	assert.Len(t, seen, n)

	// pulling again changes nothing
	stats, err = rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PullStats{Fetched: n, Updated: n}, stats)
	rows, err = repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rows, n)
}

func TestPullAll_LinksUnlinkedMatch(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	local := diaryEntry(100, "same event", models.MoodSad)
	_, err := rc.SaveLocal(ctx, local)
	require.NoError(t, err)
	// a different local event at the same timestamp
	_, err = rc.SaveLocal(ctx, diaryEntry(100, "another event", models.MoodSad))
	require.NoError(t, err)

	rs.Put(kinds.Diary.Collection, "r-1", kinds.Diary.Encode(*diaryEntry(100, "same event", models.MoodSad)))

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, PullStats{Fetched: 1, Linked: 1}, stats)

	linked, err := repo.GetByRemoteID(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, local.LocalID, linked.LocalID)
	assert.Equal(t, models.SyncSynced, linked.SyncState)

	pending, err := repo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "another event", pending[0].Text)
}

func TestPullAll_CoincidentRowsLinkOnePerRecord(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rc.SaveLocal(ctx, diaryEntry(100, "twin", ""))
		require.NoError(t, err)
	}
	rs.Put(kinds.Diary.Collection, "r-1", kinds.Diary.Encode(*diaryEntry(100, "twin", "")))

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Linked)

	unlinked, err := repo.GetUnlinked(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, unlinked, 1)
}

func TestPullAll_RemoteIsAuthoritativeByID(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "draft", models.MoodNeutral)
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	require.NoError(t, rc.PushOne(ctx, e))

	edited := *diaryEntry(100, "edited elsewhere", models.MoodHappy)
	rs.Put(kinds.Diary.Collection, e.RemoteID, kinds.Diary.Encode(edited))

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	got, err := repo.GetByRemoteID(ctx, e.RemoteID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.LocalID, got.LocalID)
	assert.Equal(t, "edited elsewhere", got.Text)
	assert.Equal(t, models.MoodHappy, got.Mood)
	assert.Equal(t, models.SyncSynced, got.SyncState)
}

func TestPullAll_SkipsMalformed(t *testing.T) {
	rs := memstore.New()
	rs.Put(kinds.Diary.Collection, "bad", map[string]any{"userId": testUser, "timestamp": "yesterday", "text": "x"})
	rs.Put(kinds.Diary.Collection, "good", kinds.Diary.Encode(*diaryEntry(5, "fine", "")))

	rc, repo := newDiary(t, rs)
	stats, err := rc.PullAll(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, PullStats{Fetched: 2, Inserted: 1, Skipped: 1}, stats)

	rows, err := repo.GetAll(context.Background(), testUser)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPullAll_RemoteFailureChangesNothing(t *testing.T) {
	rs := memstore.New()
	rs.Put(kinds.Diary.Collection, "r-1", kinds.Diary.Encode(*diaryEntry(5, "remote", "")))
	rs.FailWith(memstore.OpQuery, errors.New("boom"))

	rc, repo := newDiary(t, rs)
	stats, err := rc.PullAll(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, stats.RemoteFailed)

	rows, err := repo.GetAll(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkPending_PushesAsUpdate(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "v1", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	require.NoError(t, rc.PushOne(ctx, e))

	e.Text = "v2"
	require.NoError(t, rc.MarkPending(ctx, e))
	pending, err := repo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e.RemoteID, pending[0].RemoteID)

	stats, err := rc.PushPending(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pushed)
	assert.Equal(t, 1, rs.Calls(memstore.OpCreate))
	assert.Equal(t, 1, rs.Calls(memstore.OpUpdate))

	docs, err := rs.QueryByUser(ctx, kinds.Diary.Collection, testUser)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v2", docs[0].Fields["text"])
}

func TestDeduplicate(t *testing.T) {
	rc, repo := newDiary(t, memstore.New())
	ctx := context.Background()

	for _, e := range []*models.DiaryEntry{
		diaryEntry(100, "dup", ""),
		diaryEntry(100, "dup", ""),
		diaryEntry(100, "distinct", ""),
		diaryEntry(200, "dup", ""),
	} {
		_, err := rc.SaveLocal(ctx, e)
		require.NoError(t, err)
	}

	removed, err := rc.Deduplicate(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	removed, err = rc.Deduplicate(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeduplicate_KeepsLinkedRow(t *testing.T) {
	rs := memstore.New()
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	linked := diaryEntry(100, "dup", "")
	_, err := rc.SaveLocal(ctx, linked)
	require.NoError(t, err)
	require.NoError(t, rc.PushOne(ctx, linked))

	copyRow := diaryEntry(100, "dup", "")
	_, err = rc.SaveLocal(ctx, copyRow)
	require.NoError(t, err)
	// make the unlinked copy look newer
	copyRow.UpdatedAt = testNow.Add(time.Hour).UnixMilli()
	require.NoError(t, repo.Upsert(ctx, copyRow))

	removed, err := rc.Deduplicate(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, linked.LocalID, rows[0].LocalID)
}

func TestBetter_TieBreaks(t *testing.T) {
	rc, _ := newDiary(t, memstore.New())

	a := &models.Header{LocalID: "a", UpdatedAt: 2, Timestamp: 1}
	b := &models.Header{LocalID: "b", UpdatedAt: 1, Timestamp: 1}
	assert.True(t, rc.better(a, b))

	b.UpdatedAt = 2
	assert.False(t, rc.better(a, b))
	assert.True(t, rc.better(b, a))
}

// shortDelete removes only the first id it is given.
type shortDelete struct {
	entries.Repository[models.DiaryEntry]
}

func (s shortDelete) Delete(ctx context.Context, ids ...string) (int64, error) {
	return s.Repository.Delete(ctx, ids[0])
}

type partialTxRepo struct {
	entries.Repository[models.DiaryEntry]
}

func (p partialTxRepo) InTx(ctx context.Context, fn func(entries.Repository[models.DiaryEntry]) error) error {
	return p.Repository.InTx(ctx, func(tx entries.Repository[models.DiaryEntry]) error {
		return fn(shortDelete{tx})
	})
}

func TestDeduplicate_GroupIsAtomic(t *testing.T) {
	repo := entries.NewDiaryRepository(openDB(t))
	rc := NewReconciler(kinds.Diary, entries.Repository[models.DiaryEntry](partialTxRepo{repo}), memstore.New(), nil, testOpts("local")...)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := rc.SaveLocal(ctx, diaryEntry(100, "dup", ""))
		require.NoError(t, err)
	}

	_, err := rc.Deduplicate(ctx, testUser)
	require.ErrorIs(t, err, common.ErrStorage)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestTwoDevices(t *testing.T) {
	rs := memstore.New()
	ctx := context.Background()
	ts := testNow.UnixMilli()

	phone, phoneRepo := newDiary(t, rs)
	e := diaryEntry(ts, "hello", models.MoodHappy)
	_, err := phone.SaveLocal(ctx, e)
	require.NoError(t, err)

	pending, err := phoneRepo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].RemoteID)

	_, err = phone.PullAll(ctx, testUser)
	require.NoError(t, err)
	_, err = phone.PushPending(ctx, testUser)
	require.NoError(t, err)

	rows, err := phoneRepo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.SyncSynced, rows[0].SyncState)
	require.NotEmpty(t, rows[0].RemoteID)

	tablet := NewReconciler(kinds.Diary, entries.NewDiaryRepository(openDB(t)), rs, nil, testOpts("tablet")...)
	stats, err := tablet.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	got, err := tablet.QueryAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rows[0].RemoteID, got[0].RemoteID)
	assert.Equal(t, models.SyncSynced, got[0].SyncState)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, models.MoodHappy, got[0].Mood)
	assert.Equal(t, ts, got[0].Timestamp)
	assert.NotEqual(t, rows[0].LocalID, got[0].LocalID)
}

func TestActivityReconciler(t *testing.T) {
	rs := memstore.New()
	repo := entries.NewActivityRepository(openDB(t))
	rc := NewReconciler(kinds.Activity, repo, rs, nil, testOpts("act")...)
	ctx := context.Background()

	w := 71.5
	e := &models.ActivityEntry{Header: models.Header{UserID: testUser, Timestamp: 100}, Weight: &w}
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	steps := int64(4000)
	other := &models.ActivityEntry{Header: models.Header{UserID: testUser, Timestamp: 100}, Weight: &w, Steps: &steps}
	_, err = rc.SaveLocal(ctx, other)
	require.NoError(t, err)

	rs.Put(kinds.Activity.Collection, "r-1", map[string]any{"userId": testUser, "timestamp": 100, "weight": 71.5, "steps": nil})

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Linked)

	linked, err := repo.GetByRemoteID(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, e.LocalID, linked.LocalID)
	assert.Nil(t, linked.Steps)

	removed, err := rc.Deduplicate(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// rendezvousStore holds each Create until a second one arrives or wait
// runs out, so overlapping pushes would both reach the remote.
type rendezvousStore struct {
	*memstore.Store
	wait    time.Duration
	arrived atomic.Int32
	both    chan struct{}
}

func newRendezvousStore(wait time.Duration) *rendezvousStore {
	return &rendezvousStore{Store: memstore.New(), wait: wait, both: make(chan struct{})}
}

func (s *rendezvousStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if s.arrived.Add(1) == 2 {
		close(s.both)
	}
	select {
	case <-s.both:
	case <-time.After(s.wait):
	}
	return s.Store.Create(ctx, collection, fields)
}

func TestPushOne_ConcurrentPushesCreateOnce(t *testing.T) {
	rs := newRendezvousStore(100 * time.Millisecond)
	rc, repo := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "once", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	a, b := *e, *e

	var wg sync.WaitGroup
	for _, copyRow := range []*models.DiaryEntry{&a, &b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rc.PushOne(ctx, copyRow))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rs.Calls(memstore.OpCreate))
	assert.Equal(t, 1, rs.Calls(memstore.OpUpdate), "the later push overwrites the record the first one created")
	assert.Equal(t, 1, rs.Len(kinds.Diary.Collection))
	assert.Equal(t, a.RemoteID, b.RemoteID)

	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SyncSynced, rows[0].SyncState)
}

func TestPushOne_RacingPendingFlushKeepsOneEvent(t *testing.T) {
	rs := newRendezvousStore(100 * time.Millisecond)
	rc, repo := newDiary(t, rs)
	orch := NewOrchestrator(connectivity.Static(true), nil, logging.NewNop(), rc)
	ctx := context.Background()

	e := diaryEntry(100, "saved while reconnecting", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, rc.PushOne(ctx, e))
	}()
	go func() {
		defer wg.Done()
		_, err := orch.SyncPendingOnly(ctx, testUser)
		assert.NoError(t, err)
	}()
	wg.Wait()

	stats, err := rc.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, stats.Inserted)

	assert.Equal(t, 1, rs.Len(kinds.Diary.Collection))
	rows, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPushOne_DeletedRowIsNotPushed(t *testing.T) {
	rs := memstore.New()
	rc, _ := newDiary(t, rs)
	ctx := context.Background()

	e := diaryEntry(100, "gone", "")
	_, err := rc.SaveLocal(ctx, e)
	require.NoError(t, err)
	_, err = rc.DeleteUser(ctx, testUser)
	require.NoError(t, err)

	err = rc.PushOne(ctx, e)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, rs.Calls(memstore.OpCreate))
}
