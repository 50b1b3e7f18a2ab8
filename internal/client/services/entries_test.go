package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/analytics"
	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/kinds"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote/memstore"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/streaks"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryFixture struct {
	svc    *EntryService
	remote *memstore.Store
	online *toggle
	meta   metadata.Repository
	now    *time.Time
}

func newEntryFixture(t *testing.T) *entryFixture {
	t.Helper()
	db := openDB(t)
	rs := memstore.New()
	now := testNow
	clock := func() time.Time { return now }
	opts := []Option{WithClock(clock), WithIDGenerator(seqIDs("e")), WithTimeout(time.Second)}

	f := &entryFixture{remote: rs, online: &toggle{}, meta: metadata.NewSQLiteRepository(db), now: &now}
	f.svc = NewEntryService(EntryDeps{
		Diary:    NewReconciler(kinds.Diary, entries.NewDiaryRepository(db), rs, nil, opts...),
		Moods:    NewReconciler(kinds.Mood, entries.NewMoodRepository(db), rs, nil, opts...),
		Activity: NewReconciler(kinds.Activity, entries.NewActivityRepository(db), rs, nil, opts...),
		Streaks:  analytics.NewStreakTracker(streaks.NewSQLiteRepository(db), clock),
		Metadata: f.meta,
		Online:   f.online,
		Location: time.UTC,
		Now:      clock,
	})
	return f
}

func TestSaveDiary_OfflineIsQueryable(t *testing.T) {
	f := newEntryFixture(t)
	ctx := context.Background()

	res, err := f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: models.Header{UserID: testUser}, Text: "hello", Mood: "happy"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.LocalID)
	assert.False(t, res.Pushed)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.Current)
	assert.Zero(t, f.remote.Calls(memstore.OpCreate))

	all, err := f.svc.ListAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, all.Diary, 1)
	assert.Equal(t, models.MoodHappy, all.Diary[0].Mood)
	assert.Equal(t, testNow.UnixMilli(), all.Diary[0].Timestamp)

	pending, err := f.svc.ListPending(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Len())
}

func TestSaveDiary_OnlinePushes(t *testing.T) {
	f := newEntryFixture(t)
	f.online.on.Store(true)
	ctx := context.Background()

	e := &models.DiaryEntry{Header: models.Header{UserID: testUser}, Text: "hello"}
	res, err := f.svc.SaveDiary(ctx, e)
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.NotEmpty(t, e.RemoteID)

	pending, err := f.svc.ListPending(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, pending.Len())
}

func TestSave_RemoteFailureStillSucceeds(t *testing.T) {
	f := newEntryFixture(t)
	f.online.on.Store(true)
	f.remote.FailWith(memstore.OpCreate, assert.AnError)
	ctx := context.Background()

	res, err := f.svc.SaveMood(ctx, &models.MoodEntry{Header: models.Header{UserID: testUser}, Mood: models.MoodSad})
	require.NoError(t, err)
	assert.False(t, res.Pushed)

	pending, err := f.svc.ListPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending.Moods, 1)
	assert.Equal(t, "2024-03-01", pending.Moods[0].DateKey)
	assert.Equal(t, models.MoodSourceManual, pending.Moods[0].Source)
}

func TestSave_Validation(t *testing.T) {
	f := newEntryFixture(t)
	ctx := context.Background()
	h := models.Header{UserID: testUser}
	neg := int64(-1)

	_, err := f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: h})
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: h, Text: "x", Mood: "meh"})
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = f.svc.SaveMood(ctx, &models.MoodEntry{Header: h, Mood: "Sleepy"})
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = f.svc.SaveActivity(ctx, &models.ActivityEntry{Header: h})
	require.ErrorIs(t, err, common.ErrorValidation)
	_, err = f.svc.SaveActivity(ctx, &models.ActivityEntry{Header: h, Steps: &neg})
	require.ErrorIs(t, err, common.ErrorValidation)

	all, err := f.svc.ListAll(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, all.Len())
}

func TestSaveActivity_DoesNotCountTowardsStreak(t *testing.T) {
	f := newEntryFixture(t)
	steps := int64(10000)

	res, err := f.svc.SaveActivity(context.Background(), &models.ActivityEntry{Header: models.Header{UserID: testUser}, Steps: &steps})
	require.NoError(t, err)
	assert.Nil(t, res.Streak)
}

func TestSave_StreakFollowsClock(t *testing.T) {
	f := newEntryFixture(t)
	ctx := context.Background()

	var got []int
	for i := 0; i < 3; i++ {
		res, err := f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: models.Header{UserID: testUser}, Text: "day"})
		require.NoError(t, err)
		got = append(got, res.Streak.Current)
		*f.now = f.now.Add(24 * time.Hour)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestEntryService_DeduplicateAndWipe(t *testing.T) {
	f := newEntryFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: models.Header{UserID: testUser, Timestamp: 10}, Text: "dup"})
		require.NoError(t, err)
	}
	_, err := f.svc.SaveMood(ctx, &models.MoodEntry{Header: models.Header{UserID: testUser, Timestamp: 10}, Mood: models.MoodCalm})
	require.NoError(t, err)
	_, err = f.svc.SaveMood(ctx, &models.MoodEntry{Header: models.Header{UserID: "u2"}, Mood: models.MoodCalm})
	require.NoError(t, err)

	removed, err := f.svc.Deduplicate(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"diary": 1, "mood": 0, "activity": 0}, removed)

	require.NoError(t, metadata.SetTime(ctx, f.meta, metadata.UserKey(metadata.KeyCrisisNotifiedAt, testUser), testNow))

	n, err := f.svc.WipeUser(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := f.svc.ListAll(ctx, testUser)
	require.NoError(t, err)
	assert.Zero(t, all.Len())
	others, err := f.svc.ListAll(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, others.Len())

	last, err := metadata.GetTime(ctx, f.meta, metadata.UserKey(metadata.KeyCrisisNotifiedAt, testUser))
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	res, err := f.svc.SaveDiary(ctx, &models.DiaryEntry{Header: models.Header{UserID: testUser}, Text: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak.Current)
}

func TestEntryService_Syncers(t *testing.T) {
	f := newEntryFixture(t)
	o := NewOrchestrator(connectivity.Static(true), f.meta, nil, f.svc.Syncers()...)

	_, err := f.svc.SaveDiary(context.Background(), &models.DiaryEntry{Header: models.Header{UserID: testUser}, Text: "later"})
	require.NoError(t, err)

	report, err := o.SyncPendingOnly(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, report.Kinds, 3)
	assert.Equal(t, 1, report.Kinds[0].Push.Pushed)
}

// flakyUpserts fails only the nth upsert.
type flakyUpserts struct {
	entries.Repository[models.DiaryEntry]
	failAt int32
	calls  atomic.Int32
}

func (r *flakyUpserts) Upsert(ctx context.Context, e *models.DiaryEntry) error {
	if r.calls.Add(1) == r.failAt {
		return fmt.Errorf("%w: disk full", common.ErrStorage)
	}
	return r.Repository.Upsert(ctx, e)
}

func TestSave_LocalUpdateAfterPushFailsStillSucceeds(t *testing.T) {
	db := openDB(t)
	rs := memstore.New()
	// the first upsert is the save, the second marks the row synced
	repo := &flakyUpserts{Repository: entries.NewDiaryRepository(db), failAt: 2}
	diary := NewReconciler(kinds.Diary, entries.Repository[models.DiaryEntry](repo), rs, nil, testOpts("e")...)
	svc := NewEntryService(EntryDeps{Diary: diary, Online: connectivity.Static(true), Location: time.UTC})
	ctx := context.Background()

	res, err := svc.SaveDiary(ctx, &models.DiaryEntry{Header: models.Header{UserID: testUser, Timestamp: 100}, Text: "kept"})
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Equal(t, 1, rs.Len(kinds.Diary.Collection))

	pending, err := repo.GetPending(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// the next pull links the row to the record that already reached the remote
	stats, err := diary.PullAll(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Linked)
	assert.Zero(t, stats.Inserted)

	all, err := repo.GetAll(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.SyncSynced, all[0].SyncState)
}
