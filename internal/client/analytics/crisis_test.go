package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/localdb"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var crisisNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// series builds samples one hour apart ending at crisisNow, oldest first.
func series(moods ...models.Mood) []MoodSample {
	out := make([]MoodSample, 0, len(moods))
	for i, m := range moods {
		ts := crisisNow.Add(-time.Duration(len(moods)-1-i) * time.Hour)
		out = append(out, MoodSample{Timestamp: ts.UnixMilli(), Mood: m})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	const (
		sad   = models.MoodSad
		tired = models.MoodTired
		angry = models.MoodAngry
		happy = models.MoodHappy
		calm  = models.MoodCalm
	)

	tests := []struct {
		name      string
		samples   []MoodSample
		evaluable bool
		fire      bool
		recentRun bool
	}{
		{name: "too few", samples: series(sad, sad), evaluable: false},
		{name: "four of five negative", samples: series(sad, happy, tired, angry, sad), evaluable: true, fire: true, recentRun: true},
		{name: "four of five, latest positive", samples: series(sad, tired, angry, sad, happy), evaluable: true, fire: true},
		{name: "three spread out", samples: series(sad, happy, tired, calm, angry), evaluable: true, fire: false},
		{name: "latest three negative", samples: series(happy, calm, sad, tired, angry), evaluable: true, fire: true, recentRun: true},
		{name: "all positive", samples: series(happy, calm, happy), evaluable: true, fire: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Evaluate(tt.samples, crisisNow, time.Time{})
			assert.Equal(t, tt.evaluable, a.Evaluable)
			assert.Equal(t, tt.fire, a.Fire)
			assert.Equal(t, tt.recentRun, a.RecentRunNegative)
		})
	}
}

func TestEvaluate_Window(t *testing.T) {
	old := crisisNow.Add(-CrisisWindow - time.Minute).UnixMilli()
	samples := append(series(models.MoodSad, models.MoodSad), MoodSample{Timestamp: old, Mood: models.MoodSad})

	a := Evaluate(samples, crisisNow, time.Time{})
	assert.False(t, a.Evaluable)
	assert.Equal(t, 2, a.Samples)
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	s := series(models.MoodHappy, models.MoodCalm, models.MoodSad, models.MoodTired, models.MoodAngry)
	reversed := []MoodSample{s[4], s[3], s[2], s[1], s[0]}

	assert.Equal(t, Evaluate(s, crisisNow, time.Time{}), Evaluate(reversed, crisisNow, time.Time{}))
}

func TestEvaluate_SkipsEmptyMoods(t *testing.T) {
	s := series(models.MoodSad, "", models.MoodSad)
	a := Evaluate(s, crisisNow, time.Time{})
	assert.False(t, a.Evaluable)
}

func TestEvaluate_Cooldown(t *testing.T) {
	s := series(models.MoodSad, models.MoodSad, models.MoodSad)

	a := Evaluate(s, crisisNow, crisisNow.Add(-CrisisCooldown+time.Hour))
	assert.False(t, a.Fire)
	assert.True(t, a.CoolingDown)

	a = Evaluate(s, crisisNow, crisisNow.Add(-CrisisCooldown))
	assert.True(t, a.Fire)
	assert.False(t, a.CoolingDown)
}

func TestCrisisMonitor(t *testing.T) {
	ctx := context.Background()
	db, err := localdb.Open(ctx, localdb.MemoryDSN)
	require.NoError(t, err)
	defer db.Close()

	diary := entries.NewDiaryRepository(db)
	moods := entries.NewMoodRepository(db)
	meta := metadata.NewSQLiteRepository(db)

	now := crisisNow
	m := NewCrisisMonitor(diary, moods, meta, func() time.Time { return now })

	hdr := func(id string, ago time.Duration) models.Header {
		return models.Header{
			LocalID:   id,
			UserID:    "u1",
			Timestamp: crisisNow.Add(-ago).UnixMilli(),
			SyncState: models.SyncPending,
		}
	}
	require.NoError(t, diary.Upsert(ctx, &models.DiaryEntry{Header: hdr("d1", 3*time.Hour), Text: "meh", Mood: models.MoodSad}))
	require.NoError(t, diary.Upsert(ctx, &models.DiaryEntry{Header: hdr("d2", 2*time.Hour), Text: "no mood"}))
	require.NoError(t, moods.Upsert(ctx, &models.MoodEntry{Header: hdr("m1", 2*time.Hour), Mood: models.MoodAnxious, Source: models.MoodSourceManual}))
	require.NoError(t, moods.Upsert(ctx, &models.MoodEntry{Header: hdr("m2", time.Hour), Mood: models.MoodTired, Source: models.MoodSourceManual}))

	a, err := m.Check(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.Evaluable)
	assert.True(t, a.Fire)
	assert.Equal(t, 3, a.Samples)

	other, err := m.Check(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, other.Evaluable)

	require.NoError(t, m.MarkNotified(ctx, "u1"))
	last, err := m.LastNotified(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, last.Equal(crisisNow))

	now = crisisNow.Add(24 * time.Hour)
	a, err = m.Check(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.Fire)

	// new data does not lift the cooldown
	require.NoError(t, moods.Upsert(ctx, &models.MoodEntry{Header: hdr("m3", -23*time.Hour), Mood: models.MoodAngry, Source: models.MoodSourceManual}))
	a, err = m.Check(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, a.Fire)
	assert.True(t, a.CoolingDown)

	now = crisisNow.Add(CrisisCooldown)
	a, err = m.Check(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.Fire)
}
