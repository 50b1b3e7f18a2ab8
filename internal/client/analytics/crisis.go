package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
)

const (
	CrisisWindow     = 5 * 24 * time.Hour
	CrisisMinEntries = 3
	CrisisRecentRun  = 3
	CrisisCooldown   = 3 * 24 * time.Hour

	// the negative ratio threshold is 4/5
	crisisRatioNum = 4
	crisisRatioDen = 5
)

type MoodSample struct {
	Timestamp int64
	Mood      models.Mood
}

// Assessment is the outcome of one crisis evaluation. Evaluable is false
// when the window holds too few entries to say anything.
type Assessment struct {
	Evaluable bool `json:"evaluable" yaml:"evaluable"`
	Fire      bool `json:"fire" yaml:"fire"`

	Samples  int     `json:"samples" yaml:"samples"`
	Negative int     `json:"negative" yaml:"negative"`
	Ratio    float64 `json:"ratio" yaml:"ratio"`

	// RecentRunNegative is set when the most recent entries are all negative.
	RecentRunNegative bool `json:"recentRunNegative" yaml:"recentRunNegative"`

	// CoolingDown is set when a signal would fire but was suppressed by a
	// recent notification.
	CoolingDown bool `json:"coolingDown" yaml:"coolingDown"`
}

// Evaluate looks at samples within CrisisWindow before now. The signal fires
// when at least 80% of them are negative or the latest CrisisRecentRun are
// all negative, unless lastNotified is within CrisisCooldown of now.
func Evaluate(samples []MoodSample, now, lastNotified time.Time) Assessment {
	cutoff := now.Add(-CrisisWindow).UnixMilli()
	upper := now.UnixMilli()

	window := make([]MoodSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp >= cutoff && s.Timestamp <= upper && s.Mood != "" {
			window = append(window, s)
		}
	}

	a := Assessment{Samples: len(window)}
	if len(window) < CrisisMinEntries {
		return a
	}
	a.Evaluable = true

	sort.SliceStable(window, func(i, j int) bool { return window[i].Timestamp > window[j].Timestamp })

	for _, s := range window {
		if s.Mood.Negative() {
			a.Negative++
		}
	}
	a.Ratio = float64(a.Negative) / float64(len(window))

	a.RecentRunNegative = true
	for _, s := range window[:CrisisRecentRun] {
		if !s.Mood.Negative() {
			a.RecentRunNegative = false
			break
		}
	}

	signal := a.Negative*crisisRatioDen >= len(window)*crisisRatioNum || a.RecentRunNegative
	if signal && !lastNotified.IsZero() && now.Sub(lastNotified) < CrisisCooldown {
		a.CoolingDown = true
		signal = false
	}
	a.Fire = signal
	return a
}

type diarySource interface {
	GetAll(ctx context.Context, userID string) ([]models.DiaryEntry, error)
}

type moodSource interface {
	GetAll(ctx context.Context, userID string) ([]models.MoodEntry, error)
}

// CrisisMonitor evaluates stored diary and mood entries and keeps the
// cooldown in the metadata store.
type CrisisMonitor struct {
	diary diarySource
	moods moodSource
	meta  metadata.Repository
	now   func() time.Time
}

func NewCrisisMonitor(diary diarySource, moods moodSource, meta metadata.Repository, now func() time.Time) *CrisisMonitor {
	if now == nil {
		now = time.Now
	}
	return &CrisisMonitor{diary: diary, moods: moods, meta: meta, now: now}
}

func (m *CrisisMonitor) Check(ctx context.Context, userID string) (Assessment, error) {
	diary, err := m.diary.GetAll(ctx, userID)
	if err != nil {
		return Assessment{}, err
	}
	moods, err := m.moods.GetAll(ctx, userID)
	if err != nil {
		return Assessment{}, err
	}

	samples := make([]MoodSample, 0, len(diary)+len(moods))
	for _, e := range diary {
		samples = append(samples, MoodSample{Timestamp: e.Timestamp, Mood: e.Mood})
	}
	for _, e := range moods {
		samples = append(samples, MoodSample{Timestamp: e.Timestamp, Mood: e.Mood})
	}

	last, err := m.LastNotified(ctx, userID)
	if err != nil {
		return Assessment{}, err
	}
	return Evaluate(samples, m.now(), last), nil
}

func (m *CrisisMonitor) LastNotified(ctx context.Context, userID string) (time.Time, error) {
	return metadata.GetTime(ctx, m.meta, metadata.UserKey(metadata.KeyCrisisNotifiedAt, userID))
}

// MarkNotified starts the cooldown. Call it together with showing the alert.
func (m *CrisisMonitor) MarkNotified(ctx context.Context, userID string) error {
	return metadata.SetTime(ctx, m.meta, metadata.UserKey(metadata.KeyCrisisNotifiedAt, userID), m.now())
}
