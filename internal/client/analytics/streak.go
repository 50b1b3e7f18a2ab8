// Package analytics derives user-facing signals from the local store: the
// daily streak with its milestone notifications and the crisis signal over
// recent moods. Nothing here depends on sync having completed.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/streaks"
	"github.com/dmitrijs2005/moodkeeper/internal/timex"
)

// MinCompletedRun is the shortest run of consecutive days counted by
// CompletedStreakCount.
const MinCompletedRun = 7

var fixedMilestones = map[int]bool{1: true, 3: true, 7: true, 14: true, 30: true, 60: true, 90: true, 365: true}

// IsMilestone reports whether a streak of days is worth a notification.
func IsMilestone(days int) bool {
	return fixedMilestones[days] || (days > 0 && days%10 == 0)
}

// Advance applies one active day to s. Recording the same day twice is a
// no-op, the day after the last one extends the streak, and anything else
// starts over at 1.
func Advance(s models.Streak, today string) (models.Streak, error) {
	if _, err := timex.ParseDateKey(today); err != nil {
		return s, fmt.Errorf("invalid date key %q: %w", today, err)
	}

	switch s.LastEntryDateKey {
	case "":
		s.Current = 1
	case today:
		return s, nil
	default:
		yesterday, _ := timex.PrevDateKey(today)
		if s.LastEntryDateKey == yesterday {
			s.Current++
		} else {
			s.Current = 1
		}
	}

	s.Longest = max(s.Longest, s.Current)
	s.LastEntryDateKey = today
	return s, nil
}

// Replay folds Advance over dateKeys starting from an empty state.
func Replay(userID string, dateKeys []string) (models.Streak, error) {
	s := models.Streak{UserID: userID}
	for _, k := range dateKeys {
		var err error
		if s, err = Advance(s, k); err != nil {
			return s, err
		}
	}
	return s, nil
}

// CompletedStreakCount counts maximal runs of consecutive days that are at
// least MinCompletedRun long. keys must be sorted and distinct. A run still
// open at the end of the list counts once it is long enough.
func CompletedStreakCount(keys []string) (int, error) {
	count, run := 0, 0
	prev := ""
	for _, k := range keys {
		if _, err := timex.ParseDateKey(k); err != nil {
			return 0, fmt.Errorf("invalid date key %q: %w", k, err)
		}
		if prev != "" {
			next, _ := timex.NextDateKey(prev)
			if k != next {
				if run >= MinCompletedRun {
					count++
				}
				run = 0
			}
		}
		run++
		prev = k
	}
	if run >= MinCompletedRun {
		count++
	}
	return count, nil
}

// StreakTracker keeps the incremental streak of each user.
type StreakTracker struct {
	repo streaks.Repository
	now  func() time.Time

	// serializes the read-modify-write in RecordActivity
	mu sync.Mutex
}

func NewStreakTracker(repo streaks.Repository, now func() time.Time) *StreakTracker {
	if now == nil {
		now = time.Now
	}
	return &StreakTracker{repo: repo, now: now}
}

// RecordActivity counts today as an active day for the user.
func (t *StreakTracker) RecordActivity(ctx context.Context, userID, today string) (models.Streak, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.repo.Get(ctx, userID)
	if err != nil {
		return s, err
	}
	next, err := Advance(s, today)
	if err != nil {
		return s, err
	}
	if next == s {
		return s, nil
	}
	if err := t.repo.Save(ctx, next); err != nil {
		return s, err
	}
	return next, nil
}

func (t *StreakTracker) State(ctx context.Context, userID string) (models.Streak, error) {
	return t.repo.Get(ctx, userID)
}

func (t *StreakTracker) NotifiedMilestones(ctx context.Context, userID string) ([]int, error) {
	return t.repo.Milestones(ctx, userID)
}

// ShouldNotify reports whether a streak of days is a milestone the user has
// not been notified about yet.
func (t *StreakTracker) ShouldNotify(ctx context.Context, userID string, days int) (bool, error) {
	if !IsMilestone(days) {
		return false, nil
	}
	seen, err := t.repo.HasMilestone(ctx, userID, days)
	if err != nil {
		return false, err
	}
	return !seen, nil
}

// MarkNotified records that the milestone was shown. It is never shown again.
func (t *StreakTracker) MarkNotified(ctx context.Context, userID string, days int) error {
	return t.repo.AddMilestone(ctx, userID, days, t.now())
}

// Reset drops the streak and the notified milestones of the user.
func (t *StreakTracker) Reset(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.Reset(ctx, userID)
}
