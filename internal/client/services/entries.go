package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/analytics"
	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/timex"
)

// EntryDeps wires an EntryService.
type EntryDeps struct {
	Diary    *Reconciler[models.DiaryEntry]
	Moods    *Reconciler[models.MoodEntry]
	Activity *Reconciler[models.ActivityEntry]

	Streaks  *analytics.StreakTracker
	Metadata metadata.Repository
	Online   connectivity.Checker
	Logger   logging.Logger

	// Location decides calendar days. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// EntryService is what the UI talks to. Saving never waits for the network:
// the row is stored locally first and pushed afterwards on a best effort
// basis when the remote looks reachable.
type EntryService struct {
	diary    *Reconciler[models.DiaryEntry]
	moods    *Reconciler[models.MoodEntry]
	activity *Reconciler[models.ActivityEntry]
	streaks  *analytics.StreakTracker
	meta     metadata.Repository
	online   connectivity.Checker
	logger   logging.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewEntryService(d EntryDeps) *EntryService {
	s := &EntryService{
		diary:    d.Diary,
		moods:    d.Moods,
		activity: d.Activity,
		streaks:  d.Streaks,
		meta:     d.Metadata,
		online:   d.Online,
		logger:   d.Logger,
		loc:      d.Location,
		now:      d.Now,
	}
	if s.online == nil {
		s.online = connectivity.Static(false)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SaveResult describes a saved entry.
type SaveResult struct {
	LocalID string `json:"localId" yaml:"localId"`

	// Pushed is set when the entry also reached the remote store.
	Pushed bool `json:"pushed" yaml:"pushed"`

	// Streak is the updated streak for kinds that count towards it.
	Streak *models.Streak `json:"streak,omitempty" yaml:"streak,omitempty"`
}

// Entries groups the rows of all kinds.
type Entries struct {
	Diary    []models.DiaryEntry    `json:"diary" yaml:"diary"`
	Moods    []models.MoodEntry     `json:"moods" yaml:"moods"`
	Activity []models.ActivityEntry `json:"activity" yaml:"activity"`
}

func (e Entries) Len() int { return len(e.Diary) + len(e.Moods) + len(e.Activity) }

func (s *EntryService) stamp(h *models.Header) {
	if h.Timestamp == 0 {
		h.Timestamp = s.now().UnixMilli()
	}
}

func (s *EntryService) SaveDiary(ctx context.Context, e *models.DiaryEntry) (SaveResult, error) {
	if e.Text == "" {
		return SaveResult{}, fmt.Errorf("%w: diary text is empty", common.ErrorValidation)
	}
	if e.Mood != "" {
		m, err := models.ParseMood(string(e.Mood))
		if err != nil {
			return SaveResult{}, fmt.Errorf("%w: %w", common.ErrorValidation, err)
		}
		e.Mood = m
	}
	s.stamp(&e.Header)

	id, err := s.diary.SaveLocal(ctx, e)
	if err != nil {
		return SaveResult{}, err
	}
	res := SaveResult{LocalID: id, Streak: s.recordStreak(ctx, e.UserID)}
	res.Pushed = pushBestEffort(ctx, s.online, s.logger, s.diary, e)
	return res, nil
}

func (s *EntryService) SaveMood(ctx context.Context, e *models.MoodEntry) (SaveResult, error) {
	m, err := models.ParseMood(string(e.Mood))
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	e.Mood = m
	if e.Source == "" {
		e.Source = models.MoodSourceManual
	}
	s.stamp(&e.Header)
	if e.DateKey == "" {
		e.DateKey = timex.DateKeyFromMillis(e.Timestamp, s.loc)
	}

	id, err := s.moods.SaveLocal(ctx, e)
	if err != nil {
		return SaveResult{}, err
	}
	res := SaveResult{LocalID: id, Streak: s.recordStreak(ctx, e.UserID)}
	res.Pushed = pushBestEffort(ctx, s.online, s.logger, s.moods, e)
	return res, nil
}

func (s *EntryService) SaveActivity(ctx context.Context, e *models.ActivityEntry) (SaveResult, error) {
	if e.Weight == nil && e.Steps == nil {
		return SaveResult{}, fmt.Errorf("%w: activity needs a weight or a step count", common.ErrorValidation)
	}
	if (e.Weight != nil && *e.Weight <= 0) || (e.Steps != nil && *e.Steps < 0) {
		return SaveResult{}, fmt.Errorf("%w: activity values must be positive", common.ErrorValidation)
	}
	s.stamp(&e.Header)

	id, err := s.activity.SaveLocal(ctx, e)
	if err != nil {
		return SaveResult{}, err
	}
	res := SaveResult{LocalID: id}
	res.Pushed = pushBestEffort(ctx, s.online, s.logger, s.activity, e)
	return res, nil
}

// recordStreak counts today for the user. The entry is already stored, so
// a failure here is logged and not returned.
func (s *EntryService) recordStreak(ctx context.Context, userID string) *models.Streak {
	if s.streaks == nil {
		return nil
	}
	today := timex.DateKey(s.now(), s.loc)
	st, err := s.streaks.RecordActivity(ctx, userID, today)
	if err != nil {
		s.logger.Error(ctx, "failed to record streak", "user_id", userID, "error", err)
		return nil
	}
	return &st
}

// pushBestEffort pushes e when online and reports whether it got through.
// The entry is already stored locally, so no failure here fails the save:
// the row stays pending and the next sync links or pushes it.
func pushBestEffort[E any](ctx context.Context, online connectivity.Checker, logger logging.Logger, r *Reconciler[E], e *E) bool {
	if !online.IsOnline() {
		return false
	}
	err := r.PushOne(ctx, e)
	if err != nil && !errors.Is(err, common.ErrRemote) {
		logger.Error(ctx, "push after save failed", "kind", r.KindName(), "error", err)
	}
	return err == nil
}

func (s *EntryService) ListAll(ctx context.Context, userID string) (Entries, error) {
	var out Entries
	var err error
	if out.Diary, err = s.diary.QueryAll(ctx, userID); err != nil {
		return out, err
	}
	if out.Moods, err = s.moods.QueryAll(ctx, userID); err != nil {
		return out, err
	}
	if out.Activity, err = s.activity.QueryAll(ctx, userID); err != nil {
		return out, err
	}
	return out, nil
}

func (s *EntryService) ListPending(ctx context.Context, userID string) (Entries, error) {
	var out Entries
	var err error
	if out.Diary, err = s.diary.QueryPending(ctx, userID); err != nil {
		return out, err
	}
	if out.Moods, err = s.moods.QueryPending(ctx, userID); err != nil {
		return out, err
	}
	if out.Activity, err = s.activity.QueryPending(ctx, userID); err != nil {
		return out, err
	}
	return out, nil
}

// Deduplicate runs the dedup pass of every kind and returns how many rows
// each removed.
func (s *EntryService) Deduplicate(ctx context.Context, userID string) (map[string]int, error) {
	removed := make(map[string]int, 3)
	var err error
	if removed[s.diary.KindName()], err = s.diary.Deduplicate(ctx, userID); err != nil {
		return removed, err
	}
	if removed[s.moods.KindName()], err = s.moods.Deduplicate(ctx, userID); err != nil {
		return removed, err
	}
	if removed[s.activity.KindName()], err = s.activity.Deduplicate(ctx, userID); err != nil {
		return removed, err
	}
	return removed, nil
}

// WipeUser deletes every local trace of the user: entries of all kinds,
// streak state and per-user metadata. The remote store is not touched.
func (s *EntryService) WipeUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	for _, del := range []func(context.Context, string) (int64, error){
		s.diary.DeleteUser, s.moods.DeleteUser, s.activity.DeleteUser,
	} {
		n, err := del(ctx, userID)
		if err != nil {
			return total, err
		}
		total += n
	}

	if s.streaks != nil {
		if err := s.streaks.Reset(ctx, userID); err != nil {
			return total, err
		}
	}
	if s.meta != nil {
		for _, prefix := range []string{metadata.KeyCrisisNotifiedAt, metadata.KeyLastSyncAt} {
			if err := s.meta.Delete(ctx, metadata.UserKey(prefix, userID)); err != nil {
				return total, err
			}
		}
	}

	s.logger.Info(ctx, "user data wiped", "user_id", userID, "rows", total)
	return total, nil
}

// Syncers returns the reconcilers in the order the orchestrator reports them.
func (s *EntryService) Syncers() []KindSyncer {
	return []KindSyncer{s.diary, s.moods, s.activity}
}
