package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/analytics"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/timex"
)

func (a *App) stamp(at time.Time) models.Header {
	h := models.Header{UserID: a.userID}
	if !at.IsZero() {
		h.Timestamp = at.UnixMilli()
	}
	return h
}

// AddDiary stores a diary entry. An empty mood is allowed.
func (a *App) AddDiary(ctx context.Context, text, mood string, at time.Time) error {
	e := &models.DiaryEntry{Header: a.stamp(at), Text: text, Mood: models.Mood(mood)}
	res, err := a.entries.SaveDiary(ctx, e)
	if err != nil {
		return err
	}
	return a.afterSave(ctx, res, e.Mood != "")
}

func (a *App) AddMood(ctx context.Context, mood, source string, at time.Time) error {
	e := &models.MoodEntry{Header: a.stamp(at), Mood: models.Mood(mood), Source: models.MoodSource(source)}
	res, err := a.entries.SaveMood(ctx, e)
	if err != nil {
		return err
	}
	return a.afterSave(ctx, res, true)
}

func (a *App) AddActivity(ctx context.Context, weight *float64, steps *int64, at time.Time) error {
	e := &models.ActivityEntry{Header: a.stamp(at), Weight: weight, Steps: steps}
	res, err := a.entries.SaveActivity(ctx, e)
	if err != nil {
		return err
	}
	return a.afterSave(ctx, res, false)
}

// saveOutput is what a save prints in structured formats.
type saveOutput struct {
	services.SaveResult `yaml:",inline"`

	Milestone int                   `json:"milestone,omitempty" yaml:"milestone,omitempty"`
	Crisis    *analytics.Assessment `json:"crisis,omitempty" yaml:"crisis,omitempty"`
}

// afterSave reports the save and shows due notifications. Each notification
// is marked as shown right after it is printed.
func (a *App) afterSave(ctx context.Context, res services.SaveResult, moodChanged bool) error {
	out := saveOutput{SaveResult: res}

	if res.Streak != nil {
		days := res.Streak.Current
		due, err := a.streaks.ShouldNotify(ctx, a.userID, days)
		if err != nil {
			return err
		}
		if due {
			out.Milestone = days
		}
	}

	if moodChanged {
		as, err := a.crisis.Check(ctx, a.userID)
		if err != nil {
			return err
		}
		if as.Fire {
			out.Crisis = &as
		}
	}

	err := a.emit(out, func(w io.Writer) error {
		state := "saved locally, will sync later"
		if res.Pushed {
			state = "saved and synced"
		}
		fmt.Fprintf(w, "Entry %s %s.\n", res.LocalID, state)
		if res.Streak != nil {
			fmt.Fprintf(w, "Streak: %d day(s).\n", res.Streak.Current)
		}
		if out.Milestone > 0 {
			fmt.Fprintf(w, "Milestone reached: %d day streak!\n", out.Milestone)
		}
		if out.Crisis != nil {
			writeCrisisAlert(w)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if out.Milestone > 0 {
		if err := a.streaks.MarkNotified(ctx, a.userID, out.Milestone); err != nil {
			return err
		}
	}
	if out.Crisis != nil {
		if err := a.crisis.MarkNotified(ctx, a.userID); err != nil {
			return err
		}
	}
	return nil
}

func writeCrisisAlert(w io.Writer) {
	fmt.Fprintln(w, "Your recent entries have been mostly low. You do not have to handle this alone:")
	fmt.Fprintln(w, "consider reaching out to someone you trust or a local support line.")
}

// Kind filters accepted by List.
var listKinds = []string{"", "diary", "mood", "activity"}

func filterEntries(list services.Entries, kind string) (services.Entries, error) {
	if !slices.Contains(listKinds, kind) {
		return list, fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
	}
	switch kind {
	case "diary":
		return services.Entries{Diary: list.Diary}, nil
	case "mood":
		return services.Entries{Moods: list.Moods}, nil
	case "activity":
		return services.Entries{Activity: list.Activity}, nil
	}
	return list, nil
}

// List prints the local entries of the user, optionally only the pending ones.
func (a *App) List(ctx context.Context, kind string, pendingOnly bool) error {
	var (
		list services.Entries
		err  error
	)
	if pendingOnly {
		list, err = a.entries.ListPending(ctx, a.userID)
	} else {
		list, err = a.entries.ListAll(ctx, a.userID)
	}
	if err != nil {
		return err
	}
	if list, err = filterEntries(list, kind); err != nil {
		return err
	}
	return a.emit(list, func(w io.Writer) error {
		return writeEntries(w, list, a.formatMillis)
	})
}

// Sync runs a full pull and push of every kind.
func (a *App) Sync(ctx context.Context) error {
	a.refreshOnline(ctx)
	report, err := a.sync.SyncAll(ctx, a.userID)
	if perr := a.emit(report, func(w io.Writer) error { return writeSyncReport(w, report) }); perr != nil {
		return perr
	}
	return err
}

// Flush pushes pending rows without pulling.
func (a *App) Flush(ctx context.Context) error {
	a.refreshOnline(ctx)
	report, err := a.sync.SyncPendingOnly(ctx, a.userID)
	if perr := a.emit(report, func(w io.Writer) error { return writeSyncReport(w, report) }); perr != nil {
		return perr
	}
	return err
}

func (a *App) Dedupe(ctx context.Context) error {
	removed, err := a.entries.Deduplicate(ctx, a.userID)
	if err != nil {
		return err
	}
	return a.emit(removed, func(w io.Writer) error {
		for _, k := range []string{"diary", "mood", "activity"} {
			fmt.Fprintf(w, "%s: %d duplicate(s) removed\n", k, removed[k])
		}
		return nil
	})
}

type streakOutput struct {
	models.Streak `yaml:",inline"`

	// Active is false once a full day has passed without an entry.
	Active bool `json:"active" yaml:"active"`

	Milestones    []int      `json:"milestones" yaml:"milestones"`
	CompletedRuns int        `json:"completedRuns" yaml:"completedRuns"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty" yaml:"lastSyncAt,omitempty"`
}

// activeDays returns the sorted distinct calendar days that have a diary or
// mood entry.
func (a *App) activeDays(ctx context.Context) ([]string, error) {
	list, err := a.entries.ListAll(ctx, a.userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(list.Diary)+len(list.Moods))
	for _, e := range list.Diary {
		keys = append(keys, timex.DateKeyFromMillis(e.Timestamp, a.loc))
	}
	for _, e := range list.Moods {
		keys = append(keys, timex.DateKeyFromMillis(e.Timestamp, a.loc))
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (a *App) Streak(ctx context.Context) error {
	st, err := a.streaks.State(ctx, a.userID)
	if err != nil {
		return err
	}
	out := streakOutput{Streak: st}

	today := timex.DateKey(a.now(), a.loc)
	yesterday, _ := timex.PrevDateKey(today)
	out.Active = st.LastEntryDateKey == today || st.LastEntryDateKey == yesterday

	if out.Milestones, err = a.streaks.NotifiedMilestones(ctx, a.userID); err != nil {
		return err
	}
	days, err := a.activeDays(ctx)
	if err != nil {
		return err
	}
	if out.CompletedRuns, err = analytics.CompletedStreakCount(days); err != nil {
		return err
	}
	last, err := a.sync.LastSyncAt(ctx, a.userID)
	if err != nil {
		return err
	}
	if !last.IsZero() {
		out.LastSyncAt = &last
	}

	return a.emit(out, func(w io.Writer) error {
		current := st.Current
		if !out.Active {
			current = 0
		}
		fmt.Fprintf(w, "Current streak: %d day(s)\n", current)
		fmt.Fprintf(w, "Longest streak: %d day(s)\n", st.Longest)
		fmt.Fprintf(w, "Completed streaks of %d+ days: %d\n", analytics.MinCompletedRun, out.CompletedRuns)
		if out.LastSyncAt != nil {
			fmt.Fprintf(w, "Last sync: %s\n", out.LastSyncAt.In(a.loc).Format(timeLayout))
		}
		return nil
	})
}

// Crisis prints the current assessment. With ack a firing alert is marked
// as delivered, which starts the cooldown.
func (a *App) Crisis(ctx context.Context, ack bool) error {
	as, err := a.crisis.Check(ctx, a.userID)
	if err != nil {
		return err
	}
	err = a.emit(as, func(w io.Writer) error {
		switch {
		case !as.Evaluable:
			fmt.Fprintf(w, "Not enough entries in the last %d days (%d).\n",
				int(analytics.CrisisWindow/(24*time.Hour)), as.Samples)
		case as.Fire:
			writeCrisisAlert(w)
		case as.CoolingDown:
			fmt.Fprintln(w, "Low mood detected, alert already shown recently.")
		default:
			fmt.Fprintf(w, "No concern: %d of %d recent entries negative.\n", as.Negative, as.Samples)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ack && as.Fire {
		return a.crisis.MarkNotified(ctx, a.userID)
	}
	return nil
}

// Export writes every local entry of the user to w in format.
func (a *App) Export(ctx context.Context, w io.Writer, format string) error {
	list, err := a.entries.ListAll(ctx, a.userID)
	if err != nil {
		return err
	}
	return writeStructured(w, format, list)
}

var errWipeNotConfirmed = &ExitError{Code: ExitCommandError, Err: errors.New("wipe deletes all local data of the user; pass --yes to confirm")}

// Wipe deletes local data only. Remote documents stay and come back on the
// next sync.
func (a *App) Wipe(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return errWipeNotConfirmed
	}
	n, err := a.entries.WipeUser(ctx, a.userID)
	if err != nil {
		return err
	}
	return a.emit(map[string]int64{"deleted": n}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted %d local entries of %s.\n", n, a.userID)
		return err
	})
}

// flushTimeout bounds the final push when watch is stopped.
const flushTimeout = 10 * time.Second

// Watch keeps syncing until ctx is done: on every tick of SyncInterval and
// whenever the remote becomes reachable. Pending rows are flushed on exit.
func (a *App) Watch(ctx context.Context) error {
	if a.monitor == nil {
		return &ExitError{Code: ExitCommandError, Err: errors.New("watch needs a remote backend")}
	}

	go a.monitor.Run(ctx, func(online bool) {
		if !online {
			a.setMode(ctx, ModeOffline)
			return
		}
		a.setMode(ctx, ModeOnline)
		a.syncInBackground(ctx, false)
	})

	ticker := time.NewTicker(a.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			a.syncInBackground(fctx, true)
			return nil
		case <-ticker.C:
			a.syncInBackground(ctx, false)
		}
	}
}

func (a *App) syncInBackground(ctx context.Context, pendingOnly bool) {
	var (
		report services.SyncReport
		err    error
	)
	if pendingOnly {
		report, err = a.sync.SyncPendingOnly(ctx, a.userID)
	} else {
		report, err = a.sync.SyncAll(ctx, a.userID)
	}
	if err != nil {
		a.logger.Error(ctx, "background sync failed", "error", err)
		return
	}
	if !report.Offline {
		a.logger.Info(ctx, "background sync done", "complete", report.Complete())
	}
}
