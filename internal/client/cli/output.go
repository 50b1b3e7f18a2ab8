package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Exit codes of the moodkeeper binary.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries an exit code up to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to the process exit code. Invalid input and bad
// configuration exit with ExitCommandError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, common.ErrorValidation) {
		return ExitCommandError
	}
	return ExitFailure
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unsupported format %q", common.ErrorValidation, format)
	}
}

// emit writes v in the session format, using text for the human form.
func (a *App) emit(v any, text func(w io.Writer) error) error {
	if a.format == FormatText || a.format == "" {
		return text(a.out)
	}
	return writeStructured(a.out, a.format, v)
}

const timeLayout = "2006-01-02 15:04"

func (a *App) formatMillis(ms int64) string {
	return time.UnixMilli(ms).In(a.loc).Format(timeLayout)
}

func writeEntries(w io.Writer, list services.Entries, when func(int64) string) error {
	if list.Len() == 0 {
		_, err := fmt.Fprintln(w, "No entries.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLOCAL ID\tWHEN\tSTATE\tDETAILS")
	for _, e := range list.Diary {
		details := string(e.Mood)
		if details != "" {
			details += " "
		}
		details += shorten(e.Text, 40)
		fmt.Fprintf(tw, "diary\t%s\t%s\t%s\t%s\n", e.LocalID, when(e.Timestamp), e.SyncState, details)
	}
	for _, e := range list.Moods {
		fmt.Fprintf(tw, "mood\t%s\t%s\t%s\t%s (%s)\n", e.LocalID, when(e.Timestamp), e.SyncState, e.Mood, e.Source)
	}
	for _, e := range list.Activity {
		var parts []string
		if e.Weight != nil {
			parts = append(parts, fmt.Sprintf("weight=%.1f", *e.Weight))
		}
		if e.Steps != nil {
			parts = append(parts, fmt.Sprintf("steps=%d", *e.Steps))
		}
		fmt.Fprintf(tw, "activity\t%s\t%s\t%s\t%s\n", e.LocalID, when(e.Timestamp), e.SyncState, strings.Join(parts, " "))
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeSyncReport(w io.Writer, r services.SyncReport) error {
	if r.Offline {
		_, err := fmt.Fprintln(w, "Offline, nothing synced.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFETCHED\tUPDATED\tLINKED\tINSERTED\tPUSHED\tFAILED\tNOTE")
	for _, k := range r.Kinds {
		note := ""
		switch {
		case k.Err != nil:
			note = k.Err.Error()
		case k.Pull.RemoteFailed:
			note = "remote unreachable"
		case k.Shared:
			note = "joined running sync"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			k.Kind, k.Pull.Fetched, k.Pull.Updated, k.Pull.Linked, k.Pull.Inserted,
			k.Push.Pushed, k.Push.Failed, note)
	}
	return tw.Flush()
}
