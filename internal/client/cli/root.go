package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmitrijs2005/moodkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/moodkeeper/internal/client/config"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/filex"
)

// buildApp is a test seam.
var buildApp = NewApp

type rootState struct {
	v      *viper.Viper
	format string
}

// NewRootCommand creates the moodkeeper command tree.
func NewRootCommand() *cobra.Command {
	st := &rootState{v: viper.New()}
	config.Defaults(st.v)

	cmd := &cobra.Command{
		Use:   "moodkeeper",
		Short: "Offline-first mood diary",
		Long: `moodkeeper records diary, mood and activity entries in a local database
and keeps them in sync with a remote store whenever it is reachable.`,
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(st.format) {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("invalid format %q: must be one of %v", st.format, ValidFormats)}
			}
			return nil
		},
	}

	if err := config.BindFlags(st.v, cmd.PersistentFlags()); err != nil {
		panic(err)
	}
	cmd.PersistentFlags().StringVar(&st.format, "format", FormatText, "output format (text|json|yaml)")

	cmd.AddCommand(
		newDiaryCommand(st),
		newMoodCommand(st),
		newActivityCommand(st),
		newListCommand(st, "list", "List local entries", false),
		newListCommand(st, "pending", "List entries not yet synced", true),
		newSimpleCommand(st, "sync", "Pull remote changes and push pending entries", (*App).Sync),
		newSimpleCommand(st, "flush", "Push pending entries without pulling", (*App).Flush),
		newSimpleCommand(st, "dedupe", "Remove duplicate local entries", (*App).Dedupe),
		newSimpleCommand(st, "streak", "Show the current streak", (*App).Streak),
		newCrisisCommand(st),
		newExportCommand(st),
		newWipeCommand(st),
		newSimpleCommand(st, "watch", "Keep syncing in the background until interrupted", (*App).Watch),
		newREPLCommand(st),
	)
	return cmd
}

// run loads the configuration, builds an App for the duration of fn and
// closes it afterwards.
func (st *rootState) run(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	configFile, _ := cmd.Flags().GetString(config.FlagConfig)
	cfg, err := config.Load(st.v, configFile)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Err: err}
	}

	if cfg.Remote == config.RemoteGRPC && cfg.AccessToken == "" && stdinIsTerminal() {
		if cfg.AccessToken, err = GetSecret("Access token", cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitCommandError, Err: err}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a.format = st.format
	defer a.Close()

	return fn(ctx, a)
}

func newSimpleCommand(st *rootState, use, short string, fn func(*App, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error { return fn(a, ctx) })
		},
	}
}

var atLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseAt reads an event time given on the command line. Times without a
// zone are taken in loc. Empty means now.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q", common.ErrorValidation, s)
}

func newDiaryCommand(st *rootState) *cobra.Command {
	var mood, at string
	cmd := &cobra.Command{
		Use:   "diary [text]",
		Short: "Write a diary entry",
		Long:  "Write a diary entry. Without arguments the text is read from standard input until an empty line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error {
				t, err := parseAt(at, a.loc)
				if err != nil {
					return err
				}
				text := strings.Join(args, " ")
				if text == "" {
					if text, err = GetMultiline(bufio.NewReader(cmd.InOrStdin()), "Diary text", cmd.ErrOrStderr()); err != nil {
						return err
					}
				}
				return a.AddDiary(ctx, text, mood, t)
			})
		},
	}
	cmd.Flags().StringVarP(&mood, "mood", "m", "", "mood of the entry")
	cmd.Flags().StringVar(&at, "at", "", "event time, default now")
	return cmd
}

func newMoodCommand(st *rootState) *cobra.Command {
	var source, at string
	cmd := &cobra.Command{
		Use:   "mood <label>",
		Short: "Record a mood check-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error {
				t, err := parseAt(at, a.loc)
				if err != nil {
					return err
				}
				return a.AddMood(ctx, args[0], source, t)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "where the mood comes from (manual, diary, check_in)")
	cmd.Flags().StringVar(&at, "at", "", "event time, default now")
	return cmd
}

func newActivityCommand(st *rootState) *cobra.Command {
	var (
		weight float64
		steps  int64
		at     string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Record body weight and/or a step count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w *float64
			var s *int64
			if cmd.Flags().Changed("weight") {
				w = &weight
			}
			if cmd.Flags().Changed("steps") {
				s = &steps
			}
			return st.run(cmd, func(ctx context.Context, a *App) error {
				t, err := parseAt(at, a.loc)
				if err != nil {
					return err
				}
				return a.AddActivity(ctx, w, s, t)
			})
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 0, "body weight in kg")
	cmd.Flags().Int64Var(&steps, "steps", 0, "step count")
	cmd.Flags().StringVar(&at, "at", "", "event time, default now")
	return cmd
}

func newListCommand(st *rootState, use, short string, pendingOnly bool) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error {
				return a.List(ctx, kind, pendingOnly)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only this kind: diary, mood or activity")
	return cmd
}

func newCrisisCommand(st *rootState) *cobra.Command {
	var ack bool
	cmd := &cobra.Command{
		Use:   "crisis",
		Short: "Check recent moods for a sustained low",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error { return a.Crisis(ctx, ack) })
		},
	}
	cmd.Flags().BoolVar(&ack, "ack", false, "mark a firing alert as delivered")
	return cmd
}

func newExportCommand(st *rootState) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all local entries as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := st.format
			if format == FormatText {
				format = FormatJSON
			}
			return st.run(cmd, func(ctx context.Context, a *App) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					if err := filex.EnsureParentDir(output); err != nil {
						return err
					}
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return a.Export(ctx, w, format)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, default stdout")
	return cmd
}

func newWipeCommand(st *rootState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all local data of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error {
				if !yes && stdinIsTerminal() {
					prompt := fmt.Sprintf("Delete all local entries of %s? Type yes to confirm", a.userID)
					answer, err := GetSimpleText(bufio.NewReader(cmd.InOrStdin()), prompt, cmd.ErrOrStderr())
					if err != nil {
						return err
					}
					yes = strings.EqualFold(answer, "yes")
				}
				return a.Wipe(ctx, yes)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newREPLCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.run(cmd, func(ctx context.Context, a *App) error {
				return a.Root(ctx, cmd.InOrStdin())
			})
		},
	}
}
