package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	AddDiary(ctx context.Context, text, mood string, at time.Time) error
	AddMood(ctx context.Context, mood, source string, at time.Time) error
	AddActivity(ctx context.Context, weight *float64, steps *int64, at time.Time) error
	List(ctx context.Context, kind string, pendingOnly bool) error
	Sync(ctx context.Context) error
	Flush(ctx context.Context) error
	Dedupe(ctx context.Context) error
	Streak(ctx context.Context) error
	Crisis(ctx context.Context, ack bool) error
}

const replHelp = `Available commands:
  diary <mood|-> <text>   write a diary entry
  mood <label>            record a mood
  weight <kg>             record body weight
  steps <count>           record a step count
  (l)ist [kind]           list entries
  pending [kind]          list entries waiting for sync
  sync | flush | dedupe   synchronize, push pending, remove duplicates
  streak | crisis         show the streak or the mood check
  exit | quit             leave the program`

// runREPL reads commands from scanner until EOF or "exit" and dispatches
// them to a. Errors of a command are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(replHelp)

		case "diary":
			if len(args) < 2 {
				printlnFn("Usage: diary <mood|-> <text>")
				continue
			}
			mood := args[0]
			if mood == "-" {
				mood = ""
			}
			err = a.AddDiary(ctx, strings.Join(args[1:], " "), mood, time.Time{})

		case "mood":
			if len(args) != 1 {
				printlnFn("Usage: mood <label>")
				continue
			}
			err = a.AddMood(ctx, args[0], "", time.Time{})

		case "weight":
			v, perr := argFloat(args)
			if perr != nil {
				printlnFn("Usage: weight <kg>")
				continue
			}
			err = a.AddActivity(ctx, &v, nil, time.Time{})

		case "steps":
			v, perr := argInt(args)
			if perr != nil {
				printlnFn("Usage: steps <count>")
				continue
			}
			err = a.AddActivity(ctx, nil, &v, time.Time{})

		case "l", "list":
			err = a.List(ctx, firstArg(args), false)

		case "pending":
			err = a.List(ctx, firstArg(args), true)

		case "sync":
			err = a.Sync(ctx)

		case "flush":
			err = a.Flush(ctx)

		case "dedupe":
			err = a.Dedupe(ctx)

		case "streak":
			err = a.Streak(ctx)

		case "crisis":
			err = a.Crisis(ctx, true)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func argFloat(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(args[0], 64)
}

func argInt(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(args[0], 10, 64)
}

// Root runs the interactive session on in. The connectivity monitor runs in
// the background for the lifetime of the session and triggers a sync when
// the remote comes back.
func (a *App) Root(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.monitor != nil {
		go a.monitor.Run(ctx, func(online bool) {
			if !online {
				a.setMode(ctx, ModeOffline)
				return
			}
			a.setMode(ctx, ModeOnline)
			a.syncInBackground(ctx, true)
		})
	}

	printlnFn("Welcome to moodkeeper (type 'help' for commands)")
	runREPL(ctx, a, a.Status, bufio.NewScanner(in))
	return nil
}
