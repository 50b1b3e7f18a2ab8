// Package cli provides the moodkeeper command-line client.
//
// Every command opens the local database, connects the configured remote
// backend and builds the entry, sync and analytics services on top of them
// (see NewApp). Saving never waits for the network; entries are pushed right
// away only when the remote answered the last connectivity check.
//
// Besides one-shot commands (diary, mood, activity, list, sync, ...) the
// package offers a long running "watch" mode that syncs on a timer and an
// interactive REPL started with "repl".
package cli
