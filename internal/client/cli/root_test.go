package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/moodkeeper/internal/client/remote/memstore"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "moodkeeper", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"diary", "mood", "activity", "list", "pending", "sync", "flush",
		"dedupe", "streak", "crisis", "export", "wipe", "watch", "repl",
	}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, FormatText, format.DefValue)

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "a", server.Shorthand)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

// execute runs the command tree with args against an in-memory database
// and store.
func execute(t *testing.T, store *memstore.Store, args ...string) (string, error) {
	t.Helper()
	stubSeams(t, store, appNow)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{"--user", "u1", "--db", ":memory:", "--remote", "none", "--tz", "UTC"}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExecute_Mood(t *testing.T) {
	out, err := execute(t, memstore.New(), "mood", "happy")
	require.NoError(t, err)
	assert.Contains(t, out, "saved locally")
}

func TestExecute_DiaryFromArgsAndStdin(t *testing.T) {
	out, err := execute(t, memstore.New(), "diary", "--mood", "calm", "walked", "the", "dog")
	require.NoError(t, err)
	assert.Contains(t, out, "saved locally")

	stubSeams(t, memstore.New(), appNow)
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(bytes.NewBufferString("line one\nline two\n\n"))
	cmd.SetArgs([]string{"--user", "u1", "--db", ":memory:", "--remote", "none", "--format", "json", "diary"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"localId"`)
}

func TestExecute_ActivityFlags(t *testing.T) {
	_, err := execute(t, memstore.New(), "activity")
	require.ErrorIs(t, err, common.ErrorValidation)

	out, err := execute(t, memstore.New(), "activity", "--steps", "1200", "--at", "2024-03-01 07:00")
	require.NoError(t, err)
	assert.Contains(t, out, "saved locally")
}

func TestExecute_Errors(t *testing.T) {
	t.Run("invalid format", func(t *testing.T) {
		_, err := execute(t, memstore.New(), "--format", "xml", "list")
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})

	t.Run("missing user", func(t *testing.T) {
		stubSeams(t, memstore.New(), appNow)
		cmd := NewRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db", ":memory:", "--remote", "none", "list"})
		err := cmd.Execute()
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})

	t.Run("bad time", func(t *testing.T) {
		_, err := execute(t, memstore.New(), "mood", "happy", "--at", "soon")
		assert.ErrorIs(t, err, common.ErrorValidation)
	})

	t.Run("wipe unconfirmed", func(t *testing.T) {
		stubTerminal(t, false)
		_, err := execute(t, memstore.New(), "wipe")
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})
}

func TestExecute_ExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "export.json")

	_, err := execute(t, memstore.New(), "export", "-o", path)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"diary"`)
}

func TestExecute_PendingListsEveryKind(t *testing.T) {
	out, err := execute(t, memstore.New(), "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries.")
}

func stubTerminal(t *testing.T, tty bool) {
	t.Helper()
	old := isTerminal
	isTerminal = func(int) bool { return tty }
	t.Cleanup(func() { isTerminal = old })
}

func TestExecute_WipePromptsOnTerminal(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		wantErr bool
	}{
		{name: "confirmed", answer: "yes\n"},
		{name: "confirmed upper case", answer: "YES\n"},
		{name: "declined", answer: "no\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubSeams(t, memstore.New(), appNow)
			stubTerminal(t, true)

			cmd := NewRootCommand()
			var out, prompt bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&prompt)
			cmd.SetIn(strings.NewReader(tt.answer))
			cmd.SetArgs([]string{"--user", "u1", "--db", ":memory:", "--remote", "none", "--tz", "UTC", "wipe"})

			err := cmd.Execute()
			assert.Contains(t, prompt.String(), "Delete all local entries of u1? Type yes to confirm")
			if tt.wantErr {
				assert.Equal(t, ExitCommandError, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Deleted 0 local entries of u1.")
		})
	}
}
