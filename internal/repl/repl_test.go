package repl

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/loomwork/pkg/scheduler"
	"github.com/gitrdm/loomwork/pkg/store"
)

func newTestSession(t *testing.T, question string) *scheduler.RootQuestionSession {
	t.Helper()
	db := store.New(nil)
	sched := scheduler.New(db, nil)
	session, err := scheduler.NewRootQuestionSession(sched, question)
	require.NoError(t, err)
	return session
}

func TestLoopRepliesDirectlyToRootQuestion(t *testing.T) {
	session := newTestSession(t, "what color is the sky")
	in := strings.NewReader("reply blue\n")
	var out strings.Builder

	answer, err := NewLoop(session, in, &out).Run()
	require.NoError(t, err)
	require.Equal(t, "blue", answer)
	require.Contains(t, out.String(), "The final answer is:")
}

func TestLoopExitStopsWithoutAnswer(t *testing.T) {
	session := newTestSession(t, "what color is the sky")
	in := strings.NewReader("exit\n")
	var out strings.Builder

	answer, err := NewLoop(session, in, &out).Run()
	require.NoError(t, err)
	require.Empty(t, answer)
}

func TestLoopUnrecognizedCommandContinuesLoop(t *testing.T) {
	session := newTestSession(t, "what color is the sky")
	in := strings.NewReader("bogus\nreply green\n")
	var out strings.Builder

	answer, err := NewLoop(session, in, &out).Run()
	require.NoError(t, err)
	require.Equal(t, "green", answer)
	require.Contains(t, out.String(), "unrecognized command")
}

func TestRunnerPlaysBackScriptFromMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "session.txt", []byte("reply 42\n"), 0o644))

	session := newTestSession(t, "what is the answer")
	runner := NewRunner(fs)

	var out strings.Builder
	answer, err := runner.RunScript(session, "session.txt", &out)
	require.NoError(t, err)
	require.Equal(t, "42", answer)
}
