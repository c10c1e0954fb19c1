// Package repl implements the line-oriented
// "ask"/"reply"/"unlock"/"scratch"/"exit" command surface over a single
// pkg/scheduler.RootQuestionSession: print the current context's
// Display, prompt, dispatch one command, repeat.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/gitrdm/loomwork/pkg/actions"
	"github.com/gitrdm/loomwork/pkg/scheduler"
)

const separator = "--------------------------------------------------------------------------------"

// Loop drives a RootQuestionSession from in, writing prompts, context
// displays, and results to out, until the session produces a final
// answer, the user types "exit", or in is exhausted.
type Loop struct {
	Session *scheduler.RootQuestionSession
	In      io.Reader
	Out     io.Writer
}

// NewLoop builds a Loop around an existing session.
func NewLoop(session *scheduler.RootQuestionSession, in io.Reader, out io.Writer) *Loop {
	return &Loop{Session: session, In: in, Out: out}
}

// Run executes the command loop to completion, returning the rendered
// final answer, or an empty string if the loop ended for any other
// reason (explicit exit, exhausted input).
//
// Session.Act only ever returns a plain error for the recoverable kinds
// (invalid pointer reference, already unlocked, cycle detected, parse
// error); those are reported and the loop keeps going. The fatal kinds
// panic with a scheduler.FatalError instead, which is deliberately not
// recovered here: it propagates out of Run to whatever called it, to be
// caught at the actual CLI boundary.
func (l *Loop) Run() (string, error) {
	scanner := bufio.NewScanner(l.In)
	for {
		fmt.Fprintln(l.Out, l.Session.Current.Display)
		fmt.Fprint(l.Out, "> ")

		if !scanner.Scan() {
			return "", scanner.Err()
		}
		line := scanner.Text()
		fmt.Fprintln(l.Out, separator)

		command, arg, ok := splitCommand(line)
		if !ok {
			continue
		}
		if command == "exit" {
			return "", nil
		}

		action, err := parseAction(command, arg)
		if err != nil {
			fmt.Fprintln(l.Out, "unrecognized command:", command)
			continue
		}

		result, err := l.Session.Act(action)
		if err != nil {
			fmt.Fprintln(l.Out, "error:", err)
			continue
		}
		if result.Done() {
			fmt.Fprintln(l.Out, "The final answer is:")
			fmt.Fprintln(l.Out, result.Answer)
			return result.Answer, nil
		}
	}
}

// splitCommand separates a line into its leading command word and the
// rest of the line as a single argument. A blank line is reported as
// not ok and the caller does nothing with it.
func splitCommand(line string) (command, arg string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", "", false
	}
	fields := strings.SplitN(trimmed, " ", 2)
	command = fields[0]
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	return command, arg, true
}

func parseAction(command, arg string) (actions.Action, error) {
	switch command {
	case "ask":
		return actions.AskSubquestion{QuestionText: arg}, nil
	case "reply":
		return actions.Reply{ReplyText: arg}, nil
	case "unlock":
		return actions.Unlock{PointerName: arg}, nil
	case "scratch":
		return actions.Scratch{Text: arg}, nil
	default:
		return nil, fmt.Errorf("unrecognized command %q", command)
	}
}

// Runner plays back a REPL script file read through an afero.Fs, so
// tests can swap in an in-memory filesystem instead of touching disk.
type Runner struct {
	Fs afero.Fs
}

// NewRunner builds a Runner over fs. A nil fs defaults to the real OS
// filesystem.
func NewRunner(fs afero.Fs) *Runner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Runner{Fs: fs}
}

// RunScript opens path through r.Fs and drives session from its
// contents, writing output to out.
func (r *Runner) RunScript(session *scheduler.RootQuestionSession, path string, out io.Writer) (string, error) {
	f, err := r.Fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	loop := NewLoop(session, f, out)
	return loop.Run()
}
