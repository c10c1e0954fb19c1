package actions

import (
	"strings"
	"testing"

	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/store"
)

func newRootContext(t *testing.T, s *store.Store, question string) *hcontext.Context {
	t.Helper()
	questionAddr := s.Insert(hypertext.NewRaw(hypertext.Lit(question)))
	scratchpad := s.Insert(hypertext.NewRaw(hypertext.Lit("")))
	ws := hypertext.Workspace{
		Question:              questionAddr,
		AnswerPromise:         s.MakePromise(),
		FinalWorkspacePromise: s.MakePromise(),
		Scratchpad:            scratchpad,
	}
	wsAddr := s.Insert(ws)
	c, err := hcontext.New(wsAddr, s, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error building context: %v", err)
	}
	return c
}

func TestScratchReplacesScratchpad(t *testing.T) {
	s := store.New(nil)
	c := newRootContext(t, s, "what is the capital of France")

	successor, spawned, err := Scratch{Text: "Paris, probably"}.Execute(s, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spawned) != 0 {
		t.Fatalf("scratch should not spawn contexts, got %d", len(spawned))
	}
	if successor == nil {
		t.Fatal("scratch must produce a successor context")
	}
	if !strings.Contains(successor.Display, "Paris, probably") {
		t.Fatalf("successor display missing new scratchpad text: %q", successor.Display)
	}
	if successor.Parent != c {
		t.Fatal("successor's parent must be the original context")
	}
}

func TestAskSubquestionRecordsSubquestionAndSpawnsContext(t *testing.T) {
	s := store.New(nil)
	c := newRootContext(t, s, "what is 7 times 8")

	successor, spawned, err := AskSubquestion{QuestionText: "what is 7 times 4"}.Execute(s, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if successor == nil {
		t.Fatal("ask-subquestion must produce a successor context")
	}
	if len(spawned) != 1 {
		t.Fatalf("expected exactly one spawned sub-context, got %d", len(spawned))
	}
	if !strings.Contains(successor.Display, "what is 7 times 4") {
		t.Fatalf("successor display missing recorded subquestion: %q", successor.Display)
	}
	if !strings.Contains(spawned[0].Display, "what is 7 times 4") {
		t.Fatalf("spawned sub-context should show the subquestion as its own question: %q", spawned[0].Display)
	}
}

func TestReplyWakesContextWaitingOnUnlock(t *testing.T) {
	s := store.New(nil)
	root := newRootContext(t, s, "what is 2 plus 2")

	parent, spawned, err := AskSubquestion{QuestionText: "what is 1 plus 1"}.Execute(s, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub := spawned[0]

	// Parent unlocks the as-yet-unanswered subquestion's answer pointer
	// ($a1): this registers a DryContext as a promisee rather than
	// returning a context immediately.
	_, waiting, err := Unlock{PointerName: "$a1"}.Execute(s, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waiting) != 0 {
		t.Fatal("unlocking an unfulfilled promise must not spawn a context yet")
	}

	// The sub-context now replies, which should resolve $a1 and wake the
	// parent's waiting unlock.
	_, woken, err := Reply{ReplyText: "2"}.Execute(s, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(woken) == 0 {
		t.Fatal("replying should wake at least the parent's unlock waiter")
	}
	if !strings.Contains(woken[0].Display, "2") {
		t.Fatalf("woken context display should show the reply text, got %q", woken[0].Display)
	}
}

func TestUnlockImmediateWhenAlreadyFulfilled(t *testing.T) {
	s := store.New(nil)
	root := newRootContext(t, s, "root question")

	parent, spawned, err := AskSubquestion{QuestionText: "sub question"}.Execute(s, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub := spawned[0]

	if _, _, err := (Reply{ReplyText: "sub answer"}).Execute(s, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, woken, err := Unlock{PointerName: "$a1"}.Execute(s, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(woken) != 1 {
		t.Fatalf("unlocking an already-fulfilled promise should spawn immediately, got %d", len(woken))
	}
	if !strings.Contains(woken[0].Display, "sub answer") {
		t.Fatalf("woken context should display the fulfilled answer, got %q", woken[0].Display)
	}
}

func TestUnlockUnknownPointerNameErrors(t *testing.T) {
	s := store.New(nil)
	c := newRootContext(t, s, "root question")

	if _, _, err := (Unlock{PointerName: "$q99"}).Execute(s, c); err == nil {
		t.Fatal("expected an error for a pointer name not visible in this context")
	}
}

func TestUnlockAlreadyUnlockedErrors(t *testing.T) {
	s := store.New(nil)
	c := newRootContext(t, s, "root question")

	// $1 names the question itself, which is unlocked by default.
	if _, _, err := (Unlock{PointerName: "$1"}).Execute(s, c); err == nil {
		t.Fatal("expected an error for a pointer that is already unlocked")
	}
}
