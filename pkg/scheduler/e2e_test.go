package scheduler

import (
	"strings"
	"testing"

	"github.com/gitrdm/loomwork/pkg/actions"
	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/store"
)

func newE2ESession(t *testing.T, question string) *RootQuestionSession {
	t.Helper()
	sched := New(store.New(nil), nil)
	sess, err := NewRootQuestionSession(sched, question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sess
}

func mustAct(t *testing.T, sess *RootQuestionSession, action actions.Action) ActResult {
	t.Helper()
	result, err := sess.Act(action)
	if err != nil {
		t.Fatalf("unexpected error acting %T: %v", action, err)
	}
	return result
}

func requireShowing(t *testing.T, sess *RootQuestionSession, text string) {
	t.Helper()
	if sess.Current == nil {
		t.Fatalf("session has no current context, expected one showing %q", text)
	}
	if !strings.Contains(sess.Current.Display, text) {
		t.Fatalf("current context should show %q, got %q", text, sess.Current.Display)
	}
}

// Decompose a multiplication into subquestions, answer them in the
// contexts the session schedules, and combine the partial results back
// at the root.
func TestSessionCompletesRecursiveMultiplication(t *testing.T) {
	sess := newE2ESession(t, "What is 351 * 5019?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "What is 300 * 5019?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "What is 50 * 5019?"})

	// Unlocking $a1 has no context to show yet, so the session must hand
	// over the sub-context that can resolve it.
	mustAct(t, sess, actions.Unlock{PointerName: "$a1"})
	requireShowing(t, sess, "What is 300 * 5019?")
	mustAct(t, sess, actions.Reply{ReplyText: "1505700"})
	requireShowing(t, sess, "1505700")

	mustAct(t, sess, actions.Unlock{PointerName: "$a2"})
	requireShowing(t, sess, "What is 50 * 5019?")
	mustAct(t, sess, actions.Reply{ReplyText: "250950"})
	requireShowing(t, sess, "250950")

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "What is 1505700 + 250950 + 5019?"})
	mustAct(t, sess, actions.Unlock{PointerName: "$a3"})
	requireShowing(t, sess, "What is 1505700 + 250950 + 5019?")
	mustAct(t, sess, actions.Reply{ReplyText: "1761669"})

	result := mustAct(t, sess, actions.Reply{ReplyText: "1761669"})
	if !result.Done() {
		t.Fatal("answering the root question should complete the session")
	}
	if !strings.Contains(result.Answer, "1761669") {
		t.Fatalf("final answer should contain the product, got %q", result.Answer)
	}
}

// A root reply that references still-pending answers does not complete
// the session, and does not fail either.
func TestRootReplyWithPendingPointersDoesNotComplete(t *testing.T) {
	sess := newE2ESession(t, "Root?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub1?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub2?"})

	result := mustAct(t, sess, actions.Reply{ReplyText: "Root [$a1 $a2]."})
	if result.Done() {
		t.Fatal("the session must not complete while $a1 and $a2 are pending")
	}
	if sess.Current == nil {
		t.Fatal("the session should keep offering a context to work on")
	}
}

// The root answer references another subquestion's answer; unlocking a
// pointer in a sub-context registers a waiter and the scheduler keeps
// handing out pending work without error.
func TestReplyReferencingOtherSubquestionAnswer(t *testing.T) {
	sess := newE2ESession(t, "Root?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub1?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub2 ($a1)?"})

	result := mustAct(t, sess, actions.Reply{ReplyText: "$a2"})
	if result.Done() {
		t.Fatal("the session must not complete while $a2 is pending")
	}
	requireShowing(t, sess, "Sub2 (")

	// $3 names the first subquestion's answer promise, visible through
	// Sub2's question text.
	mustAct(t, sess, actions.Unlock{PointerName: "$3"})
	requireShowing(t, sess, "Sub1?")
}

// Unlocking $w1 while the sub-workspace is still being worked on
// registers the context as a promisee instead of raising.
func TestUnlockPendingFinalWorkspaceRegistersWaiter(t *testing.T) {
	sess := newE2ESession(t, "Root?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub1?"})
	w1 := sess.Current.NamePointers["$w1"]
	if w1.IsZero() {
		t.Fatal("$w1 should be named in the root context")
	}

	mustAct(t, sess, actions.Unlock{PointerName: "$w1"})
	requireShowing(t, sess, "Sub1?")

	promisees := sess.Scheduler.Store().GetPromisees(w1)
	if len(promisees) != 1 {
		t.Fatalf("unlocking a pending workspace promise should register exactly one waiter, got %d", len(promisees))
	}
}

// A reply may freely mix unlocked ($q1) and locked ($a1) references; the
// stored hypertext carries both.
func TestReplyMixingUnlockedAndLockedPointers(t *testing.T) {
	sess := newE2ESession(t, "Root?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub1?"})
	result := mustAct(t, sess, actions.Reply{ReplyText: "$q1 $a1"})
	if result.Done() {
		t.Fatal("the session must not complete while $a1 is pending")
	}

	content, err := sess.Scheduler.Store().Dereference(sess.FinalAnswerPromise)
	if err != nil {
		t.Fatalf("the root answer should be stored despite its locked reference: %v", err)
	}
	if links := content.(linker).Links(); len(links) != 2 {
		t.Fatalf("the stored reply should reference both pointers, got %d links", len(links))
	}
}

// Unlocking $a2 must schedule the context that has been waiting to
// answer question 2, not the most recently created one.
func TestUnlockSchedulesTheWaitingContext(t *testing.T) {
	sess := newE2ESession(t, "Root question?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Question 1?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Question 2?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Question 3?"})
	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Question 4?"})

	mustAct(t, sess, actions.Unlock{PointerName: "$a2"})
	requireShowing(t, sess, "Question 2?")
}

// Once every promise reachable from the root answer is fulfilled, the
// rendered answer substitutes content for every reference; no pointer
// name survives.
func TestCompletedAnswerContainsNoPointerNames(t *testing.T) {
	sess := newE2ESession(t, "Root?")
	defer sess.Close()

	mustAct(t, sess, actions.AskSubquestion{QuestionText: "Sub1?"})
	result := mustAct(t, sess, actions.Reply{ReplyText: "Answer [$a1]."})
	if result.Done() {
		t.Fatal("the session must not complete while $a1 is pending")
	}

	requireShowing(t, sess, "Sub1?")
	result = mustAct(t, sess, actions.Reply{ReplyText: "42"})
	if !result.Done() {
		t.Fatal("fulfilling the last pending reference should complete the session")
	}
	if result.Answer != "Answer 42." {
		t.Fatalf("got %q, want %q", result.Answer, "Answer 42.")
	}
}

// Asking a question that has been answered before dedupes onto the
// already-answered workspace, and the memoizer automates the spawned
// sub-context away instead of parking it: the answer is available
// immediately, with no pending work left behind.
func TestMemoizedAnswerIsReusedForRepeatedQuestion(t *testing.T) {
	s := New(store.New(nil), nil)

	first, err := s.AskRootQuestion("What is 6 * 7?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ResolveAction(first, actions.Reply{ReplyText: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := s.AskRootQuestion("What do you get if you multiply six by nine?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	successor, err := s.ResolveAction(second, actions.AskSubquestion{QuestionText: "What is 6 * 7?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1 := successor.NamePointers["$a1"]
	if a1.IsZero() {
		t.Fatal("$a1 should be named in the successor context")
	}
	if !s.Store().IsFulfilled(a1) {
		t.Fatal("the repeated question's answer should already be fulfilled from the first session")
	}
	if got := len(s.PendingContexts()); got != 0 {
		t.Fatalf("the spawned sub-context should have been automated away, got %d pending", got)
	}

	ws, err := hcontext.WorkspaceAt(s.Store(), successor.WorkspaceAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Store().Canonicalize(ws.Subquestions[0].Answer); !s.Store().IsCanonical(got) {
		t.Fatalf("the subquestion's answer should canonicalize to stored content, got %v", got)
	}
}
