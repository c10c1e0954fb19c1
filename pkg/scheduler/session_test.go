package scheduler

import (
	"testing"

	"github.com/gitrdm/loomwork/pkg/actions"
	"github.com/gitrdm/loomwork/pkg/store"
)

func TestRootQuestionSessionCompletesOnDirectReply(t *testing.T) {
	s := New(store.New(nil), nil)
	sess, err := NewRootQuestionSession(s, "what color is the sky")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Close()

	result, err := sess.Act(actions.Reply{ReplyText: "blue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Done() {
		t.Fatal("replying directly to the root question should complete the session")
	}
	if result.Answer != "blue" {
		t.Fatalf("got answer %q, want %q", result.Answer, "blue")
	}
}

func TestRootQuestionSessionAdvancesThroughSubquestion(t *testing.T) {
	s := New(store.New(nil), nil)
	sess, err := NewRootQuestionSession(s, "what is 2 plus 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Close()

	result, err := sess.Act(actions.AskSubquestion{QuestionText: "what is 1 plus 1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Done() {
		t.Fatal("asking a subquestion should not complete the session")
	}
	if result.Context == nil {
		t.Fatal("expected a successor context to keep working from")
	}

	// Switch to the spawned sub-context by choosing an arbitrary pending
	// one, answer it, then come back around to answer the root.
	sub := s.ChooseArbitraryContext()
	if sub == nil {
		t.Fatal("expected the sub-question's context to be pending")
	}
	if _, _, err := (actions.Reply{ReplyText: "2"}).Execute(s.Store(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err = sess.Act(actions.Reply{ReplyText: "4, since $a1 is 2 and I can double-check"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Done() {
		t.Fatal("replying to the root question should complete the session")
	}
}
