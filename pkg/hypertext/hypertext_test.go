package hypertext

import (
	"testing"

	"github.com/gitrdm/loomwork/pkg/store"
)

func TestRawLinksDeduplicatesInFirstOccurrenceOrder(t *testing.T) {
	a := store.NewAddress()
	b := store.NewAddress()

	r := NewRaw(Lit("x"), Ref(a), Lit("y"), Ref(b), Ref(a))

	links := r.Links()
	if len(links) != 2 || links[0] != a || links[1] != b {
		t.Fatalf("got %v, want [a b]", links)
	}
}

func TestRawLinksIsStable(t *testing.T) {
	a := store.NewAddress()
	r := NewRaw(Lit("x"), Ref(a))

	first := r.Links()
	second := r.Links()
	if len(first) != len(second) || first[0] != second[0] {
		t.Fatal("two calls to Links on the same node must return identical sequences")
	}
}

func TestRawRenderSubstitutesDisplay(t *testing.T) {
	a := store.NewAddress()
	r := NewRaw(Lit("answer is "), Ref(a))

	got := r.Render(map[store.Address]string{a: "42"})
	if got != "answer is 42" {
		t.Fatalf("got %q", got)
	}
}

func TestWorkspaceLinksExcludesItsOwnPromises(t *testing.T) {
	question := store.NewAddress()
	answer := store.NewAddress()
	finalWS := store.NewAddress()
	scratchpad := store.NewAddress()

	w := Workspace{
		Question:              question,
		AnswerPromise:         answer,
		FinalWorkspacePromise: finalWS,
		Scratchpad:            scratchpad,
	}

	links := w.Links()
	for _, l := range links {
		if l == answer || l == finalWS {
			t.Fatalf("Workspace.Links must not include its own promises, got %v", links)
		}
	}
	if len(links) != 2 || links[0] != question || links[1] != scratchpad {
		t.Fatalf("got %v, want [question scratchpad]", links)
	}
}

func TestWorkspaceLinksOrderWithSubquestionsAndPredecessor(t *testing.T) {
	pred := store.NewAddress()
	question := store.NewAddress()
	scratchpad := store.NewAddress()
	sq1 := Subquestion{Question: store.NewAddress(), Answer: store.NewAddress(), FinalWorkspace: store.NewAddress()}
	sq2 := Subquestion{Question: store.NewAddress(), Answer: store.NewAddress(), FinalWorkspace: store.NewAddress()}

	w := Workspace{
		Predecessor:  &pred,
		Question:     question,
		Scratchpad:   scratchpad,
		Subquestions: []Subquestion{sq1, sq2},
	}

	want := []store.Address{pred, question, scratchpad, sq1.Question, sq1.Answer, sq1.FinalWorkspace, sq2.Question, sq2.Answer, sq2.FinalWorkspace}
	got := w.Links()
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("link %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCanonicalKeyIsStructural(t *testing.T) {
	a := store.NewAddress()
	r1 := NewRaw(Lit("x"), Ref(a))
	r2 := NewRaw(Lit("x"), Ref(a))

	if r1.CanonicalKey() != r2.CanonicalKey() {
		t.Fatal("two Raw nodes with identical fragments must have identical canonical keys")
	}

	r3 := NewRaw(Lit("x"))
	if r1.CanonicalKey() == r3.CanonicalKey() {
		t.Fatal("structurally different nodes must not share a canonical key")
	}
}

func TestIndentHandlesMultilineAndEmpty(t *testing.T) {
	if indent("", "  ") != "" {
		t.Fatal("indenting empty string should stay empty")
	}
	got := indent("a\nb", "  ")
	want := "  a\n  b"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
