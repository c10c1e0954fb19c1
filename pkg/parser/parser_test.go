package parser

import (
	"testing"

	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/store"
)

func newTestStore() *store.Store {
	return store.New(nil)
}

func TestParseFragmentsLiteralOnly(t *testing.T) {
	s := newTestStore()
	raw, err := ParseFragments("hello world", s, Names{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := raw.Render(nil); got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestParseFragmentsResolvesPointerNames(t *testing.T) {
	s := newTestStore()
	addr := s.Insert(stubContent("answer"))

	raw, err := ParseFragments("the answer is $a1", s, Names{"$a1": addr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	links := raw.Links()
	if len(links) != 1 || links[0] != addr {
		t.Fatalf("got links %v, want [%v]", links, addr)
	}
}

func TestParseFragmentsRejectsUnknownPointerName(t *testing.T) {
	s := newTestStore()
	_, err := ParseFragments("see $q3", s, Names{})
	if err == nil {
		t.Fatal("expected an error for an unresolved pointer name")
	}
}

func TestParseFragmentsRejectsBareDollar(t *testing.T) {
	s := newTestStore()
	_, err := ParseFragments("costs $5 today", s, Names{})
	if err == nil {
		t.Fatal("expected an error: '$' not followed by [awq]?[1-9][0-9]* is not a valid pointer token")
	}
}

func TestParseFragmentsNestedBracketsInsertIntoView(t *testing.T) {
	s := newTestStore()
	raw, err := ParseFragments("outer [inner text] more", s, Names{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	links := raw.Links()
	if len(links) != 1 {
		t.Fatalf("expected exactly one nested-node reference, got %v", links)
	}
	nested, ok := s.Dereference(links[0])
	if ok != nil {
		t.Fatalf("dereference failed: %v", ok)
	}
	if got := nested.(hypertext.Node).Render(nil); got != "inner text" {
		t.Fatalf("nested content got %q", got)
	}
}

func TestParseFragmentsUnterminatedBracketIsError(t *testing.T) {
	s := newTestStore()
	_, err := ParseFragments("outer [inner", s, Names{})
	if err == nil {
		t.Fatal("expected an error for an unterminated '['")
	}
}

func TestParseFragmentsStrayCloseBracketIsError(t *testing.T) {
	s := newTestStore()
	_, err := ParseFragments("outer ] stray", s, Names{})
	if err == nil {
		t.Fatal("expected an error for a stray ']'")
	}
}

func TestParseAndInsertReturnsAddressOfInsertedNode(t *testing.T) {
	s := newTestStore()
	addr, err := ParseAndInsert("plain text", s, Names{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, derefErr := s.Dereference(addr)
	if derefErr != nil {
		t.Fatalf("dereference failed: %v", derefErr)
	}
	if got := n.(hypertext.Node).Render(nil); got != "plain text" {
		t.Fatalf("got %q", got)
	}
}

type stubContent string

func (s stubContent) CanonicalKey() string { return "stub:" + string(s) }
