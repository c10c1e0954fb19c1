package hypertext

import (
	"fmt"
	"strings"

	"github.com/gitrdm/loomwork/pkg/store"
)

// Subquestion is the triple a parent workspace keeps for each question it
// has asked: the question text's address, and the two promises belonging
// to the sub-workspace that answers it.
type Subquestion struct {
	Question       store.Address
	Answer         store.Address
	FinalWorkspace store.Address
}

// Workspace is the immutable record of a question, its two
// self-referencing promises, a scratchpad, the subquestions asked so far,
// and an optional predecessor.
//
// AnswerPromise and FinalWorkspacePromise are deliberately excluded from
// Links(): this is load-bearing, not an oversight. A promise is later
// resolved to content that may itself reference this very workspace (e.g.
// Reply resolving final_workspace_promise to the workspace it was asked
// from); if the promises were part of links(), that would create a cycle
// the moment they resolved.
type Workspace struct {
	Predecessor           *store.Address
	Question              store.Address
	AnswerPromise         store.Address
	FinalWorkspacePromise store.Address
	Scratchpad            store.Address
	Subquestions          []Subquestion
}

// Links returns [predecessor?], question, scratchpad, then each
// subquestion's (question, answer, final_workspace) triple in order.
func (w Workspace) Links() []store.Address {
	result := make([]store.Address, 0, 2+3*len(w.Subquestions)+1)
	if w.Predecessor != nil {
		result = append(result, *w.Predecessor)
	}
	result = append(result, w.Question, w.Scratchpad)
	for _, sq := range w.Subquestions {
		result = append(result, sq.Question, sq.Answer, sq.FinalWorkspace)
	}
	return result
}

// Render writes a "Label:\n  <indented content>" block per field, two
// spaces per nesting level.
func (w Workspace) Render(display map[store.Address]string) string {
	text := func(addr store.Address) string {
		if display == nil {
			return addr.String()
		}
		return display[addr]
	}

	var b strings.Builder
	if w.Predecessor != nil {
		b.WriteString("Predecessor:\n")
		b.WriteString(indent(text(*w.Predecessor), "  "))
		b.WriteString("\n")
	}
	b.WriteString("Question:\n")
	b.WriteString(indent(text(w.Question), "  "))
	b.WriteString("\nScratchpad:\n")
	b.WriteString(indent(text(w.Scratchpad), "  "))
	b.WriteString("\nSubquestions:\n")

	subBuilder := make([]string, 0, len(w.Subquestions))
	for i, sq := range w.Subquestions {
		block := fmt.Sprintf("%d.\n%s\n%s\n%s", i+1,
			indent(text(sq.Question), "  "),
			indent(text(sq.Answer), "  "),
			indent(text(sq.FinalWorkspace), "  "))
		subBuilder = append(subBuilder, block)
	}
	b.WriteString(indent(strings.Join(subBuilder, "\n"), "  "))
	return b.String()
}

// CanonicalKey renders the workspace with addresses spelled out literally
// (see Raw.CanonicalKey). Render leaves out AnswerPromise and
// FinalWorkspacePromise, so two workspaces that differ only in those
// promises share a key, and inserting the second returns the address of
// the first.
func (w Workspace) CanonicalKey() string {
	return "workspace:" + w.Render(nil)
}

// indent prefixes every line of s with prefix.
func indent(s, prefix string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

var _ Node = Workspace{}
