package context

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrdm/loomwork/pkg/store"
)

type linker interface {
	Links() []store.Address
}

type rendererContent interface {
	Render(display map[store.Address]string) string
}

func linksOf(c store.Content) ([]store.Address, error) {
	n, ok := c.(linker)
	if !ok {
		return nil, errors.Errorf("content %T does not implement Links()", c)
	}
	return n.Links(), nil
}

func renderOf(c store.Content, display map[store.Address]string) (string, error) {
	n, ok := c.(rendererContent)
	if !ok {
		return "", errors.Errorf("content %T does not implement Render()", c)
	}
	return n.Render(display), nil
}

// addressPair is the (template, target) frontier entry used by
// visitUnlockedRegion; it must be comparable so it can key the seen set.
type addressPair struct {
	my, your store.Address
}

// visitUnlockedRegion walks template and target in lockstep, breadth
// first, following each node's Links() pairwise. It only descends past a
// template address when that address is in unlocked (or unlocked is nil,
// meaning "everything"), yielding the corresponding target address at
// each step. This zipped walk lets a Context whose naming was computed
// against one workspace re-seat that same naming onto a structurally
// identical successor workspace.
func visitUnlockedRegion(template, target store.Address, view store.View, unlocked Set) ([]store.Address, error) {
	frontier := []addressPair{{template, target}}
	seen := map[addressPair]bool{{template, target}: true}
	var result []store.Address

	for len(frontier) > 0 {
		p := frontier[0]
		frontier = frontier[1:]

		if unlocked != nil && !unlocked.Has(p.my) {
			continue
		}
		result = append(result, p.your)

		myContent, err := view.Dereference(p.my)
		if err != nil {
			return nil, err
		}
		yourContent, err := view.Dereference(p.your)
		if err != nil {
			return nil, err
		}
		myLinks, err := linksOf(myContent)
		if err != nil {
			return nil, err
		}
		yourLinks, err := linksOf(yourContent)
		if err != nil {
			return nil, err
		}

		n := len(myLinks)
		if len(yourLinks) < n {
			n = len(yourLinks)
		}
		for i := 0; i < n; i++ {
			next := addressPair{myLinks[i], yourLinks[i]}
			if !seen[next] {
				seen[next] = true
				frontier = append(frontier, next)
			}
		}
	}

	return result, nil
}

// namePointers assigns a local pointer name to every address reachable
// from target via the unlocked walk rooted at template. Subquestions of
// target's own workspace are named first, iterating from the last-asked
// down to the first; each gets $qN/$aN/$wN for its 1-based position, so
// the first-asked subquestion is always $q1 and the latest has the
// highest N. Every other address encountered during the walk then
// receives $1, $2, ... in walk order.
func namePointers(template, target store.Address, view store.View, unlocked Set) (map[store.Address]string, map[string]store.Address, error) {
	pointers := make(map[store.Address]string)
	backward := make(map[string]store.Address)
	assign := func(addr store.Address, name string) {
		pointers[addr] = name
		backward[name] = addr
	}

	targetWorkspace, err := workspaceAt(view, target)
	if err != nil {
		return nil, nil, err
	}

	for i := len(targetWorkspace.Subquestions) - 1; i >= 0; i-- {
		sq := targetWorkspace.Subquestions[i]
		n := i + 1
		assign(sq.Question, fmt.Sprintf("$q%d", n))
		assign(sq.Answer, fmt.Sprintf("$a%d", n))
		assign(sq.FinalWorkspace, fmt.Sprintf("$w%d", n))
	}

	walk, err := visitUnlockedRegion(template, target, view, unlocked)
	if err != nil {
		return nil, nil, err
	}

	count := 0
	for _, yourLink := range walk {
		content, err := view.Dereference(yourLink)
		if err != nil {
			return nil, nil, err
		}
		links, err := linksOf(content)
		if err != nil {
			return nil, nil, err
		}
		for _, visible := range links {
			if _, known := pointers[visible]; !known {
				count++
				assign(visible, fmt.Sprintf("$%d", count))
			}
		}
	}

	return pointers, backward, nil
}

// MakeLinkTexts renders every address reachable from root via the
// unlocked walk to its substitution text: a locked address becomes its
// pointer name alone, an unlocked one becomes "[name: content]" with its
// own references substituted recursively, and root itself becomes its
// plain rendered content. Unlocked pointers are substrings of the pages
// that reference them, so substitution has to run in reverse topological
// order over the unlocked sub-DAG; the order is obtained by an
// incoming-count walk starting at root (everything is immutable once
// created, so the region is guaranteed to be a DAG). A nil pointerNames
// (the path used to render a finished root answer, which has no
// surrounding Context to supply names and passes unlocked=nil) leaves
// every address unnamed, substituting bare content so that no "$name"
// survives into the final formatted answer.
func MakeLinkTexts(root store.Address, view store.View, unlocked Set, pointerNames map[store.Address]string) (map[store.Address]string, error) {
	walk, err := visitUnlockedRegion(root, root, view, unlocked)
	if err != nil {
		return nil, err
	}
	walkSet := make(map[store.Address]bool, len(walk))
	for _, w := range walk {
		walkSet[w] = true
	}

	incoming := make(map[store.Address]int)
	pageLinks := make(map[store.Address][]store.Address, len(walk))
	for _, page := range walk {
		content, err := view.Dereference(page)
		if err != nil {
			return nil, err
		}
		links, err := linksOf(content)
		if err != nil {
			return nil, err
		}
		pageLinks[page] = links
		for _, child := range links {
			incoming[child]++
		}
	}

	order := make([]store.Address, 0, len(incoming)+1)
	queue := []store.Address{root}
	for len(queue) > 0 {
		page := queue[0]
		queue = queue[1:]
		order = append(order, page)
		if !walkSet[page] {
			continue
		}
		for _, child := range pageLinks[page] {
			incoming[child]--
			if incoming[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	linkTexts := make(map[store.Address]string, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		page := order[i]
		if !walkSet[page] {
			linkTexts[page] = pointerNames[page]
			continue
		}
		content, err := view.Dereference(page)
		if err != nil {
			return nil, err
		}
		text, err := renderOf(content, linkTexts)
		if err != nil {
			return nil, err
		}
		name, named := pointerNames[page]
		if page == root || !named {
			linkTexts[page] = text
		} else {
			linkTexts[page] = "[" + name + ": " + text + "]"
		}
	}
	return linkTexts, nil
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

func renderContextDisplay(workspaceAddr store.Address, view store.View, unlocked Set, pointerNames map[store.Address]string) (string, error) {
	ws, err := workspaceAt(view, workspaceAddr)
	if err != nil {
		return "", err
	}
	linkTexts, err := MakeLinkTexts(workspaceAddr, view, unlocked, pointerNames)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if ws.Predecessor != nil {
		b.WriteString("Predecessor: " + linkTexts[*ws.Predecessor] + "\n")
	}
	b.WriteString("Question: " + linkTexts[ws.Question] + "\n")
	b.WriteString("Scratchpad: " + linkTexts[ws.Scratchpad] + "\n")
	b.WriteString("Subquestions:\n")

	blocks := make([]string, 0, len(ws.Subquestions))
	for i, sq := range ws.Subquestions {
		block := fmt.Sprintf("%d.\n%s\n%s\n%s", i+1,
			indent(linkTexts[sq.Question], "  "),
			indent(linkTexts[sq.Answer], "  "),
			indent(linkTexts[sq.FinalWorkspace], "  "))
		blocks = append(blocks, block)
	}
	b.WriteString(strings.Join(blocks, "\n"))
	b.WriteString("\n")
	return b.String(), nil
}
