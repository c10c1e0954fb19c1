// Package parser implements the bracket/pointer hypertext fragment
// grammar: literal text, `[...]`-delimited nested hypertext, and `$name`
// pointer references, scanned by a small recursive-descent parser.
//
// There is no escape convention. A literal run cannot contain `$`, `[`,
// or `]`: a `$` that does not begin a well-formed pointer name is a
// parse error rather than a literal character, and an unbalanced bracket
// is rejected outright.
package parser

import (
	"fmt"

	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Error is returned for any rejection of the input text. It carries the
// rune offset at which parsing failed for caller diagnostics.
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

// Names resolves a `$name` token (e.g. "$1", "$q2", "$a12", "$w3") to the
// address it currently stands for. ParseAndInsert and ParseFragments
// reject any name not present in the map.
type Names map[string]store.Address

// ParseFragments parses text into a hypertext.Raw. Nested `[...]` groups
// are recursively parsed and inserted into view, becoming address
// references in the returned node. The top-level Raw itself is not
// inserted; callers that want an address call ParseAndInsert instead.
func ParseFragments(text string, view store.View, names Names) (hypertext.Raw, error) {
	runes := []rune(text)
	fragments, pos, err := parseSequence(runes, 0, view, names)
	if err != nil {
		return hypertext.Raw{}, err
	}
	if pos != len(runes) {
		return hypertext.Raw{}, &Error{Offset: pos, Message: "unexpected ']'"}
	}
	return hypertext.NewRaw(fragments...), nil
}

// ParseAndInsert parses text and inserts the resulting node into view,
// returning its address.
func ParseAndInsert(text string, view store.View, names Names) (store.Address, error) {
	raw, err := ParseFragments(text, view, names)
	if err != nil {
		return store.Address{}, err
	}
	return view.Insert(raw), nil
}

func parseSequence(runes []rune, pos int, view store.View, names Names) ([]hypertext.Fragment, int, error) {
	var fragments []hypertext.Fragment

	for pos < len(runes) {
		switch runes[pos] {
		case ']':
			return fragments, pos, nil
		case '[':
			nested, next, err := parseSequence(runes, pos+1, view, names)
			if err != nil {
				return nil, pos, err
			}
			if next >= len(runes) || runes[next] != ']' {
				return nil, pos, &Error{Offset: pos, Message: "unterminated '['"}
			}
			addr := view.Insert(hypertext.NewRaw(nested...))
			fragments = append(fragments, hypertext.Ref(addr))
			pos = next + 1
		case '$':
			name, next, ok := scanName(runes, pos)
			if !ok {
				return nil, pos, &Error{Offset: pos, Message: "'$' not followed by a valid pointer name"}
			}
			addr, known := names[name]
			if !known {
				return nil, pos, &Error{Offset: pos, Message: fmt.Sprintf("unknown pointer %q", name)}
			}
			fragments = append(fragments, hypertext.Ref(addr))
			pos = next
		default:
			start := pos
			for pos < len(runes) && runes[pos] != '[' && runes[pos] != ']' && runes[pos] != '$' {
				pos++
			}
			fragments = append(fragments, hypertext.Lit(string(runes[start:pos])))
		}
	}

	return fragments, pos, nil
}

// scanName matches `\$([awq]?[1-9][0-9]*)` starting at runes[pos] (which
// must be '$'). It returns the full matched token (including the leading
// '$'), the position just past it, and whether a match was found.
func scanName(runes []rune, pos int) (string, int, bool) {
	start := pos
	pos++ // consume '$'

	if pos < len(runes) {
		switch runes[pos] {
		case 'a', 'w', 'q':
			pos++
		}
	}

	if pos >= len(runes) || runes[pos] < '1' || runes[pos] > '9' {
		return "", start, false
	}
	pos++
	for pos < len(runes) && runes[pos] >= '0' && runes[pos] <= '9' {
		pos++
	}

	return string(runes[start:pos]), pos, true
}
