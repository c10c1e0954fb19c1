package hypertext

import (
	"strings"

	"github.com/gitrdm/loomwork/pkg/store"
)

// Fragment is one piece of a Raw node: either a literal string or a
// reference to another address. Exactly one of Literal or Addr is
// meaningful, selected by IsAddr.
type Fragment struct {
	Literal string
	Addr    store.Address
	IsAddr  bool
}

// Lit constructs a literal text fragment.
func Lit(text string) Fragment {
	return Fragment{Literal: text}
}

// Ref constructs an address-reference fragment.
func Ref(addr store.Address) Fragment {
	return Fragment{Addr: addr, IsAddr: true}
}

// Raw is an ordered sequence of fragments, each either literal text or an
// address.
type Raw struct {
	Fragments []Fragment
}

// NewRaw constructs a Raw node from fragments.
func NewRaw(fragments ...Fragment) Raw {
	return Raw{Fragments: fragments}
}

// Links returns the deduplicated sequence of referenced addresses in
// first-occurrence order.
func (r Raw) Links() []store.Address {
	var result []store.Address
	seen := make(map[store.Address]bool)
	for _, f := range r.Fragments {
		if f.IsAddr && !seen[f.Addr] {
			seen[f.Addr] = true
			result = append(result, f.Addr)
		}
	}
	return result
}

// Render concatenates literal fragments verbatim and substitutes address
// fragments through display (or their own String() if display is nil).
func (r Raw) Render(display map[store.Address]string) string {
	var b strings.Builder
	for _, f := range r.Fragments {
		if !f.IsAddr {
			b.WriteString(f.Literal)
			continue
		}
		if display == nil {
			b.WriteString(f.Addr.String())
			continue
		}
		b.WriteString(display[f.Addr])
	}
	return b.String()
}

// CanonicalKey renders the node with addresses spelled out literally,
// which is stable across runs for a given graph. Two Raw nodes that
// reference different addresses get different keys even when those
// addresses hold identical content; contexts over such nodes are matched
// by the local pointer naming in pkg/context, not by this key.
func (r Raw) CanonicalKey() string {
	return "raw:" + r.Render(nil)
}

var _ Node = Raw{}
