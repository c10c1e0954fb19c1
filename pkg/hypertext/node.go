// Package hypertext implements the immutable node data model: a small,
// closed set of node variants (Raw, Workspace) whose links() order
// depends only on the node's own structure, never on address identity.
// That stability is load-bearing: it is what lets two observationally
// identical workspaces, allocated at different times under different
// addresses, drive the same local pointer naming in pkg/context.
package hypertext

import "github.com/gitrdm/loomwork/pkg/store"

// Node is a hypertext node: either a Raw fragment list or a Workspace. It
// satisfies store.Content, so Node values can be stored directly in a
// store.Store or store.Transaction.
type Node interface {
	store.Content

	// Links returns the deduplicated sequence of addresses this node
	// refers to, in first-occurrence (or otherwise structurally fixed)
	// order. Two calls against the same node must return identical
	// sequences.
	Links() []store.Address

	// Render produces the node's textual form. display is a map from
	// address to the string that should stand in for it; a nil display
	// renders every referenced address via its own String().
	Render(display map[store.Address]string) string
}
