// Package scheduler implements the transaction-wrapped automation loop
// that drives a context's action to completion, the memoization cache
// that lets the same context skip straight to a remembered action, and
// the session types a REPL or script driver uses to hold a conversation
// with the system.
//
// Automation runs inside the very transaction the triggering action
// opened, not after it commits. Committing the triggering action first
// and running automation as a separate pass would let an automated
// cascade that turns out to create a cycle leave real, already-committed
// promise resolutions behind with nothing to undo them. Running
// everything inside one transaction means a detected cycle just discards
// the whole attempt.
package scheduler

import (
	"github.com/gitrdm/loomwork/pkg/actions"
	hcontext "github.com/gitrdm/loomwork/pkg/context"
)

// Automator decides whether it can produce an action for a context
// without user input, and if so, what that action is.
type Automator interface {
	CanHandle(ctx *hcontext.Context) bool
	Handle(ctx *hcontext.Context) actions.Action
}

// Memoizer is an Automator backed by a cache of context display strings
// to the action that was taken the last time that exact context was
// seen. It is consulted first by the scheduler and remembers an action
// as soon as it is attempted; if the attempt turns out to create a
// cycle, the scheduler forgets it again so the same context isn't
// rejected a second time without a chance to be shown to a user.
type Memoizer struct {
	cache map[string]actions.Action
}

// NewMemoizer returns an empty Memoizer.
func NewMemoizer() *Memoizer {
	return &Memoizer{cache: make(map[string]actions.Action)}
}

// Remember records that action was taken for ctx.
func (m *Memoizer) Remember(ctx *hcontext.Context, action actions.Action) {
	m.cache[ctx.Display] = action
}

// Forget removes any remembered action for ctx.
func (m *Memoizer) Forget(ctx *hcontext.Context) {
	delete(m.cache, ctx.Display)
}

// CanHandle reports whether ctx has a remembered action.
func (m *Memoizer) CanHandle(ctx *hcontext.Context) bool {
	_, ok := m.cache[ctx.Display]
	return ok
}

// Handle returns the remembered action for ctx.
func (m *Memoizer) Handle(ctx *hcontext.Context) actions.Action {
	return m.cache[ctx.Display]
}

var _ Automator = (*Memoizer)(nil)
