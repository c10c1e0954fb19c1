package context

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Context is the view a user or automator has onto a workspace: which
// other locations are unlocked alongside it, the local pointer names
// assigned to everything reachable, a rendered Display string, and the
// parent context (if any) it was spawned from. Contexts are immutable
// once built; every Action that changes what is visible builds a new one.
type Context struct {
	WorkspaceAddr store.Address
	Unlocked      Set
	PointerNames  map[store.Address]string
	NamePointers  map[string]store.Address
	Display       string
	Parent        *Context
}

// WorkspaceAt dereferences addr and asserts it holds a Workspace. Actions
// and the scheduler use this to read workspace fields without
// duplicating the type assertion.
func WorkspaceAt(view store.View, addr store.Address) (hypertext.Workspace, error) {
	return workspaceAt(view, addr)
}

func workspaceAt(view store.View, addr store.Address) (hypertext.Workspace, error) {
	content, err := view.Dereference(addr)
	if err != nil {
		return hypertext.Workspace{}, err
	}
	ws, ok := content.(hypertext.Workspace)
	if !ok {
		return hypertext.Workspace{}, errors.Errorf("address %s does not hold a workspace", addr)
	}
	return ws, nil
}

// New builds a Context around workspaceAddr. A nil unlocked defaults to
// the workspace's own question, scratchpad, immediate subquestion
// questions, and predecessor: everything visible with no explicit
// unlocks. workspaceAddr itself is always added to the unlocked set
// regardless.
func New(workspaceAddr store.Address, view store.View, unlocked Set, parent *Context) (*Context, error) {
	ws, err := workspaceAt(view, workspaceAddr)
	if err != nil {
		return nil, err
	}

	var unlockedLocations Set
	if unlocked != nil {
		unlockedLocations = unlocked.Clone()
	} else {
		unlockedLocations = NewSet(workspaceAddr, ws.Question, ws.Scratchpad)
		for _, sq := range ws.Subquestions {
			unlockedLocations.Add(sq.Question)
		}
		if ws.Predecessor != nil {
			unlockedLocations.Add(*ws.Predecessor)
		}
	}
	unlockedLocations.Add(workspaceAddr)

	pointerNames, namePointersMap, err := namePointers(workspaceAddr, workspaceAddr, view, unlockedLocations)
	if err != nil {
		return nil, err
	}

	display, err := renderContextDisplay(workspaceAddr, view, unlockedLocations, pointerNames)
	if err != nil {
		return nil, err
	}

	return &Context{
		WorkspaceAddr: workspaceAddr,
		Unlocked:      unlockedLocations,
		PointerNames:  pointerNames,
		NamePointers:  namePointersMap,
		Display:       display,
		Parent:        parent,
	}, nil
}

// UnlockedLocationsFromWorkspace zips c's unlocked walk onto a candidate
// workspace address (typically a successor of c.WorkspaceAddr with the
// same shape), returning the set of addresses that would be unlocked
// there.
func (c *Context) UnlockedLocationsFromWorkspace(workspaceAddr store.Address, view store.View) (Set, error) {
	addrs, err := visitUnlockedRegion(c.WorkspaceAddr, workspaceAddr, view, c.Unlocked)
	if err != nil {
		return nil, err
	}
	return NewSet(addrs...), nil
}

// NamePointersForWorkspace computes the name -> address map that would
// result from re-seating c's naming onto workspaceAddr, without building
// a full Context. Actions use this to resolve the pointer names a user
// typed against the workspace they are about to replace.
func (c *Context) NamePointersForWorkspace(workspaceAddr store.Address, view store.View) (map[string]store.Address, error) {
	_, backward, err := namePointers(c.WorkspaceAddr, workspaceAddr, view, c.Unlocked)
	if err != nil {
		return nil, err
	}
	return backward, nil
}

// IsOwnAncestor reports whether c appears among its own ancestors: an
// ancestor whose Display matches c's exactly and whose workspace
// canonicalizes to the same address as c's. This is the cycle check the
// scheduler runs before committing any automated step.
func (c *Context) IsOwnAncestor(view store.View) bool {
	initial := view.Canonicalize(c.WorkspaceAddr)
	for ancestor := c.Parent; ancestor != nil; ancestor = ancestor.Parent {
		if ancestor.Display == c.Display && view.Canonicalize(ancestor.WorkspaceAddr) == initial {
			return true
		}
	}
	return false
}

// CanFulfillPromise reports whether promise is one of the two promises
// belonging directly to c's own workspace.
func (c *Context) CanFulfillPromise(view store.View, promise store.Address) (bool, error) {
	ws, err := workspaceAt(view, c.WorkspaceAddr)
	if err != nil {
		return false, err
	}
	return promise == ws.AnswerPromise || promise == ws.FinalWorkspacePromise, nil
}

// CanAdvancePromise reports whether resolving promise would transitively
// let c make progress: either c can fulfill it directly, or some context
// already registered as a promisee of one of c's own promises can,
// applied recursively down the promisee chain.
func (c *Context) CanAdvancePromise(view store.View, promise store.Address) (bool, error) {
	can, err := c.CanFulfillPromise(view, promise)
	if err != nil {
		return false, err
	}
	if can {
		return true, nil
	}

	ws, err := workspaceAt(view, c.WorkspaceAddr)
	if err != nil {
		return false, err
	}

	promisees := append(view.GetPromisees(ws.AnswerPromise), view.GetPromisees(ws.FinalWorkspacePromise)...)
	for _, raw := range promisees {
		dry, ok := raw.(DryContext)
		if !ok {
			return false, errors.Errorf("promisee %v is not a DryContext", raw)
		}
		// The dry context's own unlocked set still contains the pending
		// address it is waiting on, which cannot be dereferenced yet. The
		// predicate only needs the promisee's workspace identity, so build
		// its context with the default unlocked set instead.
		promiseeContext, err := New(dry.WorkspaceAddr, view, nil, nil)
		if err != nil {
			return false, err
		}
		advances, err := promiseeContext.CanAdvancePromise(view, promise)
		if err != nil {
			return false, err
		}
		if advances {
			return true, nil
		}
	}

	return false, nil
}

// DryContext is the minimal, storable stand-in for a Context: just
// enough to reconstruct one once a promise it is waiting on resolves.
// It is what gets registered as a promisee (via store.View.RegisterPromisee)
// whenever an Unlock targets an address that is not yet fulfilled: the
// system's only await mechanism, and it is entirely data.
type DryContext struct {
	WorkspaceAddr store.Address
	Unlocked      Set
	Parent        *Context
}

// Hydrate builds the full Context a DryContext stands for.
func (d DryContext) Hydrate(view store.View) (*Context, error) {
	return New(d.WorkspaceAddr, view, d.Unlocked, d.Parent)
}
