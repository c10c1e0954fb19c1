// Package actions implements the four ways a user or automator can move
// the system forward: Scratch, AskSubquestion, Reply, and Unlock. Each
// is a pure function of (store.View, *context.Context) that returns an
// optional successor context and any newly spawned contexts.
//
// Every action operates exclusively through a store.View, never a bare
// *store.Store. The scheduler is responsible for wrapping execution in
// a store.Transaction so a cycle discovered partway through an automated
// cascade can be discarded atomically.
package actions

import (
	"github.com/pkg/errors"

	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/parser"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Action is executed against a context to produce an optional successor
// (the context's own continuation) and zero or more spawned contexts
// (new subquestions, or contexts that were waiting on a promise this
// action just fulfilled). The successor, when present, is always first.
type Action interface {
	Execute(view store.View, ctx *hcontext.Context) (successor *hcontext.Context, spawned []*hcontext.Context, err error)
}

// Predictable actions are ones whose successor shape a user can predict
// from the current workspace and the action alone.
type Predictable interface {
	Action
	predictable()
}

// Unpredictable actions (Reply and Unlock) have no successor at all:
// Reply wakes whatever contexts were waiting on the promises it
// resolves, and Unlock spawns its newly-unlocked context at once or only
// after the unlocked address is resolved.
type Unpredictable interface {
	Action
	unpredictable()
}

func hydrateDry(raw any, view store.View) (*hcontext.Context, error) {
	dry, ok := raw.(hcontext.DryContext)
	if !ok {
		return nil, errors.Errorf("promisee %v is not a DryContext", raw)
	}
	return dry.Hydrate(view)
}

func withSuccessorWorkspace(ws hypertext.Workspace, scratchpad *store.Address, subquestions *[]hypertext.Subquestion) hypertext.Workspace {
	out := ws
	if scratchpad != nil {
		out.Scratchpad = *scratchpad
	}
	if subquestions != nil {
		out.Subquestions = *subquestions
	}
	return out
}

// Scratch replaces a workspace's scratchpad with newly written text.
type Scratch struct {
	Text string
}

func (Scratch) predictable() {}

func (s Scratch) Execute(view store.View, ctx *hcontext.Context) (*hcontext.Context, []*hcontext.Context, error) {
	names, err := ctx.NamePointersForWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	newScratchpad, err := parser.ParseAndInsert(s.Text, view, parser.Names(names))
	if err != nil {
		return nil, nil, errors.Wrap(err, "scratch")
	}

	current, err := hcontext.WorkspaceAt(view, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	successorWs := withSuccessorWorkspace(current, &newScratchpad, nil)
	successorAddr := view.Insert(successorWs)

	newUnlocked, err := ctx.UnlockedLocationsFromWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	newUnlocked.Remove(ctx.WorkspaceAddr)
	newUnlocked.Add(successorAddr)
	newUnlocked.Add(newScratchpad)

	successor, err := hcontext.New(successorAddr, view, newUnlocked, ctx)
	if err != nil {
		return nil, nil, err
	}
	return successor, nil, nil
}

// AskSubquestion records a new subquestion on the current workspace and
// spawns a fresh context for the sub-workspace that will answer it.
type AskSubquestion struct {
	QuestionText string
}

func (AskSubquestion) predictable() {}

func (a AskSubquestion) Execute(view store.View, ctx *hcontext.Context) (*hcontext.Context, []*hcontext.Context, error) {
	names, err := ctx.NamePointersForWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	subquestionAddr, err := parser.ParseAndInsert(a.QuestionText, view, parser.Names(names))
	if err != nil {
		return nil, nil, errors.Wrap(err, "ask subquestion")
	}

	answerPromise := view.MakePromise()
	finalSubWorkspacePromise := view.MakePromise()
	subScratchpad, err := parser.ParseAndInsert("", view, parser.Names{})
	if err != nil {
		return nil, nil, err
	}
	subWorkspaceAddr := view.Insert(hypertext.Workspace{
		Question:              subquestionAddr,
		AnswerPromise:         answerPromise,
		FinalWorkspacePromise: finalSubWorkspacePromise,
		Scratchpad:            subScratchpad,
	})
	// Re-fetch: Insert may have deduplicated onto an existing,
	// differently-addressed-but-structurally-identical workspace.
	subWorkspace, err := hcontext.WorkspaceAt(view, subWorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}

	current, err := hcontext.WorkspaceAt(view, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	newSubquestions := append(append([]hypertext.Subquestion{}, current.Subquestions...), hypertext.Subquestion{
		Question:       subquestionAddr,
		Answer:         subWorkspace.AnswerPromise,
		FinalWorkspace: subWorkspace.FinalWorkspacePromise,
	})
	successorWs := withSuccessorWorkspace(current, nil, &newSubquestions)
	successorAddr := view.Insert(successorWs)

	newUnlocked, err := ctx.UnlockedLocationsFromWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	newUnlocked.Remove(ctx.WorkspaceAddr)
	newUnlocked.Add(subquestionAddr)
	newUnlocked.Add(successorAddr)

	successor, err := hcontext.New(successorAddr, view, newUnlocked, ctx)
	if err != nil {
		return nil, nil, err
	}
	spawned, err := hcontext.New(subWorkspaceAddr, view, nil, ctx)
	if err != nil {
		return nil, nil, err
	}
	return successor, []*hcontext.Context{spawned}, nil
}

// Reply resolves the current workspace's answer and final-workspace
// promises. It has no successor of its own (replying ends the context),
// but it may wake up any number of other contexts that were waiting on
// either promise.
type Reply struct {
	ReplyText string
}

func (Reply) unpredictable() {}

func (r Reply) Execute(view store.View, ctx *hcontext.Context) (*hcontext.Context, []*hcontext.Context, error) {
	current, err := hcontext.WorkspaceAt(view, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	names, err := ctx.NamePointersForWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	reply, err := parser.ParseFragments(r.ReplyText, view, parser.Names(names))
	if err != nil {
		return nil, nil, errors.Wrap(err, "reply")
	}

	var allPromisees []any

	// answer_promise and final_workspace_promise are both deliberately
	// excluded from Workspace.Links(), so resolving them here can never
	// introduce a link cycle.
	if !view.IsFulfilled(current.AnswerPromise) {
		promisees, err := view.ResolvePromise(current.AnswerPromise, reply)
		if err != nil {
			return nil, nil, err
		}
		allPromisees = append(allPromisees, promisees...)
	}
	if !view.IsFulfilled(current.FinalWorkspacePromise) {
		promisees, err := view.ResolvePromise(current.FinalWorkspacePromise, current)
		if err != nil {
			return nil, nil, err
		}
		allPromisees = append(allPromisees, promisees...)
	}

	spawned := make([]*hcontext.Context, 0, len(allPromisees))
	for _, raw := range allPromisees {
		c, err := hydrateDry(raw, view)
		if err != nil {
			return nil, nil, err
		}
		spawned = append(spawned, c)
	}
	return nil, spawned, nil
}

// Unlock adds a pointer the user named to the unlocked set. If the
// pointer already has content, the newly-unlocked context is available
// immediately; otherwise the context is registered as a promisee and
// only materializes once that address is resolved.
type Unlock struct {
	PointerName string
}

func (Unlock) unpredictable() {}

func (u Unlock) Execute(view store.View, ctx *hcontext.Context) (*hcontext.Context, []*hcontext.Context, error) {
	names, err := ctx.NamePointersForWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	pointerAddr, ok := names[u.PointerName]
	if !ok {
		return nil, nil, errors.Errorf("%s is not visible in this context", u.PointerName)
	}

	newUnlocked, err := ctx.UnlockedLocationsFromWorkspace(ctx.WorkspaceAddr, view)
	if err != nil {
		return nil, nil, err
	}
	if newUnlocked.Has(pointerAddr) {
		return nil, nil, errors.Errorf("%s is already unlocked", u.PointerName)
	}
	newUnlocked.Add(pointerAddr)

	dry := hcontext.DryContext{WorkspaceAddr: ctx.WorkspaceAddr, Unlocked: newUnlocked, Parent: ctx}

	if view.IsFulfilled(pointerAddr) {
		hydrated, err := dry.Hydrate(view)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*hcontext.Context{hydrated}, nil
	}

	if err := view.RegisterPromisee(pointerAddr, dry); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

var (
	_ Predictable   = Scratch{}
	_ Predictable   = AskSubquestion{}
	_ Unpredictable = Reply{}
	_ Unpredictable = Unlock{}
)
