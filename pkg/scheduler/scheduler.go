package scheduler

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gitrdm/loomwork/pkg/actions"
	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/hypertext"
	"github.com/gitrdm/loomwork/pkg/parser"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Scheduler owns the base Store and the set of contexts currently active
// (shown to a user) or pending (waiting because they could not be
// automated). It is the only thing that ever wraps an Action in a
// store.Transaction.
type Scheduler struct {
	log *zap.Logger

	db *store.Store

	activeContexts  map[string]*hcontext.Context
	pendingContexts []*hcontext.Context

	memoizer   *Memoizer
	automators []Automator
}

// New creates a Scheduler over db. A nil logger is replaced with a no-op
// one.
func New(db *store.Store, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	memoizer := NewMemoizer()
	return &Scheduler{
		log:            log,
		db:             db,
		activeContexts: make(map[string]*hcontext.Context),
		memoizer:       memoizer,
		automators:     []Automator{memoizer},
	}
}

// AskRootQuestion creates a fresh root workspace for text, builds its
// initial context, and immediately tries to resolve it if the memoizer
// already knows what to do with a context exactly like it.
func (s *Scheduler) AskRootQuestion(text string) (*hcontext.Context, error) {
	questionAddr, err := parser.ParseAndInsert(text, s.db, parser.Names{})
	if err != nil {
		return nil, errors.Wrap(err, "ask root question")
	}
	answerAddr := s.db.MakePromise()
	finalWorkspaceAddr := s.db.MakePromise()
	scratchpadAddr, err := parser.ParseAndInsert("", s.db, parser.Names{})
	if err != nil {
		return nil, err
	}
	workspaceAddr := s.db.Insert(hypertext.Workspace{
		Question:              questionAddr,
		AnswerPromise:         answerAddr,
		FinalWorkspacePromise: finalWorkspaceAddr,
		Scratchpad:            scratchpadAddr,
	})

	initial, err := hcontext.New(workspaceAddr, s.db, nil, nil)
	if err != nil {
		return nil, err
	}
	s.activeContexts[initial.Display] = initial
	s.log.Debug("asked root question", zap.String("workspace", workspaceAddr.String()))

	result := initial
	if s.memoizer.CanHandle(initial) {
		resolved, err := s.ResolveAction(initial, s.memoizer.Handle(initial))
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			result = resolved
		}
	}
	s.activeContexts[result.Display] = result
	return result, nil
}

// ResolveAction executes action against starting inside a fresh
// transaction, then runs every automator it can against the contexts
// that action spawns (and every context left over from a previous
// attempt), recursively, until nothing left in the queue can be
// automated. If any resulting context would be its own ancestor, the
// whole transaction is discarded and the memoized action for starting is
// forgotten so the same context can be offered to a user instead of
// being rejected silently a second time. Otherwise the transaction
// commits atomically and starting's successor (if any) is returned.
func (s *Scheduler) ResolveAction(starting *hcontext.Context, action actions.Action) (*hcontext.Context, error) {
	if _, ok := s.activeContexts[starting.Display]; !ok {
		return nil, errors.New("context is not active")
	}

	txn := store.Begin(s.db)
	s.memoizer.Remember(starting, action)

	successor, spawned, err := action.Execute(txn, starting)
	if err != nil {
		s.memoizer.Forget(starting)
		panicIfFatal(err)
		return nil, err
	}

	// Spawned contexts go ahead of the leftover pending queue so new
	// work is tried first.
	queue := make([]*hcontext.Context, 0, len(spawned)+len(s.pendingContexts))
	for i := len(spawned) - 1; i >= 0; i-- {
		queue = append(queue, spawned[i])
	}
	queue = append(queue, s.pendingContexts...)

	var unautomatable []*hcontext.Context
	for len(queue) > 0 {
		ctx := queue[0]
		queue = queue[1:]

		var automaticAction actions.Action
		for _, automator := range s.automators {
			if automator.CanHandle(ctx) {
				automaticAction = automator.Handle(ctx)
				break
			}
		}

		if automaticAction == nil {
			unautomatable = append(unautomatable, ctx)
			continue
		}

		newSuccessor, newContexts, err := automaticAction.Execute(txn, ctx)
		if err != nil {
			s.memoizer.Forget(starting)
			panicIfFatal(err)
			return nil, err
		}
		if newSuccessor != nil {
			newContexts = append(newContexts, newSuccessor)
		}
		for _, c := range newContexts {
			if c.IsOwnAncestor(txn) {
				s.memoizer.Forget(starting)
				return nil, ErrCycleDetected
			}
			queue = append(queue, c)
		}
	}

	txn.Commit()
	s.pendingContexts = unautomatable
	delete(s.activeContexts, starting.Display)
	if successor != nil {
		s.activeContexts[successor.Display] = successor
	}
	return successor, nil
}

// ChooseArbitraryContext pops the first pending context, if any, and
// marks it active.
func (s *Scheduler) ChooseArbitraryContext() *hcontext.Context {
	if len(s.pendingContexts) == 0 {
		return nil
	}
	choice := s.pendingContexts[0]
	s.pendingContexts = s.pendingContexts[1:]
	s.activeContexts[choice.Display] = choice
	return choice
}

// ChooseContextToAdvancePromise scans the pending queue, in order, for
// the first context that could make progress toward resolving promise,
// and promotes it to active. A FIFO scan filtered by CanAdvancePromise
// is enough to guarantee a context that can make progress is eventually
// chosen; no distance metric over the promise graph is needed.
func (s *Scheduler) ChooseContextToAdvancePromise(promise store.Address) (*hcontext.Context, error) {
	for i, ctx := range s.pendingContexts {
		can, err := ctx.CanAdvancePromise(s.db, promise)
		if err != nil {
			return nil, err
		}
		if can {
			s.pendingContexts = append(s.pendingContexts[:i], s.pendingContexts[i+1:]...)
			s.activeContexts[ctx.Display] = ctx
			return ctx, nil
		}
	}
	return nil, nil
}

// Relinquish moves ctx from active back to pending.
func (s *Scheduler) Relinquish(ctx *hcontext.Context) {
	s.pendingContexts = append(s.pendingContexts, ctx)
	delete(s.activeContexts, ctx.Display)
}

// IsActive reports whether ctx is currently tracked as active.
func (s *Scheduler) IsActive(ctx *hcontext.Context) bool {
	_, ok := s.activeContexts[ctx.Display]
	return ok
}

// Store exposes the underlying Store for callers (snapshotting,
// rendering a final answer) that need read access outside of an action.
func (s *Scheduler) Store() *store.Store {
	return s.db
}

// ActiveContexts returns every context currently shown to a user.
func (s *Scheduler) ActiveContexts() []*hcontext.Context {
	out := make([]*hcontext.Context, 0, len(s.activeContexts))
	for _, ctx := range s.activeContexts {
		out = append(out, ctx)
	}
	return out
}

// PendingContexts returns a copy of the queue of contexts waiting to be
// shown because they could not be automated.
func (s *Scheduler) PendingContexts() []*hcontext.Context {
	out := make([]*hcontext.Context, len(s.pendingContexts))
	copy(out, s.pendingContexts)
	return out
}

// RestoreContexts replaces the scheduler's active and pending sets.
// Meant to be called only on a freshly constructed Scheduler as part of
// loading a snapshot.
func (s *Scheduler) RestoreContexts(active, pending []*hcontext.Context) {
	s.activeContexts = make(map[string]*hcontext.Context, len(active))
	for _, ctx := range active {
		s.activeContexts[ctx.Display] = ctx
	}
	s.pendingContexts = append([]*hcontext.Context{}, pending...)
}
