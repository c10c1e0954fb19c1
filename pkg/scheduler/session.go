package scheduler

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/loomwork/pkg/actions"
	hcontext "github.com/gitrdm/loomwork/pkg/context"
	"github.com/gitrdm/loomwork/pkg/store"
)

// Session holds a conversation with a Scheduler: it tracks which
// context is currently being shown, and relinquishes it back to the
// pending queue on Close if the session ends before the context
// resolved to anything else.
type Session struct {
	Scheduler *Scheduler
	Current   *hcontext.Context
}

// Close relinquishes the session's current context, if it is still
// active. Callers should defer this immediately after opening a session.
func (s *Session) Close() {
	if s.Current != nil && s.Scheduler.IsActive(s.Current) {
		s.Scheduler.Relinquish(s.Current)
	}
}

// ActResult is what acting on a RootQuestionSession produces: either a
// new Context to keep working from, or, once the root question's answer
// is fully resolved, the rendered Answer text.
type ActResult struct {
	Context *hcontext.Context
	Answer  string
}

// Done reports whether the root question has been answered.
func (r ActResult) Done() bool {
	return r.Context == nil
}

type linker interface {
	Links() []store.Address
}

// RootQuestionSession is the kind of session a single-user REPL or
// script driver uses: it cares only about contexts that make progress
// toward answering one root question.
type RootQuestionSession struct {
	Session
	FinalAnswerPromise store.Address
}

// NewRootQuestionSession asks question as a fresh root question and
// wraps its initial context in a session.
func NewRootQuestionSession(sched *Scheduler, question string) (*RootQuestionSession, error) {
	ctx, err := sched.AskRootQuestion(question)
	if err != nil {
		return nil, err
	}
	ws, err := hcontext.WorkspaceAt(sched.db, ctx.WorkspaceAddr)
	if err != nil {
		return nil, err
	}
	return &RootQuestionSession{
		Session:            Session{Scheduler: sched, Current: ctx},
		FinalAnswerPromise: ws.AnswerPromise,
	}, nil
}

// IsAnswerComplete reports whether address, and everything it
// transitively links to, is fulfilled. An answer isn't really done until
// every sub-answer it references is resolved too.
func (r *RootQuestionSession) IsAnswerComplete(address store.Address) (bool, error) {
	if !r.Scheduler.db.IsFulfilled(address) {
		return false, nil
	}
	content, err := r.Scheduler.db.Dereference(address)
	if err != nil {
		return false, err
	}
	node, ok := content.(linker)
	if !ok {
		return false, errors.Errorf("content %T does not implement Links()", content)
	}
	for _, sub := range node.Links() {
		complete, err := r.IsAnswerComplete(sub)
		if err != nil {
			return false, err
		}
		if !complete {
			return false, nil
		}
	}
	return true, nil
}

// Act resolves action against the session's current context. If that
// leaves the root question fully answered, the result carries the
// rendered answer text and no context. Otherwise it advances to whatever
// context the resolve produced, or failing that the first pending
// context that could advance the final answer promise, or failing that
// any pending context at all.
func (r *RootQuestionSession) Act(action actions.Action) (ActResult, error) {
	resulting, err := r.Scheduler.ResolveAction(r.Current, action)
	if err != nil {
		return ActResult{}, err
	}

	complete, err := r.IsAnswerComplete(r.FinalAnswerPromise)
	if err != nil {
		return ActResult{}, err
	}
	if complete {
		texts, err := hcontext.MakeLinkTexts(r.FinalAnswerPromise, r.Scheduler.db, nil, nil)
		if err != nil {
			return ActResult{}, err
		}
		r.Current = nil
		return ActResult{Answer: texts[r.FinalAnswerPromise]}, nil
	}

	if resulting == nil {
		resulting, err = r.Scheduler.ChooseContextToAdvancePromise(r.FinalAnswerPromise)
		if err != nil {
			return ActResult{}, err
		}
	}
	if resulting == nil {
		resulting = r.Scheduler.ChooseArbitraryContext()
	}
	if resulting == nil {
		panic(FatalError{Err: ErrSchedulerStarvation})
	}

	r.Current = resulting
	return ActResult{Context: resulting}, nil
}
