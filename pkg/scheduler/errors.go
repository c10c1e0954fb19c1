package scheduler

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/loomwork/pkg/store"
)

// ErrCycleDetected reports that a context produced during automation
// turned out to be its own ancestor. Recoverable: by the time
// ResolveAction returns this, the transaction has already been discarded
// and the memoizer entry for the triggering action rolled back, so the
// caller sees the pre-action state restored.
var ErrCycleDetected = errors.New("scheduler: action resulted in an infinite loop")

// ErrSchedulerStarvation reports that no pending context can advance a
// still-needed promise and none remain to try while the root answer is
// still incomplete. Fatal: it indicates a logic bug, not something a
// user did, so RootQuestionSession.Act panics with it wrapped in a
// FatalError rather than returning it.
var ErrSchedulerStarvation = errors.New("scheduler: ended up with no work to do but also no answers")

// FatalError marks an error as one of the two fatal kinds (promise
// contract violation, scheduler starvation). These are treated
// differently from user-input errors: panicking with a FatalError skips
// every intermediate error return and is only recovered at the CLI
// boundary, which reports it and terminates instead of accepting further
// commands against a scheduler that just hit an invariant violation.
type FatalError struct {
	Err error
}

func (f FatalError) Error() string { return f.Err.Error() }
func (f FatalError) Unwrap() error { return f.Err }

// isPromiseContractViolation reports whether err is, or wraps,
// store.ErrAlreadyResolved: RegisterPromisee or ResolvePromise was
// called against an address that is not a pending promise (either
// because it never was one or because it already resolved).
func isPromiseContractViolation(err error) bool {
	return errors.Is(err, store.ErrAlreadyResolved)
}

// panicIfFatal panics with a FatalError if err is a promise contract
// violation, leaving every other error kind to propagate normally as a
// recoverable return value.
func panicIfFatal(err error) {
	if isPromiseContractViolation(err) {
		panic(FatalError{Err: err})
	}
}
