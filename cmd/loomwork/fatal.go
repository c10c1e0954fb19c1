package main

import (
	"github.com/gitrdm/loomwork/pkg/scheduler"
)

// recoverFatal runs fn and converts any scheduler.FatalError panic into
// a returned error. Recovering here, and only here, ends the command
// instead of looping past a scheduler that just hit an invariant
// violation. A panic carrying anything other than a FatalError is not
// ours to catch, so it is re-raised.
func recoverFatal(fn func() (string, error)) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(scheduler.FatalError)
			if !ok {
				panic(r)
			}
			err = fe
		}
	}()
	return fn()
}
