package store

import "github.com/pkg/errors"

// ErrUnknownAddress is returned by Dereference when an address holds no
// content and is not a pending promise.
var ErrUnknownAddress = errors.New("store: unknown address")

// ErrPending is returned by Dereference when the address is canonical but
// its promise has not yet been resolved.
var ErrPending = errors.New("store: address is pending")

// ErrAlreadyResolved is a promise contract violation: RegisterPromisee or
// ResolvePromise was called against an address that is not a pending
// promise, either because it has already been resolved or because it
// never was one. Callers that hit it have a logic bug, not a user-input
// mistake, so pkg/scheduler treats it as fatal.
var ErrAlreadyResolved = errors.New("store: promise already resolved")
