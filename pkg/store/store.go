package store

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Content is anything that can be stored under an Address. The store only
// needs a deterministic, address-identity-insensitive key to deduplicate
// structurally identical content on Insert; everything else about the
// content (how it renders, what it links to) is the concern of the
// package that defines it (see pkg/hypertext).
type Content interface {
	// CanonicalKey returns a string that is equal for two pieces of
	// content if and only if they should be treated as the same content
	// for deduplication purposes. It must depend only on the content's
	// own structure.
	CanonicalKey() string
}

// View is the read/write surface Actions and Contexts use to talk to
// either the base Store directly or a Transaction overlaid on it. Actions
// must never be handed a *Store on which to mutate state outside of a
// transaction; the Scheduler is the only caller that holds a bare
// *Store, and only for the no-automation case (ask-root-question).
type View interface {
	Insert(content Content) Address
	MakePromise() Address
	RegisterPromisee(addr Address, promisee any) error
	ResolvePromise(addr Address, content Content) ([]any, error)
	Dereference(addr Address) (Content, error)
	Canonicalize(addr Address) Address
	IsFulfilled(addr Address) bool
	IsCanonical(addr Address) bool
	// GetPromisees returns a snapshot of the current promisee list for a
	// pending promise without consuming it. Used by the promise-advancement
	// predicate (pkg/context) to inspect, not drain, the registry.
	GetPromisees(addr Address) []any
}

// Store is the base, globally-visible content-addressed map. All of its
// methods are safe for concurrent use, though the system as a whole is
// single-threaded cooperative: the mutex exists to make the Store safe
// to read from a REPL goroutine while a resolve is in flight, not to
// support concurrent writers.
type Store struct {
	log *zap.Logger

	mu         sync.RWMutex
	content    map[Address]Content
	canonical  map[string]Address // content key -> canonical address
	promises   map[Address][]any  // pending promise -> promisee list
	aliases    map[Address]Address
}

// New creates an empty Store. A nil logger is replaced with a no-op one
// so library callers and tests never have to supply one.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		log:       log,
		content:   make(map[Address]Content),
		canonical: make(map[string]Address),
		promises:  make(map[Address][]any),
		aliases:   make(map[Address]Address),
	}
}

// Insert returns the existing canonical address if content is already
// present (by CanonicalKey); otherwise it allocates a new address, stores
// the content, and records it as canonical.
func (s *Store) Insert(content Content) Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(content)
}

func (s *Store) insertLocked(content Content) Address {
	key := content.CanonicalKey()
	if addr, ok := s.canonical[key]; ok {
		return addr
	}
	addr := NewAddress()
	s.content[addr] = content
	s.canonical[key] = addr
	s.log.Debug("store insert", zap.String("addr", addr.String()))
	return addr
}

// MakePromise allocates an address in the pending state with an empty
// promisee list.
func (s *Store) MakePromise() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := NewAddress()
	s.promises[addr] = nil
	return addr
}

// RegisterPromisee appends promisee to the promisee list of a pending
// promise. Registering against an address that is not a pending promise
// is a promise-contract violation, not a user-input mistake.
func (s *Store) RegisterPromisee(addr Address, promisee any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.promises[addr]; !pending {
		return errors.Wrapf(ErrAlreadyResolved, "register promisee on %s", addr)
	}
	s.promises[addr] = append(s.promises[addr], promisee)
	return nil
}

// ResolvePromise resolves a pending promise. If content is already
// canonical under a different address, addr becomes an alias of that
// address; otherwise content is stored under addr and addr becomes
// canonical for it. Returns the (now cleared) promisee list.
func (s *Store) ResolvePromise(addr Address, content Content) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	promisees, pending := s.promises[addr]
	if !pending {
		return nil, errors.Wrapf(ErrAlreadyResolved, "resolve promise %s", addr)
	}

	key := content.CanonicalKey()
	if canonicalAddr, ok := s.canonical[key]; ok && canonicalAddr != addr {
		s.aliases[addr] = canonicalAddr
	} else {
		s.content[addr] = content
		s.canonical[key] = addr
	}

	delete(s.promises, addr)
	s.log.Debug("store resolve", zap.String("addr", addr.String()), zap.Int("promisees", len(promisees)))
	return promisees, nil
}

// Dereference follows aliases and returns the content at addr. It fails
// if the (canonicalized) address is still pending.
func (s *Store) Dereference(addr Address) (Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dereferenceLocked(addr)
}

func (s *Store) dereferenceLocked(addr Address) (Content, error) {
	canonical := s.canonicalizeLocked(addr)
	content, ok := s.content[canonical]
	if !ok {
		if _, pending := s.promises[canonical]; pending {
			return nil, errors.Wrapf(ErrPending, "dereference %s", addr)
		}
		return nil, errors.Wrapf(ErrUnknownAddress, "dereference %s", addr)
	}
	return content, nil
}

// Canonicalize follows the (single-step, by construction) alias chain.
func (s *Store) Canonicalize(addr Address) Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canonicalizeLocked(addr)
}

func (s *Store) canonicalizeLocked(addr Address) Address {
	if canonical, ok := s.aliases[addr]; ok {
		return canonical
	}
	return addr
}

// IsFulfilled reports whether, after canonicalization, content is present
// for addr.
func (s *Store) IsFulfilled(addr Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.content[s.canonicalizeLocked(addr)]
	return ok
}

// IsCanonical reports whether addr itself (no alias following) has
// content stored under it.
func (s *Store) IsCanonical(addr Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.content[addr]
	return ok
}

// GetPromisees returns a snapshot copy of the current promisee list for a
// pending promise, or nil if addr is not pending.
func (s *Store) GetPromisees(addr Address) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	promisees, pending := s.promises[addr]
	if !pending {
		return nil
	}
	out := make([]any, len(promisees))
	copy(out, promisees)
	return out
}

// ContentSnapshot returns a copy of every address currently holding
// content, keyed by address. Used by internal/snapshot to persist store
// state.
func (s *Store) ContentSnapshot() map[Address]Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address]Content, len(s.content))
	for addr, content := range s.content {
		out[addr] = content
	}
	return out
}

// CanonicalSnapshot returns a copy of the content-key -> canonical
// address table.
func (s *Store) CanonicalSnapshot() map[string]Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Address, len(s.canonical))
	for key, addr := range s.canonical {
		out[key] = addr
	}
	return out
}

// PendingPromisesSnapshot returns a copy of the pending-promise ->
// promisee-list table.
func (s *Store) PendingPromisesSnapshot() map[Address][]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address][]any, len(s.promises))
	for addr, promisees := range s.promises {
		cp := make([]any, len(promisees))
		copy(cp, promisees)
		out[addr] = cp
	}
	return out
}

// AliasSnapshot returns a copy of the alias table.
func (s *Store) AliasSnapshot() map[Address]Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address]Address, len(s.aliases))
	for addr, canonical := range s.aliases {
		out[addr] = canonical
	}
	return out
}

// RestoreFrom replaces the store's entire state with the given tables.
// It is meant to be called only on a freshly constructed, empty Store
// immediately after New, as part of loading a snapshot.
func (s *Store) RestoreFrom(content map[Address]Content, canonical map[string]Address, promises map[Address][]any, aliases map[Address]Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	s.canonical = canonical
	s.promises = promises
	s.aliases = aliases
}

// isPendingBase reports whether addr is pending in the base store, with no
// knowledge of any overlay. Used only by Transaction, in the same package.
func (s *Store) isPendingBase(addr Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.promises[addr]
	return ok
}

// canonicalAddressForKey looks up the base's canonical address for a
// content key without inserting anything. Used only by Transaction.
func (s *Store) canonicalAddressForKey(key string) (Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.canonical[key]
	return addr, ok
}

// contentForAddress looks up base content directly (no alias following,
// no pending error). Used only by Transaction.
func (s *Store) contentForAddress(addr Address) (Content, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[addr]
	return c, ok
}

// aliasForAddress looks up a base alias directly. Used only by Transaction.
func (s *Store) aliasForAddress(addr Address) (Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aliases[addr]
	return a, ok
}

var _ View = (*Store)(nil)
