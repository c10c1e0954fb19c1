package store

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Transaction is a shadow store layered over a base Store. It records new
// promises, new content, new aliases, additional promisees added to
// existing promises, and which previously-pending promises it resolved.
// Reads consult the overlay first, the base second. The base is never
// mutated until Commit merges the overlay into it; Discard simply drops
// the overlay.
//
// A Transaction is not safe for concurrent use. At most one action is
// ever being resolved at a time, and automation inside
// Scheduler.ResolveAction runs synchronously against the same Transaction.
type Transaction struct {
	base *Store
	log  *zap.Logger

	newContent     map[Address]Content
	newCanonical   map[string]Address
	createdPending map[Address]bool
	promisees      map[Address][]any
	resolved       map[Address]bool
	aliases        map[Address]Address

	done bool
}

// Begin opens a new transaction over base.
func Begin(base *Store) *Transaction {
	return &Transaction{
		base:           base,
		log:            base.log,
		newContent:     make(map[Address]Content),
		newCanonical:   make(map[string]Address),
		createdPending: make(map[Address]bool),
		promisees:      make(map[Address][]any),
		resolved:       make(map[Address]bool),
		aliases:        make(map[Address]Address),
	}
}

func (t *Transaction) isPending(addr Address) bool {
	if t.resolved[addr] {
		return false
	}
	if t.createdPending[addr] {
		return true
	}
	return t.base.isPendingBase(addr)
}

// Insert mirrors Store.Insert against the overlaid view.
func (t *Transaction) Insert(content Content) Address {
	key := content.CanonicalKey()
	if addr, ok := t.newCanonical[key]; ok {
		return addr
	}
	if addr, ok := t.base.canonicalAddressForKey(key); ok {
		return addr
	}
	addr := NewAddress()
	t.newContent[addr] = content
	t.newCanonical[key] = addr
	return addr
}

// MakePromise mirrors Store.MakePromise against the overlaid view.
func (t *Transaction) MakePromise() Address {
	addr := NewAddress()
	t.createdPending[addr] = true
	return addr
}

// RegisterPromisee mirrors Store.RegisterPromisee against the overlaid view.
func (t *Transaction) RegisterPromisee(addr Address, promisee any) error {
	if !t.isPending(addr) {
		return errors.Wrapf(ErrAlreadyResolved, "register promisee on %s", addr)
	}
	t.promisees[addr] = append(t.promisees[addr], promisee)
	return nil
}

// ResolvePromise mirrors Store.ResolvePromise against the overlaid view.
// The combined promisee list (base list, if any, plus anything registered
// during this transaction) is delivered atomically: it is computed now but
// only takes effect in the base store at Commit.
func (t *Transaction) ResolvePromise(addr Address, content Content) ([]any, error) {
	if !t.isPending(addr) {
		return nil, errors.Wrapf(ErrAlreadyResolved, "resolve promise %s", addr)
	}

	key := content.CanonicalKey()
	canonicalAddr, ok := t.newCanonical[key]
	if !ok {
		canonicalAddr, ok = t.base.canonicalAddressForKey(key)
	}
	if ok && canonicalAddr != addr {
		t.aliases[addr] = canonicalAddr
	} else {
		t.newContent[addr] = content
		t.newCanonical[key] = addr
	}

	var basePromisees []any
	if !t.createdPending[addr] {
		basePromisees = t.base.GetPromisees(addr)
	}
	combined := make([]any, 0, len(basePromisees)+len(t.promisees[addr]))
	combined = append(combined, basePromisees...)
	combined = append(combined, t.promisees[addr]...)
	delete(t.promisees, addr)
	t.resolved[addr] = true

	return combined, nil
}

// Dereference mirrors Store.Dereference against the overlaid view.
func (t *Transaction) Dereference(addr Address) (Content, error) {
	canonical := t.Canonicalize(addr)
	if c, ok := t.newContent[canonical]; ok {
		return c, nil
	}
	if c, ok := t.base.contentForAddress(canonical); ok {
		return c, nil
	}
	if t.isPending(canonical) {
		return nil, errors.Wrapf(ErrPending, "dereference %s", addr)
	}
	return nil, errors.Wrapf(ErrUnknownAddress, "dereference %s", addr)
}

// Canonicalize mirrors Store.Canonicalize against the overlaid view.
func (t *Transaction) Canonicalize(addr Address) Address {
	if canonical, ok := t.aliases[addr]; ok {
		return canonical
	}
	if canonical, ok := t.base.aliasForAddress(addr); ok {
		return canonical
	}
	return addr
}

// IsFulfilled mirrors Store.IsFulfilled against the overlaid view.
func (t *Transaction) IsFulfilled(addr Address) bool {
	canonical := t.Canonicalize(addr)
	if _, ok := t.newContent[canonical]; ok {
		return true
	}
	_, ok := t.base.contentForAddress(canonical)
	return ok
}

// IsCanonical mirrors Store.IsCanonical against the overlaid view.
func (t *Transaction) IsCanonical(addr Address) bool {
	if _, ok := t.newContent[addr]; ok {
		return true
	}
	_, ok := t.base.contentForAddress(addr)
	return ok
}

// GetPromisees mirrors Store.GetPromisees against the overlaid view.
func (t *Transaction) GetPromisees(addr Address) []any {
	if !t.isPending(addr) {
		return nil
	}
	var base []any
	if !t.createdPending[addr] {
		base = t.base.GetPromisees(addr)
	}
	out := make([]any, 0, len(base)+len(t.promisees[addr]))
	out = append(out, base...)
	out = append(out, t.promisees[addr]...)
	return out
}

// Commit merges the overlay into the base store atomically. A Transaction
// must not be used after Commit or Discard.
func (t *Transaction) Commit() {
	if t.done {
		return
	}
	t.done = true

	t.base.mu.Lock()
	defer t.base.mu.Unlock()

	for addr, content := range t.newContent {
		t.base.content[addr] = content
	}
	for key, addr := range t.newCanonical {
		t.base.canonical[key] = addr
	}
	for addr, alias := range t.aliases {
		t.base.aliases[addr] = alias
	}
	for addr := range t.createdPending {
		if t.resolved[addr] {
			continue
		}
		t.base.promises[addr] = t.promisees[addr]
	}
	for addr := range t.resolved {
		if t.createdPending[addr] {
			continue
		}
		delete(t.base.promises, addr)
	}
	for addr, extra := range t.promisees {
		if t.createdPending[addr] || t.resolved[addr] {
			continue
		}
		t.base.promises[addr] = append(t.base.promises[addr], extra...)
	}

	t.log.Debug("transaction commit",
		zap.Int("new_content", len(t.newContent)),
		zap.Int("resolved", len(t.resolved)),
		zap.Int("aliases", len(t.aliases)))
}

// Discard drops the overlay without touching the base store.
func (t *Transaction) Discard() {
	t.done = true
}

var _ View = (*Transaction)(nil)
