// Package context implements the view a user or automator works in: a
// snapshot of which locations are unlocked around a workspace, the local
// pointer names assigned to everything reachable from it, and the
// ancestry chain used for cycle detection.
package context

import "github.com/gitrdm/loomwork/pkg/store"

// Set is an unlocked-location set: the addresses a Context is permitted
// to walk into when computing pointer names and rendering its display.
type Set map[store.Address]struct{}

// NewSet builds a Set from the given addresses.
func NewSet(addrs ...store.Address) Set {
	s := make(Set, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether addr is a member.
func (s Set) Has(addr store.Address) bool {
	if s == nil {
		return false
	}
	_, ok := s[addr]
	return ok
}

// Add inserts addr.
func (s Set) Add(addr store.Address) {
	s[addr] = struct{}{}
}

// Remove deletes addr, if present.
func (s Set) Remove(addr store.Address) {
	delete(s, addr)
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	return out
}
