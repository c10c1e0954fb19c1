// Package store implements the content-addressed hypertext store: a map
// from opaque addresses to immutable content, a promise registry for
// addresses whose content is not yet known, an alias table for content
// deduplication, and a transactional overlay that buffers writes until
// they are committed atomically.
package store

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/google/uuid"
)

// Address is an opaque, globally-unique identifier naming a slot in the
// Store. Two addresses are equal only if they name the same slot; two
// addresses whose slots happen to hold identical content are still
// distinct. Store.Insert avoids that case by returning the address that
// already holds the content, and Store.ResolvePromise expresses it as an
// alias.
type Address struct {
	id uuid.UUID
}

// NewAddress allocates a fresh, never-before-seen address.
func NewAddress() Address {
	return Address{id: uuid.New()}
}

// String renders the address for debugging, for canonical keys (a node
// rendered with a nil display spells its addresses out this way), and
// for persisted snapshots.
func (a Address) String() string {
	return "addr:" + a.id.String()
}

// IsZero reports whether a is the zero Address value.
func (a Address) IsZero() bool {
	return a.id == uuid.Nil
}

// ParseAddress parses the String() form of an Address back into a value.
// Used by internal/snapshot to rehydrate addresses from their persisted
// textual form.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(s, "addr:")
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return Address{}, errors.Wrapf(err, "parse address %q", s)
	}
	return Address{id: id}, nil
}
