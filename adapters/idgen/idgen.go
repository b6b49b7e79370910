// Package idgen provides ID generation.
package idgen

import (
	"github.com/google/uuid"

	"github.com/texlify/texlify/ports"
)

// UUID generates UUIDv4 identifiers.
type UUID struct{}

// New returns a new random UUID string.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates predictable IDs for testing.
type Sequential struct {
	prefix string
	n      int
}

// NewSequential creates a sequential generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next sequential ID.
func (s *Sequential) New() string {
	s.n++
	return s.prefix + "-" + itoa(s.n)
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
