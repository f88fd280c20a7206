// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/schemagate/ports"
)

// UUID generates time-ordered UUIDs (version 7), so snapshot IDs sort by
// creation time.
type UUID struct{}

// New generates a new UUID v7. It falls back to a random v4 UUID if the
// v7 generator fails.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	s.counter.Store(0)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
