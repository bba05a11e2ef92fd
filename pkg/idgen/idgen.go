// Package idgen provides pluggable generators for the opaque identifiers
// assigned to users and messages.
package idgen

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	// StrategyUUID selects time-ordered random UUIDs (version 7).
	StrategyUUID = "uuid"
	// StrategySequence selects deterministic, monotonically increasing IDs.
	StrategySequence = "sequence"
)

// Generator produces unique identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	NewID() uuid.UUID
}

// UUID generates version 7 UUIDs, falling back to random version 4 UUIDs
// when the time-ordered variant cannot be produced.
type UUID struct{}

// NewID implements Generator.
func (UUID) NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}

	return id
}

// Sequence generates predictable IDs whose low 64 bits hold an increasing
// counter, e.g. 00000000-0000-0000-0000-000000000001. It is intended for
// tests and reproducible demos.
type Sequence struct {
	n atomic.Uint64
}

// NewID implements Generator.
func (s *Sequence) NewID() uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], s.n.Add(1))

	return id
}

// New returns the generator registered for strategy. Unknown strategies fall
// back to UUID.
func New(strategy string) Generator {
	if strategy == StrategySequence {
		return &Sequence{}
	}

	return UUID{}
}
