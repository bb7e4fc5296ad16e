package testutil

import (
	"github.com/roach88/tastefi/internal/identity"
)

// FixedGenerator returns the same identity on every call.
//
// Unlike identity.DeterministicGenerator, which derives a new key per call,
// this generator makes every record collide on one address. Tests use it to
// exercise the already-initialized path of the harness.
//
// Thread-safety: FixedGenerator is immutable and safe for concurrent use.
type FixedGenerator struct {
	id *identity.Identity
}

// NewFixedGenerator creates a generator that always yields id.
func NewFixedGenerator(id *identity.Identity) *FixedGenerator {
	return &FixedGenerator{id: id}
}

// Generate returns the fixed identity.
//
// Implements identity.Generator.
func (g *FixedGenerator) Generate() (*identity.Identity, error) {
	return g.id, nil
}
