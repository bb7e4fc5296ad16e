package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Generator produces fresh identities. Every call must return a key pair
// that has not been returned before.
//
// Production code uses RandomGenerator; tests and scenarios inject a
// DeterministicGenerator so addresses are reproducible across runs.
type Generator interface {
	Generate() (*Identity, error)
}

// RandomGenerator draws key pairs from crypto/rand.
type RandomGenerator struct {
	// Rand overrides the entropy source. Nil means crypto/rand.Reader.
	Rand io.Reader
}

// Generate returns a new random identity.
func (g RandomGenerator) Generate() (*Identity, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return FromPrivateKey(priv)
}

// DeterministicGenerator derives the n-th identity from sha256(seed || n).
//
// Thread-safety: Generate is safe for concurrent use. Each call consumes one
// counter value, so concurrent callers never receive the same identity.
type DeterministicGenerator struct {
	mu    sync.Mutex
	seed  []byte
	count uint64
}

// NewDeterministicGenerator creates a generator whose output depends only on
// seed and the number of prior calls.
func NewDeterministicGenerator(seed string) *DeterministicGenerator {
	return &DeterministicGenerator{seed: []byte(seed)}
}

// Generate returns the next identity in the sequence.
func (g *DeterministicGenerator) Generate() (*Identity, error) {
	g.mu.Lock()
	g.count++
	n := g.count
	g.mu.Unlock()

	h := sha256.New()
	h.Write(g.seed)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], n)
	h.Write(ctr[:])
	return FromSeed(h.Sum(nil))
}

// Count returns how many identities have been generated.
func (g *DeterministicGenerator) Count() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Reset rewinds the sequence so the next call returns the first identity
// again.
func (g *DeterministicGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
}
