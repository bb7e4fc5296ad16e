// Package identity provides Ed25519 key pairs, ledger addresses, identity
// generators, and wallet key files.
//
// An Identity both names an account on the ledger and authorizes changes to
// it. The caller's identity comes from a wallet file; record identities are
// produced fresh by a Generator for every write.
package identity

import (
	"crypto/ed25519"
	"fmt"
)

// Identity is an Ed25519 key pair.
type Identity struct {
	priv ed25519.PrivateKey
	pub  PublicKey
}

// FromSeed builds an identity from a 32-byte Ed25519 seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity seed: got %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return FromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// FromPrivateKey wraps a 64-byte Ed25519 private key. The embedded public
// half must match the seed half.
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity private key: got %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return nil, fmt.Errorf("identity private key: public half does not match seed")
	}
	id := &Identity{priv: derived}
	copy(id.pub[:], derived[ed25519.SeedSize:])
	return id, nil
}

// PublicKey returns the identity's address.
func (id *Identity) PublicKey() PublicKey {
	return id.pub
}

// Sign signs msg with the identity's private key.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.priv, msg)
}

// PrivateKey returns the underlying key. Callers must not modify it.
func (id *Identity) PrivateKey() ed25519.PrivateKey {
	return id.priv
}

func (id *Identity) String() string {
	return id.pub.String()
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub PublicKey, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
