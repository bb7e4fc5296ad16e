package identity

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of an Ed25519 public key in bytes.
const PublicKeySize = 32

// PublicKey addresses an account on the ledger. Its text form is base58.
type PublicKey [PublicKeySize]byte

// SystemProgramID is the address of the system program that creates
// accounts. It is the all-zero key.
var SystemProgramID PublicKey

// addressDomain separates derived addresses from every other hash in the
// system.
const addressDomain = "tastefi/address/v1"

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("decode public key %q: got %d bytes, want %d", s, len(raw), PublicKeySize)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePublicKey is ParsePublicKey for constants; it panics on error.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("public key: got %d bytes, want %d", len(b), PublicKeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

// DeriveAddress returns a deterministic address for seed. Derived addresses
// are not on the curve in any meaningful sense and have no private key.
func DeriveAddress(seed string) PublicKey {
	h := sha256.New()
	h.Write([]byte(addressDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(seed))
	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	return pk
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether pk is the all-zero key.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Bytes returns a copy of the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk[:])
	return out
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
