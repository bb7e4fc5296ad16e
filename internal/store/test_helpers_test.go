package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a transaction record whose signature is derived
// from seed.
func createTestRecord(t *testing.T, seed string, slot uint64) TransactionRecord {
	t.Helper()
	payer := identity.DeriveAddress("payer:" + seed)
	msg, err := ledger.NewMessage(payer, ledger.Instruction{
		ProgramID: identity.DeriveAddress("program"),
		Data:      []byte(seed),
	})
	if err != nil {
		t.Fatalf("NewMessage() failed: %v", err)
	}

	var sig ledger.Signature
	a := identity.DeriveAddress("sig-a:" + seed)
	b := identity.DeriveAddress("sig-b:" + seed)
	copy(sig[:32], a[:])
	copy(sig[32:], b[:])

	return TransactionRecord{
		Signature: sig,
		Slot:      slot,
		FeePayer:  payer,
		Message:   msg,
	}
}
