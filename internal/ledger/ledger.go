// Package ledger defines the transaction model and the client interface the
// verification harness uses to reach a ledger runtime.
//
// A Message lists instructions and the accounts they touch. Its canonical
// JSON form is what every required signer signs. A Transaction pairs a
// message with those signatures; the runtime rejects it unless every
// required signer has signed and every signature verifies.
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/tastefi/internal/canon"
	"github.com/roach88/tastefi/internal/identity"
)

// Commitment levels reported in receipts.
const (
	// CommitmentFinalized means the transaction outcome is durably stored.
	CommitmentFinalized = "finalized"
)

// AccountMeta names an account an instruction reads or writes.
type AccountMeta struct {
	PublicKey  identity.PublicKey `json:"pubkey"`
	IsSigner   bool               `json:"is_signer"`
	IsWritable bool               `json:"is_writable"`
}

// Instruction is one program invocation.
type Instruction struct {
	ProgramID identity.PublicKey `json:"program_id"`
	Accounts  []AccountMeta      `json:"accounts"`
	Data      []byte             `json:"data"`
}

// Message is the signed body of a transaction.
type Message struct {
	FeePayer identity.PublicKey `json:"fee_payer"`

	// Nonce makes otherwise identical messages distinct.
	Nonce        uuid.UUID     `json:"nonce"`
	Instructions []Instruction `json:"instructions"`
}

// NewMessage builds a message with a fresh time-ordered nonce.
func NewMessage(feePayer identity.PublicKey, instructions ...Instruction) (Message, error) {
	nonce, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("message nonce: %w", err)
	}
	return Message{FeePayer: feePayer, Nonce: nonce, Instructions: instructions}, nil
}

// Bytes returns the canonical JSON encoding of m. Instruction data is
// base64 encoded.
func (m Message) Bytes() ([]byte, error) {
	ixs := make([]any, len(m.Instructions))
	for i, ix := range m.Instructions {
		metas := make([]any, len(ix.Accounts))
		for j, a := range ix.Accounts {
			metas[j] = map[string]any{
				"pubkey":      a.PublicKey,
				"is_signer":   a.IsSigner,
				"is_writable": a.IsWritable,
			}
		}
		ixs[i] = map[string]any{
			"program_id": ix.ProgramID,
			"accounts":   metas,
			"data":       base64.StdEncoding.EncodeToString(ix.Data),
		}
	}
	return canon.Marshal(map[string]any{
		"fee_payer":    m.FeePayer,
		"nonce":        m.Nonce.String(),
		"instructions": ixs,
	})
}

// RequiredSigners returns the fee payer followed by every account marked
// signer, in first-seen order without duplicates.
func (m Message) RequiredSigners() []identity.PublicKey {
	seen := map[identity.PublicKey]bool{m.FeePayer: true}
	out := []identity.PublicKey{m.FeePayer}
	for _, ix := range m.Instructions {
		for _, a := range ix.Accounts {
			if a.IsSigner && !seen[a.PublicKey] {
				seen[a.PublicKey] = true
				out = append(out, a.PublicKey)
			}
		}
	}
	return out
}

// Receipt reports the outcome of a processed transaction. Err is nil when
// the transaction succeeded.
type Receipt struct {
	Signature  Signature `json:"signature"`
	Slot       uint64    `json:"slot"`
	Commitment string    `json:"commitment"`
	Err        *TxError  `json:"err,omitempty"`
}

// Account is the stored state at an address.
type Account struct {
	PublicKey identity.PublicKey `json:"pubkey"`
	Owner     identity.PublicKey `json:"owner"`
	Data      []byte             `json:"data"`
	Slot      uint64             `json:"slot"`
}

// Client reaches a ledger runtime.
type Client interface {
	// SubmitTransaction submits tx and blocks until the runtime has durably
	// accepted or rejected it. A rejection returns both the receipt and a
	// *TxError. Transactions rejected before execution return no receipt.
	SubmitTransaction(ctx context.Context, tx *Transaction) (*Receipt, error)

	// GetAccount returns the account at pk, or ErrAccountNotFound.
	GetAccount(ctx context.Context, pk identity.PublicKey) (*Account, error)
}

// AccountLister is implemented by clients that can enumerate accounts by
// owning program.
type AccountLister interface {
	GetProgramAccounts(ctx context.Context, owner identity.PublicKey) ([]Account, error)
}
