package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/roach88/tastefi/internal/identity"
)

// SignatureSize is the length of an Ed25519 signature.
const SignatureSize = 64

// Signature is an Ed25519 signature. Its text form is base58, and the fee
// payer's signature doubles as the transaction ID.
type Signature [SignatureSize]byte

// ParseSignature decodes a base58 signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := base58.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != SignatureSize {
		return sig, fmt.Errorf("decode signature: got %d bytes, want %d", len(raw), SignatureSize)
	}
	copy(sig[:], raw)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether s is unset.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SignaturePair binds a signature to the key that made it.
type SignaturePair struct {
	PublicKey identity.PublicKey `json:"pubkey"`
	Signature Signature          `json:"signature"`
}

// Transaction is a message plus the signatures of its required signers.
type Transaction struct {
	Message    Message         `json:"message"`
	Signatures []SignaturePair `json:"signatures"`
}

// NewTransaction wraps msg with no signatures.
func NewTransaction(msg Message) *Transaction {
	return &Transaction{Message: msg}
}

// Sign adds or replaces signatures from signers. Every signer must be
// required by the message.
func (tx *Transaction) Sign(signers ...*identity.Identity) error {
	body, err := tx.Message.Bytes()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	required := tx.Message.RequiredSigners()

	for _, s := range signers {
		pk := s.PublicKey()
		if !containsKey(required, pk) {
			return NewTxError(CodeUnexpectedSigner, "%s is not a required signer", pk)
		}
		var sig Signature
		copy(sig[:], s.Sign(body))
		tx.setSignature(pk, sig)
	}
	tx.sortSignatures(required)
	return nil
}

func (tx *Transaction) setSignature(pk identity.PublicKey, sig Signature) {
	for i := range tx.Signatures {
		if tx.Signatures[i].PublicKey == pk {
			tx.Signatures[i].Signature = sig
			return
		}
	}
	tx.Signatures = append(tx.Signatures, SignaturePair{PublicKey: pk, Signature: sig})
}

// sortSignatures orders pairs by position in the required signer list.
func (tx *Transaction) sortSignatures(required []identity.PublicKey) {
	ordered := make([]SignaturePair, 0, len(tx.Signatures))
	for _, pk := range required {
		for _, p := range tx.Signatures {
			if p.PublicKey == pk {
				ordered = append(ordered, p)
			}
		}
	}
	tx.Signatures = ordered
}

// ID returns the fee payer's signature, or the zero signature if the fee
// payer has not signed.
func (tx *Transaction) ID() Signature {
	for _, p := range tx.Signatures {
		if p.PublicKey == tx.Message.FeePayer {
			return p.Signature
		}
	}
	return Signature{}
}

// VerifySignatures checks that every required signer signed, every
// signature verifies, and no other key signed.
func (tx *Transaction) VerifySignatures() error {
	if len(tx.Message.Instructions) == 0 {
		return NewTxError(CodeInvalidTransaction, "transaction has no instructions")
	}
	body, err := tx.Message.Bytes()
	if err != nil {
		return NewTxError(CodeInvalidTransaction, "encode message: %v", err)
	}
	required := tx.Message.RequiredSigners()

	seen := make(map[identity.PublicKey]bool, len(tx.Signatures))
	for _, p := range tx.Signatures {
		if !containsKey(required, p.PublicKey) {
			return NewTxError(CodeUnexpectedSigner, "%s is not a required signer", p.PublicKey)
		}
		if seen[p.PublicKey] {
			return NewTxError(CodeInvalidTransaction, "duplicate signature for %s", p.PublicKey)
		}
		seen[p.PublicKey] = true
		if !identity.Verify(p.PublicKey, body, p.Signature[:]) {
			return NewTxError(CodeSignatureVerificationFailed, "signature for %s does not verify", p.PublicKey)
		}
	}
	for _, pk := range required {
		if !seen[pk] {
			return NewTxError(CodeMissingRequiredSignature, "missing signature for %s", pk)
		}
	}
	return nil
}

func containsKey(keys []identity.PublicKey, pk identity.PublicKey) bool {
	for _, k := range keys {
		if k == pk {
			return true
		}
	}
	return false
}
