package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// ErrDuplicateTransaction is returned when a signature or slot is already
// recorded.
var ErrDuplicateTransaction = errors.New("transaction already recorded")

// TransactionRecord is a processed transaction. Err is nil on success.
type TransactionRecord struct {
	Signature ledger.Signature
	Slot      uint64
	FeePayer  identity.PublicKey
	Message   ledger.Message
	Err       *ledger.TxError
}

// Receipt returns the ledger receipt for the record.
func (r *TransactionRecord) Receipt() *ledger.Receipt {
	return &ledger.Receipt{
		Signature:  r.Signature,
		Slot:       r.Slot,
		Commitment: ledger.CommitmentFinalized,
		Err:        r.Err,
	}
}

// AccountWrite is the new state of one account.
type AccountWrite struct {
	PublicKey identity.PublicKey
	Owner     identity.PublicKey
	Data      []byte
}

// ApplyTransaction records rec and, when it succeeded, applies writes.
// Everything commits in one SQL transaction. Writes on a failed record are
// ignored: failed transactions leave account state untouched.
func (s *Store) ApplyTransaction(ctx context.Context, rec TransactionRecord, writes []AccountWrite) error {
	slot, err := slotParam(rec.Slot)
	if err != nil {
		return fmt.Errorf("apply transaction: %w", err)
	}
	msgJSON, err := marshalMessage(rec.Message)
	if err != nil {
		return fmt.Errorf("apply transaction: %w", err)
	}

	var code, message string
	index := ledger.TxLevel
	if rec.Err != nil {
		code, message, index = string(rec.Err.Code), rec.Err.Message, rec.Err.Instruction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply transaction: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions
		(signature, slot, fee_payer, message, error_code, error_message, error_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Signature.String(),
		slot,
		rec.FeePayer.String(),
		msgJSON,
		code,
		message,
		index,
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("apply transaction %s: %w", rec.Signature, ErrDuplicateTransaction)
		}
		return fmt.Errorf("apply transaction: insert: %w", err)
	}

	if rec.Err == nil {
		for _, w := range writes {
			data := w.Data
			if data == nil {
				data = []byte{}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (pubkey, owner, data, slot)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(pubkey) DO UPDATE SET
					owner = excluded.owner,
					data = excluded.data,
					slot = excluded.slot
			`,
				w.PublicKey.String(),
				w.Owner.String(),
				data,
				slot,
			)
			if err != nil {
				return fmt.Errorf("apply transaction: write account %s: %w", w.PublicKey, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply transaction: commit: %w", err)
	}
	return nil
}

func isConstraint(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrConstraint
	}
	return false
}
