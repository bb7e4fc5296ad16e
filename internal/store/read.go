package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// ErrTransactionNotFound is returned by GetTransaction for unknown
// signatures.
var ErrTransactionNotFound = errors.New("transaction not found")

// GetAccount returns the account at pk or ledger.ErrAccountNotFound.
func (s *Store) GetAccount(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pubkey, owner, data, slot
		FROM accounts
		WHERE pubkey = ?
	`, pk.String())

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", pk, err)
	}
	return &acct, nil
}

// ListAccountsByOwner returns every account owned by owner.
// Results are ordered deterministically: ORDER BY slot ASC, pubkey ASC.
//
// Returns an empty slice (not nil) if the owner has no accounts.
func (s *Store) ListAccountsByOwner(ctx context.Context, owner identity.PublicKey) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pubkey, owner, data, slot
		FROM accounts
		WHERE owner = ?
		ORDER BY slot ASC, pubkey COLLATE BINARY ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// GetTransaction returns the processed transaction with sig.
func (s *Store) GetTransaction(ctx context.Context, sig ledger.Signature) (*TransactionRecord, error) {
	var (
		sigText, feePayer, msgJSON, code, message string
		slot                                      int64
		index                                     int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT signature, slot, fee_payer, message, error_code, error_message, error_index
		FROM transactions
		WHERE signature = ?
	`, sig.String()).Scan(&sigText, &slot, &feePayer, &msgJSON, &code, &message, &index)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}

	rec := &TransactionRecord{Signature: sig, Slot: uint64(slot)}
	if rec.FeePayer, err = parseKeyColumn("fee_payer", feePayer); err != nil {
		return nil, err
	}
	if rec.Message, err = unmarshalMessage(msgJSON); err != nil {
		return nil, err
	}
	if code != "" {
		rec.Err = &ledger.TxError{Code: ledger.ErrorCode(code), Message: message, Instruction: index}
	}
	return rec, nil
}

// HasTransaction reports whether sig has been processed.
func (s *Store) HasTransaction(ctx context.Context, sig ledger.Signature) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE signature = ?
	`, sig.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has transaction: %w", err)
	}
	return n > 0, nil
}

// LatestSlot returns the highest processed slot, or 0 for an empty ledger.
func (s *Store) LatestSlot(ctx context.Context) (uint64, error) {
	var slot sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(slot) FROM transactions`).Scan(&slot); err != nil {
		return 0, fmt.Errorf("latest slot: %w", err)
	}
	if !slot.Valid {
		return 0, nil
	}
	return uint64(slot.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		acct          ledger.Account
		pubkey, owner string
		slot          int64
	)
	if err := row.Scan(&pubkey, &owner, &acct.Data, &slot); err != nil {
		return acct, err
	}

	var err error
	if acct.PublicKey, err = parseKeyColumn("pubkey", pubkey); err != nil {
		return acct, err
	}
	if acct.Owner, err = parseKeyColumn("owner", owner); err != nil {
		return acct, err
	}
	acct.Slot = uint64(slot)
	return acct, nil
}
