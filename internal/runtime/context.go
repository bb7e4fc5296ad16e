package runtime

import (
	"context"
	"errors"
	"sort"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/store"
)

// InstructionContext is what a program sees while executing one
// instruction. Account reads observe writes made earlier in the same
// transaction; nothing reaches the store unless the whole transaction
// succeeds.
type InstructionContext struct {
	ctx context.Context

	// Index is the instruction's position in the transaction.
	Index int

	// ProgramID is the executing program. Accounts it creates or writes
	// are owned by it.
	ProgramID identity.PublicKey

	// Accounts are the instruction's account metas as submitted.
	Accounts []ledger.AccountMeta

	// Slot is the slot the transaction is processed in.
	Slot uint64

	ws *writeSet
}

// Context returns the context of the Run loop.
func (c *InstructionContext) Context() context.Context {
	return c.ctx
}

// GetAccount returns the current state of pk, including uncommitted writes
// from this transaction, or ledger.ErrAccountNotFound.
func (c *InstructionContext) GetAccount(pk identity.PublicKey) (*ledger.Account, error) {
	return c.ws.get(c.ctx, pk)
}

// CreateAccount creates the account named by meta through the system
// program, owned by the executing program. The account must not exist and
// must sign, and the system program must be among the instruction's
// accounts.
func (c *InstructionContext) CreateAccount(meta ledger.AccountMeta, data []byte) error {
	if !c.hasAccount(identity.SystemProgramID) {
		return ledger.NewInstructionError(c.Index, ledger.CodeNotEnoughAccountKeys,
			"creating %s requires the system program account", meta.PublicKey)
	}
	if !meta.IsSigner {
		return ledger.NewInstructionError(c.Index, ledger.CodeAccountNotSigner,
			"new account %s must sign its creation", meta.PublicKey)
	}
	if !meta.IsWritable {
		return ledger.NewInstructionError(c.Index, ledger.CodeAccountNotWritable,
			"new account %s must be writable", meta.PublicKey)
	}

	_, err := c.ws.get(c.ctx, meta.PublicKey)
	switch {
	case err == nil:
		return ledger.NewInstructionError(c.Index, ledger.CodeAccountAlreadyInitialized,
			"account %s already in use", meta.PublicKey)
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return err
	}

	c.ws.put(meta.PublicKey, c.ProgramID, data)
	return nil
}

// WriteAccount replaces the data of an existing account owned by the
// executing program.
func (c *InstructionContext) WriteAccount(meta ledger.AccountMeta, data []byte) error {
	if !meta.IsWritable {
		return ledger.NewInstructionError(c.Index, ledger.CodeAccountNotWritable,
			"account %s is not writable", meta.PublicKey)
	}
	acct, err := c.ws.get(c.ctx, meta.PublicKey)
	if err != nil {
		return err
	}
	if acct.Owner != c.ProgramID {
		return ledger.NewInstructionError(c.Index, ledger.CodeAccountOwnedByWrongProgram,
			"account %s is owned by %s", meta.PublicKey, acct.Owner)
	}
	c.ws.put(meta.PublicKey, c.ProgramID, data)
	return nil
}

func (c *InstructionContext) hasAccount(pk identity.PublicKey) bool {
	for _, a := range c.Accounts {
		if a.PublicKey == pk {
			return true
		}
	}
	return false
}

// writeSet buffers account writes for one transaction.
type writeSet struct {
	store   *store.Store
	pending map[identity.PublicKey]store.AccountWrite
}

func newWriteSet(st *store.Store) *writeSet {
	return &writeSet{store: st, pending: make(map[identity.PublicKey]store.AccountWrite)}
}

func (ws *writeSet) get(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	if w, ok := ws.pending[pk]; ok {
		return &ledger.Account{PublicKey: pk, Owner: w.Owner, Data: w.Data}, nil
	}
	return ws.store.GetAccount(ctx, pk)
}

func (ws *writeSet) put(pk, owner identity.PublicKey, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	ws.pending[pk] = store.AccountWrite{PublicKey: pk, Owner: owner, Data: buf}
}

// writes returns buffered writes ordered by key.
func (ws *writeSet) writes() []store.AccountWrite {
	out := make([]store.AccountWrite, 0, len(ws.pending))
	for _, w := range ws.pending {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublicKey.String() < out[j].PublicKey.String()
	})
	return out
}
