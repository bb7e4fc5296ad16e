package runtime

import (
	"context"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// LocalClient is a ledger.Client backed by an in-process Runtime. The
// runtime's Run loop must be running for submissions to complete.
type LocalClient struct {
	rt *Runtime
}

var (
	_ ledger.Client        = (*LocalClient)(nil)
	_ ledger.AccountLister = (*LocalClient)(nil)
)

// Client returns a ledger client for r.
func (r *Runtime) Client() *LocalClient {
	return &LocalClient{rt: r}
}

// SubmitTransaction submits tx and waits for its receipt.
func (c *LocalClient) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	sig, err := c.rt.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	receipt, err := c.rt.Await(ctx, sig)
	if err != nil {
		return nil, err
	}
	if receipt.Err != nil {
		return receipt, receipt.Err
	}
	return receipt, nil
}

// GetAccount reads committed account state.
func (c *LocalClient) GetAccount(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	return c.rt.GetAccount(ctx, pk)
}

// GetProgramAccounts lists accounts owned by owner.
func (c *LocalClient) GetProgramAccounts(ctx context.Context, owner identity.PublicKey) ([]ledger.Account, error) {
	return c.rt.ProgramAccounts(ctx, owner)
}
