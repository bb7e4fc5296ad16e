package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// DefaultPollInterval is how often SubmitTransaction checks for a receipt.
const DefaultPollInterval = 100 * time.Millisecond

// Client is a ledger.Client speaking to a Server.
type Client struct {
	internal struct {
		SendTransaction    func(context.Context, *ledger.Transaction) (*SendResult, error)
		GetSignatureStatus func(context.Context, ledger.Signature) (*ledger.Receipt, error)
		GetAccountInfo     func(context.Context, identity.PublicKey) (*ledger.Account, error)
		GetProgramAccounts func(context.Context, identity.PublicKey) ([]ledger.Account, error)
		GetSlot            func(context.Context) (uint64, error)
	}
	closer jsonrpc.ClientCloser

	addr   string
	poll   time.Duration
	header http.Header
	logger *slog.Logger
}

var (
	_ ledger.Client        = (*Client)(nil)
	_ ledger.AccountLister = (*Client)(nil)
)

// DialOption configures a Client.
type DialOption func(*Client)

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) DialOption {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) DialOption {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithClientLogger sets the logger. Default: slog.Default().
func WithClientLogger(l *slog.Logger) DialOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Dial connects to the JSON-RPC endpoint at addr, for example
// http://127.0.0.1:8899/rpc/v0.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*Client, error) {
	c := &Client{
		addr:   addr,
		poll:   DefaultPollInterval,
		header: http.Header{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	closer, err := jsonrpc.NewMergeClient(ctx, addr, Namespace, []interface{}{&c.internal}, c.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.closer = closer
	return c, nil
}

// Close releases the connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// SubmitTransaction sends tx and polls for its receipt until one exists or
// ctx ends. Transport errors are returned as they occur.
func (c *Client) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	res, err := c.internal.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	c.logger.Debug("transaction sent", "signature", res.Signature.String(), "addr", c.addr)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.internal.GetSignatureStatus(ctx, res.Signature)
		if err != nil {
			return nil, fmt.Errorf("signature status: %w", err)
		}
		if receipt != nil {
			if receipt.Err != nil {
				return receipt, receipt.Err
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await %s: %w", res.Signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetAccount returns ledger.ErrAccountNotFound for unknown accounts.
func (c *Client) GetAccount(ctx context.Context, pk identity.PublicKey) (*ledger.Account, error) {
	acct, err := c.internal.GetAccountInfo(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", pk, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("%s: %w", pk, ledger.ErrAccountNotFound)
	}
	return acct, nil
}

// GetProgramAccounts lists accounts owned by owner.
func (c *Client) GetProgramAccounts(ctx context.Context, owner identity.PublicKey) ([]ledger.Account, error) {
	accounts, err := c.internal.GetProgramAccounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get program accounts %s: %w", owner, err)
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	return accounts, nil
}

// Slot returns the node's last processed slot.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	return c.internal.GetSlot(ctx)
}
