package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/runtime"
)

// ErrListingUnsupported is returned by ListRestaurantProfiles when the
// ledger client cannot enumerate accounts.
var ErrListingUnsupported = errors.New("ledger client cannot list program accounts")

// UpdateProfileRequest names the accounts and arguments of an
// update_restaurant_profile call.
type UpdateProfileRequest struct {
	// Profile is the fresh identity that becomes the record's address.
	Profile identity.PublicKey

	// Owner pays for and authorizes the write. The stored owner field is
	// set to this key.
	Owner identity.PublicKey

	Name     string
	IPFSHash string
}

// Client builds dashboard transactions and reads profiles through a ledger
// client.
type Client struct {
	ledger  ledger.Client
	program *idl.Program
}

// NewClient creates a client for program reached through lc.
func NewClient(lc ledger.Client, program *idl.Program) *Client {
	return &Client{ledger: lc, program: program}
}

// Program returns the program definition the client targets.
func (c *Client) Program() *idl.Program {
	return c.program
}

// BuildUpdateProfile returns the unsigned transaction for req with Owner
// as fee payer.
func (c *Client) BuildUpdateProfile(req UpdateProfileRequest) (*ledger.Transaction, error) {
	ix, err := runtime.BuildInstruction(c.program, InstructionUpdateProfile,
		map[string]identity.PublicKey{
			accountProfile: req.Profile,
			accountOwner:   req.Owner,
		},
		map[string]any{
			fieldName:     req.Name,
			fieldIPFSHash: req.IPFSHash,
		})
	if err != nil {
		return nil, err
	}

	msg, err := ledger.NewMessage(req.Owner, ix)
	if err != nil {
		return nil, err
	}
	return ledger.NewTransaction(msg), nil
}

// UpdateRestaurantProfile builds req, signs it with signers, and blocks
// until the ledger accepts or rejects it.
func (c *Client) UpdateRestaurantProfile(ctx context.Context, req UpdateProfileRequest, signers ...*identity.Identity) (*ledger.Receipt, error) {
	tx, err := c.BuildUpdateProfile(req)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", InstructionUpdateProfile, err)
	}
	if err := tx.Sign(signers...); err != nil {
		return nil, fmt.Errorf("sign %s: %w", InstructionUpdateProfile, err)
	}
	receipt, err := c.ledger.SubmitTransaction(ctx, tx)
	if err != nil {
		return receipt, fmt.Errorf("submit %s: %w", InstructionUpdateProfile, err)
	}
	return receipt, nil
}

// FetchRestaurantProfile reads the profile at addr.
func (c *Client) FetchRestaurantProfile(ctx context.Context, addr identity.PublicKey) (*RestaurantProfile, error) {
	acct, err := c.ledger.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", addr, err)
	}
	return DecodeProfile(c.program, acct)
}

// ListRestaurantProfiles returns every profile the program owns.
func (c *Client) ListRestaurantProfiles(ctx context.Context) ([]RestaurantProfile, error) {
	lister, ok := c.ledger.(ledger.AccountLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	accounts, err := lister.GetProgramAccounts(ctx, c.program.ID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	profiles := make([]RestaurantProfile, 0, len(accounts))
	for i := range accounts {
		p, err := DecodeProfile(c.program, &accounts[i])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}
