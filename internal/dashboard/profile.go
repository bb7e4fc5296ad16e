package dashboard

import (
	"errors"
	"fmt"

	"github.com/roach88/tastefi/internal/codec"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
)

// ErrNotProfile is returned when an account is not a restaurant profile of
// this program.
var ErrNotProfile = errors.New("account is not a restaurant profile")

// RestaurantProfile is the decoded profile record.
type RestaurantProfile struct {
	Address  identity.PublicKey `json:"address"`
	Name     string             `json:"name"`
	IPFSHash string             `json:"ipfs_hash"`
	Owner    identity.PublicKey `json:"owner"`
	Slot     uint64             `json:"slot"`
}

// DecodeProfile decodes acct as a profile of program.
func DecodeProfile(program *idl.Program, acct *ledger.Account) (*RestaurantProfile, error) {
	if acct.Owner != program.ID {
		return nil, fmt.Errorf("%s is owned by %s: %w", acct.PublicKey, acct.Owner, ErrNotProfile)
	}
	layout, ok := program.AccountType(AccountRestaurantProfile)
	if !ok {
		return nil, fmt.Errorf("program %s has no %s account", program.Name, AccountRestaurantProfile)
	}
	fields, err := codec.DecodeAccount(layout, acct.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", acct.PublicKey, ErrNotProfile, err)
	}

	p := &RestaurantProfile{Address: acct.PublicKey, Slot: acct.Slot}
	var okName, okHash, okOwner bool
	p.Name, okName = fields[fieldName].(string)
	p.IPFSHash, okHash = fields[fieldIPFSHash].(string)
	p.Owner, okOwner = fields[fieldOwner].(identity.PublicKey)
	if !okName || !okHash || !okOwner {
		return nil, fmt.Errorf("decode %s: unexpected field types: %w", acct.PublicKey, ErrNotProfile)
	}
	return p, nil
}
