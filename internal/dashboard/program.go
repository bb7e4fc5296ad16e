// Package dashboard is the restaurant dashboard program: the on-ledger
// handler that initializes restaurant profiles and the client that builds,
// submits, and reads them.
package dashboard

import (
	"fmt"

	"github.com/roach88/tastefi/internal/codec"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/runtime"
)

// Names in the program definition.
const (
	InstructionUpdateProfile = "update_restaurant_profile"
	AccountRestaurantProfile = "RestaurantProfile"

	accountProfile = "restaurant_profile"
	accountOwner   = "owner"

	fieldName     = "name"
	fieldIPFSHash = "ipfs_hash"
	fieldOwner    = "owner"
)

// NewProgram builds the on-ledger program for spec, which must define
// update_restaurant_profile and the RestaurantProfile account.
func NewProgram(spec *idl.Program) (*runtime.IDLProgram, error) {
	layout, ok := spec.AccountType(AccountRestaurantProfile)
	if !ok {
		return nil, fmt.Errorf("program %s has no %s account", spec.Name, AccountRestaurantProfile)
	}

	p := runtime.NewIDLProgram(spec)
	err := p.Handle(InstructionUpdateProfile, func(c *runtime.InstructionContext, accts map[string]ledger.AccountMeta, args map[string]any) error {
		// The owner is always the signing owner account, never an argument.
		data, err := codec.EncodeAccount(layout, map[string]any{
			fieldName:     args[fieldName],
			fieldIPFSHash: args[fieldIPFSHash],
			fieldOwner:    accts[accountOwner].PublicKey,
		})
		if err != nil {
			return err
		}
		return c.CreateAccount(accts[accountProfile], data)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
