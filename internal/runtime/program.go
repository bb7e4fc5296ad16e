package runtime

import (
	"errors"
	"fmt"

	"github.com/roach88/tastefi/internal/codec"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
)

// Program executes instructions addressed to its ID.
type Program interface {
	ID() identity.PublicKey
	Execute(c *InstructionContext, ix ledger.Instruction) error
}

// HandlerFunc implements one instruction of an IDLProgram. accounts maps
// the definition's account names to the submitted metas; args holds the
// decoded arguments.
type HandlerFunc func(c *InstructionContext, accounts map[string]ledger.AccountMeta, args map[string]any) error

// IDLProgram validates instructions against a compiled definition before
// dispatching them to handlers:
//   - the data discriminator must name a handled instruction
//   - every account slot of the definition must be supplied
//   - signer, writable, and fixed-address constraints must hold
//   - arguments must decode exactly
type IDLProgram struct {
	spec     *idl.Program
	handlers map[string]HandlerFunc
}

// NewIDLProgram creates a program with no handlers.
func NewIDLProgram(spec *idl.Program) *IDLProgram {
	return &IDLProgram{spec: spec, handlers: make(map[string]HandlerFunc)}
}

// Handle binds h to the named instruction, which must exist in the
// definition.
func (p *IDLProgram) Handle(name string, h HandlerFunc) error {
	if _, ok := p.spec.Instruction(name); !ok {
		return fmt.Errorf("program %s has no instruction %q", p.spec.Name, name)
	}
	p.handlers[name] = h
	return nil
}

// ID returns the program's address.
func (p *IDLProgram) ID() identity.PublicKey {
	return p.spec.ID
}

// Spec returns the program definition.
func (p *IDLProgram) Spec() *idl.Program {
	return p.spec
}

// Execute validates ix and runs its handler.
func (p *IDLProgram) Execute(c *InstructionContext, ix ledger.Instruction) error {
	disc, _, err := codec.SplitDiscriminator(ix.Data)
	if err != nil {
		return ledger.NewInstructionError(c.Index, ledger.CodeInstructionNotFound,
			"instruction data shorter than discriminator")
	}
	spec, ok := p.spec.InstructionByDiscriminator(disc)
	if !ok {
		return ledger.NewInstructionError(c.Index, ledger.CodeInstructionNotFound,
			"unknown discriminator %s", disc)
	}
	h, ok := p.handlers[spec.Name]
	if !ok {
		return ledger.NewInstructionError(c.Index, ledger.CodeInstructionNotFound,
			"%s is not implemented", spec.Name)
	}

	if len(ix.Accounts) < len(spec.Accounts) {
		return ledger.NewInstructionError(c.Index, ledger.CodeNotEnoughAccountKeys,
			"%s needs %d accounts, got %d", spec.Name, len(spec.Accounts), len(ix.Accounts))
	}

	accounts := make(map[string]ledger.AccountMeta, len(spec.Accounts))
	for i, want := range spec.Accounts {
		got := ix.Accounts[i]
		if want.Signer && !got.IsSigner {
			return ledger.NewInstructionError(c.Index, ledger.CodeAccountNotSigner,
				"%s: account %s must sign", spec.Name, want.Name)
		}
		if want.Writable && !got.IsWritable {
			return ledger.NewInstructionError(c.Index, ledger.CodeAccountNotWritable,
				"%s: account %s must be writable", spec.Name, want.Name)
		}
		if want.Address != nil && got.PublicKey != *want.Address {
			return ledger.NewInstructionError(c.Index, ledger.CodeInvalidAccountAddress,
				"%s: account %s must be %s, got %s", spec.Name, want.Name, *want.Address, got.PublicKey)
		}
		accounts[want.Name] = got
	}

	args, err := codec.DecodeInstruction(spec, ix.Data)
	if err != nil {
		return ledger.NewInstructionError(c.Index, ledger.CodeInstructionDidNotDeserialize,
			"%s: %v", spec.Name, err)
	}

	return h(c, accounts, args)
}

// BuildInstruction encodes an instruction of spec. accounts maps account
// names to keys; slots with a fixed address may be omitted. Signer and
// writable flags come from the definition.
func BuildInstruction(spec *idl.Program, name string, accounts map[string]identity.PublicKey, args map[string]any) (ledger.Instruction, error) {
	ix, ok := spec.Instruction(name)
	if !ok {
		return ledger.Instruction{}, fmt.Errorf("program %s has no instruction %q", spec.Name, name)
	}

	metas := make([]ledger.AccountMeta, len(ix.Accounts))
	for i, a := range ix.Accounts {
		pk, ok := accounts[a.Name]
		if !ok {
			if a.Address == nil {
				return ledger.Instruction{}, fmt.Errorf("%s: missing account %q", name, a.Name)
			}
			pk = *a.Address
		}
		metas[i] = ledger.AccountMeta{PublicKey: pk, IsSigner: a.Signer, IsWritable: a.Writable}
	}

	data, err := codec.EncodeInstruction(ix, args)
	if err != nil {
		return ledger.Instruction{}, fmt.Errorf("%s: %w", name, err)
	}
	return ledger.Instruction{ProgramID: spec.ID, Accounts: metas, Data: data}, nil
}

// IsRejection reports whether err is a ledger rejection rather than a
// transport or storage failure.
func IsRejection(err error) bool {
	var te *ledger.TxError
	return errors.As(err, &te)
}
