// Package idl compiles program interface definitions written in CUE.
//
// A program definition names the program's instructions (their account
// layout and Borsh-encoded arguments) and the account types it stores. The
// runtime validates submitted instructions against it and the codec package
// uses its field lists for encoding. Definitions are checked against an
// embedded schema whose structs are closed, so misspelled or unknown fields
// fail compilation with a source position.
package idl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/tastefi/internal/identity"
)

// FieldType is the wire type of an instruction argument or account field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypePubkey FieldType = "pubkey"
	TypeU8     FieldType = "u8"
	TypeU64    FieldType = "u64"
	TypeBool   FieldType = "bool"
)

// DiscriminatorSize is the length of instruction and account prefixes.
const DiscriminatorSize = 8

// Discriminator prefixes encoded instruction data and account data so that
// the runtime can tell them apart.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

func (d Discriminator) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// InstructionDiscriminator returns sha256("global:" + name)[:8].
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global:" + name)
}

// AccountDiscriminator returns sha256("account:" + name)[:8].
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account:" + name)
}

func discriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// Field is a named, typed value in an argument list or account layout.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// AccountSpec describes one account slot of an instruction.
type AccountSpec struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable"`
	Signer   bool   `json:"signer"`

	// Init marks an account the instruction creates through the system
	// program. It must not exist beforehand.
	Init bool `json:"init"`

	// Address pins the slot to a fixed key, such as the system program.
	Address *identity.PublicKey `json:"address,omitempty"`
}

// Instruction is a callable entry point of a program.
type Instruction struct {
	Name          string        `json:"name"`
	Discriminator Discriminator `json:"discriminator"`
	Accounts      []AccountSpec `json:"accounts"`
	Args          []Field       `json:"args"`
}

// AccountIndex returns the position of the named account slot, or -1.
func (ix *Instruction) AccountIndex(name string) int {
	for i, a := range ix.Accounts {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// AccountType is the layout of data a program stores in accounts it owns.
type AccountType struct {
	Name          string        `json:"name"`
	Discriminator Discriminator `json:"discriminator"`
	Fields        []Field       `json:"fields"`
}

// Program is a compiled program definition.
type Program struct {
	Name         string             `json:"name"`
	ID           identity.PublicKey `json:"id"`
	Instructions []Instruction      `json:"instructions"`
	Accounts     []AccountType      `json:"accounts"`
}

// Instruction looks up an instruction by name.
func (p *Program) Instruction(name string) (*Instruction, bool) {
	for i := range p.Instructions {
		if p.Instructions[i].Name == name {
			return &p.Instructions[i], true
		}
	}
	return nil, false
}

// InstructionByDiscriminator looks up an instruction by its data prefix.
func (p *Program) InstructionByDiscriminator(d Discriminator) (*Instruction, bool) {
	for i := range p.Instructions {
		if p.Instructions[i].Discriminator == d {
			return &p.Instructions[i], true
		}
	}
	return nil, false
}

// AccountType looks up an account layout by name.
func (p *Program) AccountType(name string) (*AccountType, bool) {
	for i := range p.Accounts {
		if p.Accounts[i].Name == name {
			return &p.Accounts[i], true
		}
	}
	return nil, false
}

// ProgramID returns the address a program is deployed at when its
// definition does not pin one.
func ProgramID(name string) identity.PublicKey {
	return identity.DeriveAddress("program:" + name)
}

func (ft FieldType) valid() bool {
	switch ft {
	case TypeString, TypePubkey, TypeU8, TypeU64, TypeBool:
		return true
	}
	return false
}

func (p *Program) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}

// Bytes returns the discriminator as a slice.
func (d Discriminator) Bytes() []byte {
	return d[:]
}
