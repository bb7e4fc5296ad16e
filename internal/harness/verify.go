package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// Field names compared by CreateAndVerify.
const (
	FieldName     = "name"
	FieldIPFSHash = "ipfsHash"
	FieldOwner    = "owner"
)

// Created is the outcome of Create. Profile is set whenever an identity was
// chosen, even if the write was rejected.
type Created struct {
	Profile *identity.Identity
	Receipt *ledger.Receipt
}

type createOptions struct {
	omitCosigner bool
	profile      *identity.Identity
}

// CreateOption adjusts a Create call.
type CreateOption func(*createOptions)

// WithoutCosigner leaves the profile identity's signature off the
// transaction. The account is still marked as a signer, so the write must
// be rejected.
func WithoutCosigner() CreateOption {
	return func(o *createOptions) { o.omitCosigner = true }
}

// WithProfile uses id as the record address instead of a fresh identity.
func WithProfile(id *identity.Identity) CreateOption {
	return func(o *createOptions) { o.profile = id }
}

// Create generates a fresh identity, submits update_restaurant_profile
// keyed by it, and waits for the ledger's answer.
func Create(ctx context.Context, env *Env, name, contentRef string, opts ...CreateOption) (*Created, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	profile := o.profile
	if profile == nil {
		var err error
		profile, err = env.Generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate profile identity: %w", err)
		}
	}
	out := &Created{Profile: profile}

	signers := []*identity.Identity{env.Caller}
	if !o.omitCosigner {
		signers = append(signers, profile)
	}

	log := env.logger().With("profile", profile.PublicKey().String())
	log.Debug("submitting profile write", "name", name, "content_ref", contentRef,
		"content_ref_kind", dashboard.ClassifyContentRef(contentRef), "cosigned", !o.omitCosigner)

	receipt, err := env.dashboard().UpdateRestaurantProfile(ctx, dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    env.Caller.PublicKey(),
		Name:     name,
		IPFSHash: contentRef,
	}, signers...)
	out.Receipt = receipt
	if err != nil {
		log.Debug("profile write rejected", "error", err)
		return out, err
	}

	log.Debug("profile write acknowledged", "slot", receipt.Slot, "signature", receipt.Signature.String())
	return out, nil
}

// Expected holds the values a verified record must carry.
type Expected struct {
	Name     string             `json:"name"`
	IPFSHash string             `json:"ipfs_hash"`
	Owner    identity.PublicKey `json:"owner"`
}

// Verification reports one CreateAndVerify run.
type Verification struct {
	Profile  identity.PublicKey           `json:"profile"`
	Receipt  *ledger.Receipt              `json:"receipt,omitempty"`
	Expected Expected                     `json:"expected"`
	Record   *dashboard.RestaurantProfile `json:"record,omitempty"`
}

// FieldMismatch is one differing field.
type FieldMismatch struct {
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// MismatchError is returned when the fetched record differs from what was
// written.
type MismatchError struct {
	Verification *Verification
	Fields       []FieldMismatch
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: want %q, got %q", f.Field, f.Want, f.Got)
	}
	return fmt.Sprintf("record %s mismatch: %s", e.Verification.Profile, strings.Join(parts, "; "))
}

// CreateAndVerify creates a profile keyed by a fresh identity, fetches it
// back, and checks name, content reference, and owner. A rejected write or
// failed fetch is returned as is. Differing fields yield *MismatchError
// with the Verification attached.
func CreateAndVerify(ctx context.Context, env *Env, name, contentRef string) (*Verification, error) {
	created, err := Create(ctx, env, name, contentRef)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		Profile: created.Profile.PublicKey(),
		Receipt: created.Receipt,
		Expected: Expected{
			Name:     name,
			IPFSHash: contentRef,
			Owner:    env.Caller.PublicKey(),
		},
	}

	record, err := env.dashboard().FetchRestaurantProfile(ctx, v.Profile)
	if err != nil {
		return v, err
	}
	v.Record = record

	if mismatches := compareRecord(v.Expected, record); len(mismatches) > 0 {
		return v, &MismatchError{Verification: v, Fields: mismatches}
	}

	env.logger().Info("profile verified", "profile", v.Profile.String(), "slot", created.Receipt.Slot)
	return v, nil
}

func compareRecord(want Expected, got *dashboard.RestaurantProfile) []FieldMismatch {
	var out []FieldMismatch
	if got.Name != want.Name {
		out = append(out, FieldMismatch{Field: FieldName, Want: want.Name, Got: got.Name})
	}
	if got.IPFSHash != want.IPFSHash {
		out = append(out, FieldMismatch{Field: FieldIPFSHash, Want: want.IPFSHash, Got: got.IPFSHash})
	}
	if got.Owner != want.Owner {
		out = append(out, FieldMismatch{Field: FieldOwner, Want: want.Owner.String(), Got: got.Owner.String()})
	}
	return out
}
