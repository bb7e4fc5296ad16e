package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/harness"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	ledgerFlags

	Name       string
	IPFSHash   string
	MenuFile   string
	Wallet     string
	Local      bool
	RequireCID bool
}

// verifyOutput is the verify command's success payload.
type verifyOutput struct {
	*harness.Verification
	ContentKind dashboard.ContentRefKind `json:"content_kind"`
}

func (v verifyOutput) renderText(w io.Writer) {
	fmt.Fprintf(w, "✓ profile %s verified\n", v.Profile)
	fmt.Fprintf(w, "  name:      %s\n", v.Record.Name)
	fmt.Fprintf(w, "  ipfs_hash: %s (%s)\n", v.Record.IPFSHash, v.ContentKind)
	fmt.Fprintf(w, "  owner:     %s\n", v.Record.Owner)
	if v.Receipt != nil {
		fmt.Fprintf(w, "  slot:      %d\n", v.Receipt.Slot)
		fmt.Fprintf(w, "  signature: %s\n", v.Receipt.Signature)
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Create a restaurant profile and verify the stored record",
		Long: `Create a restaurant profile keyed by a fresh identity, wait for the
ledger to acknowledge the write, fetch the record back, and check its
name, content reference, and owner.

The caller is the configured wallet. With --local the write goes to an
in-process localnet and the caller is ephemeral unless --wallet is given.

Exit codes:
  0 - Record verified
  1 - Write rejected or record does not match
  2 - Command error (bad flags, unreadable wallet, node unreachable)

Examples:
  tastefi verify --name "Joe's Bistro" --ipfs-hash QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
  tastefi verify --name "Joe's Bistro" --menu-file ./menu.json --require-cid
  tastefi verify --local --name "Joe's Bistro" --ipfs-hash Qm... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "restaurant name (required)")
	cmd.Flags().StringVar(&opts.IPFSHash, "ipfs-hash", "", "content reference to store")
	cmd.Flags().StringVar(&opts.MenuFile, "menu-file", "", "derive the content reference from this file")
	cmd.Flags().StringVar(&opts.Wallet, "wallet", "", "caller key file (overrides config)")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "verify against an in-process localnet")
	cmd.Flags().BoolVar(&opts.RequireCID, "require-cid", false, "reject content references that are not CIDs")
	cmd.MarkFlagsMutuallyExclusive("ipfs-hash", "menu-file")
	_ = cmd.MarkFlagRequired("name")
	opts.ledgerFlags.register(cmd)

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
	ctx := cmd.Context()
	log := opts.log()

	ref, err := opts.contentRef()
	if err != nil {
		return err
	}
	kind := dashboard.ClassifyContentRef(ref)
	if opts.RequireCID && kind == dashboard.RefOpaque {
		return NewExitError(ExitCommandError, fmt.Sprintf("content reference %q is not a CID", ref))
	}

	var (
		conn   *connection
		caller *identity.Identity
	)
	if opts.Local {
		conn, err = opts.startLocal(ctx, &opts.ledgerFlags)
		if err != nil {
			return err
		}
		defer conn.Close()
		if opts.Wallet != "" {
			caller, err = opts.loadWallet(opts.Wallet)
		} else {
			caller, err = identity.RandomGenerator{}.Generate()
		}
	} else {
		caller, err = opts.loadWallet(opts.Wallet)
		if err != nil {
			return err
		}
		conn, err = opts.dial(ctx, &opts.ledgerFlags)
		if err != nil {
			return err
		}
		defer conn.Close()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare caller", err)
	}

	log.Debug("verifying profile", "name", opts.Name, "ipfs_hash", ref, "kind", kind, "caller", caller.PublicKey().String())

	env := &harness.Env{
		Client:    conn.Client,
		Caller:    caller,
		Generator: identity.RandomGenerator{},
		Program:   conn.Program,
		Logger:    log,
	}
	v, err := harness.CreateAndVerify(ctx, env, opts.Name, ref)
	if err != nil {
		return verifyError(err)
	}

	return opts.formatter(cmd).Success(verifyOutput{Verification: v, ContentKind: kind})
}

// contentRef resolves the reference to store from --ipfs-hash or
// --menu-file.
func (o *VerifyOptions) contentRef() (string, error) {
	switch {
	case o.MenuFile != "":
		data, err := os.ReadFile(o.MenuFile)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read menu file", err)
		}
		ref, err := dashboard.ContentRefFor(data)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to derive content reference", err)
		}
		o.log().Debug("content reference derived", "file", o.MenuFile, "cid", ref)
		return ref, nil
	case o.IPFSHash != "":
		return o.IPFSHash, nil
	default:
		return "", NewExitError(ExitCommandError, "one of --ipfs-hash or --menu-file is required")
	}
}

// verifyError classifies a CreateAndVerify failure. Ledger answers and
// record differences fail the verification; anything else is a command
// error.
func verifyError(err error) error {
	var (
		txErr    *ledger.TxError
		mismatch *harness.MismatchError
	)
	switch {
	case errors.As(err, &txErr):
		return WrapExitError(ExitFailure, "profile write rejected", err).WithDetails(txErr)
	case errors.As(err, &mismatch):
		return WrapExitError(ExitFailure, "profile verification failed", err).WithDetails(mismatch.Fields)
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, dashboard.ErrNotProfile):
		return WrapExitError(ExitFailure, "profile verification failed", err)
	default:
		return WrapExitError(ExitCommandError, "verification aborted", err)
	}
}
