package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/identity"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out       string
	KeyFormat string
	Force     bool
}

type keygenOutput struct {
	PublicKey identity.PublicKey `json:"pubkey"`
	Path      string             `json:"path"`
	Format    identity.KeyFormat `json:"key_format"`
}

func (k keygenOutput) renderText(w io.Writer) {
	fmt.Fprintf(w, "Wrote %s key to %s\n", k.Format, k.Path)
	fmt.Fprintf(w, "pubkey: %s\n", k.PublicKey)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a wallet key file",
		Long: `Generate an Ed25519 keypair and write it as a wallet.

Formats:
  jwk  - OKP JSON Web Key
  json - 64-byte array, readable by Solana CLI tools

Examples:
  tastefi keygen
  tastefi keygen --out ./caller.json --key-format json
  tastefi keygen --out ./caller.jwk --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output path (default: configured wallet)")
	cmd.Flags().StringVar(&opts.KeyFormat, "key-format", string(identity.FormatJWK), "key file format (jwk|json)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing key file")

	return cmd
}

func runKeygen(cmd *cobra.Command, opts *KeygenOptions) error {
	format, err := identity.ParseKeyFormat(opts.KeyFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid key format", err)
	}

	path := opts.Out
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Wallet.Path
	}

	id, err := identity.RandomGenerator{}.Generate()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate key", err)
	}
	if err := identity.SaveKeyFile(path, id, format, opts.Force); err != nil {
		if errors.Is(err, identity.ErrKeyFileExists) {
			return WrapExitError(ExitCommandError, "refusing to overwrite (use --force)", err)
		}
		return WrapExitError(ExitCommandError, "failed to write key file", err)
	}
	opts.log().Debug("key file written", "path", path, "format", format)

	return opts.formatter(cmd).Success(keygenOutput{
		PublicKey: id.PublicKey(),
		Path:      path,
		Format:    format,
	})
}
