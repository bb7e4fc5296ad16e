package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// ReadOptions holds flags for the fetch and list commands.
type ReadOptions struct {
	*RootOptions
	ledgerFlags
}

type profileOutput struct {
	*dashboard.RestaurantProfile
	ContentKind dashboard.ContentRefKind `json:"content_kind"`
}

func newProfileOutput(p *dashboard.RestaurantProfile) profileOutput {
	return profileOutput{RestaurantProfile: p, ContentKind: dashboard.ClassifyContentRef(p.IPFSHash)}
}

func (p profileOutput) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s\n", p.Address)
	fmt.Fprintf(w, "  name:      %s\n", p.Name)
	fmt.Fprintf(w, "  ipfs_hash: %s (%s)\n", p.IPFSHash, p.ContentKind)
	fmt.Fprintf(w, "  owner:     %s\n", p.Owner)
	fmt.Fprintf(w, "  slot:      %d\n", p.Slot)
}

type profileList struct {
	Profiles []profileOutput `json:"profiles"`
	Count    int             `json:"count"`
}

func (l profileList) renderText(w io.Writer) {
	if l.Count == 0 {
		fmt.Fprintln(w, "No profiles found.")
		return
	}
	for _, p := range l.Profiles {
		p.renderText(w)
	}
	fmt.Fprintf(w, "\n%d profile(s)\n", l.Count)
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <address>",
		Short: "Show one restaurant profile",
		Long: `Fetch the restaurant profile stored at address and print its fields.

Exit codes:
  0 - Profile found
  1 - No profile at address
  2 - Command error

Examples:
  tastefi fetch <profile-address>
  tastefi fetch <profile-address> --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts, args[0])
		},
	}
	opts.ledgerFlags.register(cmd)

	return cmd
}

func runFetch(cmd *cobra.Command, opts *ReadOptions, address string) error {
	addr, err := identity.ParsePublicKey(address)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid address", err)
	}

	conn, err := opts.dial(cmd.Context(), &opts.ledgerFlags)
	if err != nil {
		return err
	}
	defer conn.Close()

	profile, err := dashboard.NewClient(conn.Client, conn.Program).FetchRestaurantProfile(cmd.Context(), addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, dashboard.ErrNotProfile):
		return WrapExitError(ExitFailure, "no profile at "+address, err)
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to fetch profile", err)
	}

	return opts.formatter(cmd).Success(newProfileOutput(profile))
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List restaurant profiles",
		Long: `List every restaurant profile owned by the dashboard program.

Examples:
  tastefi list
  tastefi list --rpc-url http://127.0.0.1:9000/rpc/v0 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}
	opts.ledgerFlags.register(cmd)

	return cmd
}

func runList(cmd *cobra.Command, opts *ReadOptions) error {
	conn, err := opts.dial(cmd.Context(), &opts.ledgerFlags)
	if err != nil {
		return err
	}
	defer conn.Close()

	profiles, err := dashboard.NewClient(conn.Client, conn.Program).ListRestaurantProfiles(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list profiles", err)
	}

	out := profileList{Profiles: make([]profileOutput, len(profiles)), Count: len(profiles)}
	for i := range profiles {
		out.Profiles[i] = newProfileOutput(&profiles[i])
	}
	return opts.formatter(cmd).Success(out)
}
