package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/localnet"
	"github.com/roach88/tastefi/internal/rpc"
)

// ledgerFlags are the connection flags shared by commands that reach a
// ledger node.
type ledgerFlags struct {
	RPCURL  string
	IDLDir  string
	Program string
}

func (lf *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.RPCURL, "rpc-url", "", "ledger RPC endpoint (overrides config)")
	cmd.Flags().StringVar(&lf.IDLDir, "idl", "", "CUE program directory (default: embedded restaurant_dashboard)")
	cmd.Flags().StringVar(&lf.Program, "program", idl.DefaultProgramName, "program to call")
}

// ledgerClient is what the read and write commands need from a node.
type ledgerClient interface {
	ledger.Client
	ledger.AccountLister
}

// connection is an open ledger client and the program it targets.
type connection struct {
	Client   ledgerClient
	Program  *idl.Program
	Programs []*idl.Program
	close    func() error
}

func (c *connection) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// programs compiles the program set named by the flags.
func (lf *ledgerFlags) programs() ([]*idl.Program, *idl.Program, error) {
	var progs []*idl.Program
	if lf.IDLDir == "" {
		p, err := idl.Default()
		if err != nil {
			return nil, nil, err
		}
		progs = []*idl.Program{p}
	} else {
		loaded, err := idl.Load(lf.IDLDir)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to compile programs", err)
		}
		progs = loaded
	}

	for _, p := range progs {
		if p.Name == lf.Program {
			return progs, p, nil
		}
	}
	return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("program %q not defined", lf.Program))
}

// dial connects to the configured RPC endpoint.
func (o *RootOptions) dial(ctx context.Context, lf *ledgerFlags) (*connection, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	progs, program, err := lf.programs()
	if err != nil {
		return nil, err
	}

	url := cfg.RPC.URL
	if lf.RPCURL != "" {
		url = lf.RPCURL
	}
	o.log().Debug("dialing ledger", "url", url)

	client, err := rpc.Dial(ctx, url,
		rpc.WithPollInterval(cfg.PollInterval()),
		rpc.WithClientLogger(o.log()),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to ledger", err)
	}
	return &connection{
		Client:   client,
		Program:  program,
		Programs: progs,
		close:    func() error { client.Close(); return nil },
	}, nil
}

// startLocal runs an in-memory localnet for the duration of one command.
func (o *RootOptions) startLocal(ctx context.Context, lf *ledgerFlags) (*connection, error) {
	progs, program, err := lf.programs()
	if err != nil {
		return nil, err
	}
	node, err := localnet.Start(ctx, localnet.Config{Programs: progs, Logger: o.log()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start localnet", err)
	}
	return &connection{
		Client:   node.Client(),
		Program:  program,
		Programs: progs,
		close:    node.Close,
	}, nil
}

// loadWallet reads the caller's key file. path overrides the configured
// wallet.
func (o *RootOptions) loadWallet(path string) (*identity.Identity, error) {
	if path == "" {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Wallet.Path
	}
	id, err := identity.LoadKeyFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load wallet", err)
	}
	o.log().Debug("wallet loaded", "path", path, "pubkey", id.PublicKey().String())
	return id, nil
}
