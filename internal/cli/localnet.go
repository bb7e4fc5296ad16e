package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/localnet"
	"github.com/roach88/tastefi/internal/rpc"
)

// LocalnetOptions holds flags for the localnet command.
type LocalnetOptions struct {
	*RootOptions
	Listen string
	DBPath string
	Memory bool
	IDLDir string
}

// NewLocalnetCommand creates the localnet command.
func NewLocalnetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalnetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "localnet",
		Short: "Run a local ledger node",
		Long: `Run a single-node ledger with the dashboard program deployed and serve
its JSON-RPC API until interrupted.

The ledger is stored in SQLite so records survive restarts. Use --memory
for a throwaway ledger.

Examples:
  tastefi localnet
  tastefi localnet --listen 127.0.0.1:9000 --db ./ledger.db
  tastefi localnet --memory --idl ./programs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalnet(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite ledger path (overrides config)")
	cmd.Flags().BoolVar(&opts.Memory, "memory", false, "keep the ledger in memory")
	cmd.Flags().StringVar(&opts.IDLDir, "idl", "", "CUE program directory to deploy")
	cmd.MarkFlagsMutuallyExclusive("db", "memory")

	return cmd
}

func runLocalnet(cmd *cobra.Command, opts *LocalnetOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := opts.log()

	listen := cfg.Localnet.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}
	dbPath := cfg.Localnet.DBPath
	switch {
	case opts.Memory:
		dbPath = ""
	case opts.DBPath != "":
		dbPath = opts.DBPath
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create ledger directory", err)
		}
	}

	var programs []*idl.Program
	if opts.IDLDir != "" {
		programs, err = idl.Load(opts.IDLDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile programs", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := localnet.Start(ctx, localnet.Config{DBPath: dbPath, Programs: programs, Logger: log})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start localnet", err)
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Error("error closing localnet", "error", err)
		}
	}()

	l, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	var banner strings.Builder
	fmt.Fprintf(&banner, "localnet listening on http://%s%s\n", l.Addr(), rpc.Path)
	for _, p := range node.Programs() {
		fmt.Fprintf(&banner, "  program %s\n", p)
	}
	if dbPath == "" {
		banner.WriteString("  ledger: in memory\n")
	} else {
		fmt.Fprintf(&banner, "  ledger: %s\n", dbPath)
	}
	fmt.Fprint(cmd.OutOrStdout(), banner.String())

	srv := rpc.NewServer(node.Runtime(), rpc.WithServerLogger(log))
	if err := srv.Serve(ctx, l); err != nil {
		return WrapExitError(ExitCommandError, "rpc server failed", err)
	}
	return nil
}
