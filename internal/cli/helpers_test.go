package cli

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tastefi/internal/config"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/localnet"
	"github.com/roach88/tastefi/internal/rpc"
	"github.com/roach88/tastefi/internal/testutil"
)

// runCLI executes the CLI as main would.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	code = Execute(args, out, errOut)
	return out.String(), errOut.String(), code
}

type cliEnv struct {
	Dir    string
	Config string
	Wallet string
	Caller *identity.Identity
}

// newCLIEnv writes a config pointing at rpcURL and a wallet for the
// caller, isolated from the user's environment.
func newCLIEnv(t *testing.T, rpcURL string) *cliEnv {
	t.Helper()
	for _, key := range []string{config.EnvRPCURL, config.EnvWallet, config.EnvDBPath, config.EnvListen, config.EnvPollInterval} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := &cliEnv{
		Dir:    dir,
		Config: filepath.Join(dir, "config.yaml"),
		Wallet: filepath.Join(dir, "id.json"),
	}

	caller, err := identity.NewDeterministicGenerator(t.Name()).Generate()
	require.NoError(t, err)
	env.Caller = caller
	require.NoError(t, identity.SaveKeyFile(env.Wallet, caller, identity.FormatByteArray, false))

	if rpcURL == "" {
		rpcURL = "http://127.0.0.1:1/rpc/v0"
	}
	cfg := fmt.Sprintf(`rpc:
  url: %s
  poll_interval_ms: 5
wallet:
  path: %s
localnet:
  listen: 127.0.0.1:0
  db_path: %s
`, rpcURL, env.Wallet, filepath.Join(dir, "ledger.db"))
	require.NoError(t, os.WriteFile(env.Config, []byte(cfg), 0o644))
	return env
}

// startRPC serves a fresh in-memory localnet over HTTP and returns the node
// and its RPC URL.
func startRPC(t *testing.T) (*localnet.Node, string) {
	t.Helper()
	node := testutil.StartLocalnet(t)
	srv := httptest.NewServer(rpc.NewServer(node.Runtime(), rpc.WithServerLogger(testutil.QuietLogger())).Handler())
	t.Cleanup(srv.Close)
	return node, srv.URL + rpc.Path
}
