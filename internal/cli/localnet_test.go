package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var listeningRE = regexp.MustCompile(`listening on (http://\S+)/rpc/v0`)

// startLocalnetCmd runs `tastefi localnet` until the test ends and returns
// its base URL.
func startLocalnetCmd(t *testing.T, args ...string) (string, *syncBuffer) {
	t.Helper()
	env := newCLIEnv(t, "")
	out := &syncBuffer{}

	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--config", env.Config, "localnet"}, args...))
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("localnet did not shut down")
		}
	})

	var base string
	require.Eventually(t, func() bool {
		m := listeningRE.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return base, out
}

func TestLocalnet_ServesRPC(t *testing.T) {
	base, out := startLocalnetCmd(t, "--listen", "127.0.0.1:0", "--memory")
	assert.Contains(t, out.String(), "program restaurant_dashboard")
	assert.Contains(t, out.String(), "ledger: in memory")

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
		Slot   uint64 `json:"slot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)

	env := newCLIEnv(t, base+"/rpc/v0")
	_, stderr, code := runCLI(t, "--config", env.Config,
		"verify", "--name", "Joe's Bistro", "--ipfs-hash", "Qm...")
	assert.Equal(t, ExitSuccess, code, stderr)
}

func TestLocalnet_SQLiteLedger(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger", "tastefi.db")
	_, out := startLocalnetCmd(t, "--listen", "127.0.0.1:0", "--db", db)
	assert.Contains(t, out.String(), "ledger: "+db)
	assert.FileExists(t, db)
}

func TestLocalnet_DBAndMemoryExclusive(t *testing.T) {
	env := newCLIEnv(t, "")
	_, _, code := runCLI(t, "--config", env.Config, "localnet", "--memory", "--db", "x.db")
	assert.Equal(t, ExitCommandError, code)
}
