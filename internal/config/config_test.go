package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{EnvRPCURL, EnvWallet, EnvDBPath, EnvListen, EnvPollInterval} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8899/rpc/v0", cfg.RPC.URL)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "127.0.0.1:8899", cfg.Localnet.Listen)
	assert.Equal(t, "id.json", filepath.Base(cfg.Wallet.Path))
	assert.Equal(t, "tastefi", filepath.Base(filepath.Dir(cfg.Wallet.Path)))
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeFile(t, `
rpc:
  url: http://node:9000/rpc/v0
  poll_interval_ms: 250
wallet:
  path: /keys/caller.json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node:9000/rpc/v0", cfg.RPC.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "/keys/caller.json", cfg.Wallet.Path)
	assert.Equal(t, "127.0.0.1:8899", cfg.Localnet.Listen, "unset fields keep defaults")
}

func TestLoad_EmptyFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().RPC, cfg.RPC)
}

func TestLoad_DefaultFileUsedWhenPresent(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(Dir(), 0o700))
	require.NoError(t, os.WriteFile(DefaultPath(), []byte("localnet:\n  listen: 0.0.0.0:7000\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Localnet.Listen)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, "rpc:\n  url: http://file/rpc/v0\n")
	t.Setenv(EnvRPCURL, "http://env/rpc/v0")
	t.Setenv(EnvWallet, "/env/id.json")
	t.Setenv(EnvDBPath, "/env/ledger.db")
	t.Setenv(EnvListen, ":9999")
	t.Setenv(EnvPollInterval, "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env/rpc/v0", cfg.RPC.URL)
	assert.Equal(t, "/env/id.json", cfg.Wallet.Path)
	assert.Equal(t, "/env/ledger.db", cfg.Localnet.DBPath)
	assert.Equal(t, ":9999", cfg.Localnet.Listen)
	assert.Equal(t, 5*time.Millisecond, cfg.PollInterval())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		msg  string
	}{
		{"unknown field", "rpc:\n  uri: x\n", nil, "failed to parse YAML"},
		{"bad poll env", "", map[string]string{EnvPollInterval: "fast"}, EnvPollInterval},
		{"zero poll", "rpc:\n  poll_interval_ms: 0\n", nil, "poll_interval_ms must be positive"},
		{"empty url", "rpc:\n  url: \"\"\n", nil, "rpc.url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
