// Package config loads CLI settings from a YAML file and the environment.
//
// Precedence, lowest first: defaults, config file, TASTEFI_* environment
// variables, command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvRPCURL       = "TASTEFI_RPC_URL"
	EnvWallet       = "TASTEFI_WALLET"
	EnvDBPath       = "TASTEFI_DB_PATH"
	EnvListen       = "TASTEFI_LISTEN"
	EnvPollInterval = "TASTEFI_POLL_INTERVAL_MS"
)

// Config holds all configuration for the tastefi CLI.
type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Localnet LocalnetConfig `yaml:"localnet"`
}

// RPCConfig contains ledger node connection settings.
type RPCConfig struct {
	URL            string `yaml:"url"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// WalletConfig locates the caller's key file.
type WalletConfig struct {
	Path string `yaml:"path"`
}

// LocalnetConfig contains settings for `tastefi localnet`.
type LocalnetConfig struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
}

// Dir returns the tastefi configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tastefi")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tastefi")
}

// DefaultPath is the config file read when none is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		RPC: RPCConfig{
			URL:            "http://127.0.0.1:8899/rpc/v0",
			PollIntervalMS: 100,
		},
		Wallet: WalletConfig{
			Path: filepath.Join(dir, "id.json"),
		},
		Localnet: LocalnetConfig{
			Listen: "127.0.0.1:8899",
			DBPath: filepath.Join(dir, "localnet.db"),
		},
	}
}

// Load builds the configuration. A named file must exist; when path is
// empty the default file is read if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRPCURL); ok && v != "" {
		c.RPC.URL = v
	}
	if v, ok := lookup(EnvWallet); ok && v != "" {
		c.Wallet.Path = v
	}
	if v, ok := lookup(EnvDBPath); ok && v != "" {
		c.Localnet.DBPath = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Localnet.Listen = v
	}
	if v, ok := lookup(EnvPollInterval); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.RPC.PollIntervalMS = ms
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.RPC.URL == "" {
		errs = append(errs, errors.New("rpc.url is required"))
	}
	if c.RPC.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("rpc.poll_interval_ms must be positive, got %d", c.RPC.PollIntervalMS))
	}
	if c.Wallet.Path == "" {
		errs = append(errs, errors.New("wallet.path is required"))
	}
	if c.Localnet.Listen == "" {
		errs = append(errs, errors.New("localnet.listen is required"))
	}
	return errors.Join(errs...)
}

// PollInterval returns the receipt polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.RPC.PollIntervalMS) * time.Millisecond
}
