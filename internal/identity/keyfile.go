package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-jose/go-jose/v4"
)

// KeyFormat selects the on-disk encoding of a wallet key file.
type KeyFormat string

const (
	// FormatJWK stores the key as an OKP/Ed25519 JSON Web Key.
	FormatJWK KeyFormat = "jwk"

	// FormatByteArray stores the 64-byte private key as a JSON array of
	// integers, the layout used by Solana CLI wallets.
	FormatByteArray KeyFormat = "json"
)

// ErrKeyFileExists is returned by SaveKeyFile when the target exists and
// overwriting was not requested.
var ErrKeyFileExists = errors.New("key file already exists")

// ParseKeyFormat validates a format name.
func ParseKeyFormat(s string) (KeyFormat, error) {
	switch KeyFormat(s) {
	case FormatJWK, FormatByteArray:
		return KeyFormat(s), nil
	default:
		return "", fmt.Errorf("unknown key format %q (want %q or %q)", s, FormatJWK, FormatByteArray)
	}
}

// MarshalKey encodes id in the given format.
func MarshalKey(id *Identity, format KeyFormat) ([]byte, error) {
	switch format {
	case FormatJWK:
		jwk := jose.JSONWebKey{
			Key:       id.priv,
			KeyID:     id.pub.String(),
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}
		data, err := json.MarshalIndent(jwk, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal jwk: %w", err)
		}
		return data, nil
	case FormatByteArray:
		ints := make([]int, len(id.priv))
		for i, b := range id.priv {
			ints[i] = int(b)
		}
		return json.Marshal(ints)
	default:
		return nil, fmt.Errorf("unknown key format %q", format)
	}
}

// UnmarshalKey decodes a key file, detecting the format from its first
// non-space byte.
func UnmarshalKey(data []byte) (*Identity, KeyFormat, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("key file is empty")
	}

	switch trimmed[0] {
	case '{':
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(trimmed); err != nil {
			return nil, "", fmt.Errorf("parse jwk: %w", err)
		}
		priv, ok := jwk.Key.(ed25519.PrivateKey)
		if !ok {
			return nil, "", fmt.Errorf("parse jwk: expected Ed25519 private key, got %T", jwk.Key)
		}
		id, err := FromPrivateKey(priv)
		if err != nil {
			return nil, "", err
		}
		return id, FormatJWK, nil
	case '[':
		var ints []int
		if err := json.Unmarshal(trimmed, &ints); err != nil {
			return nil, "", fmt.Errorf("parse key bytes: %w", err)
		}
		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, "", fmt.Errorf("parse key bytes: value %d at index %d out of range", v, i)
			}
			raw[i] = byte(v)
		}
		id, err := FromPrivateKey(ed25519.PrivateKey(raw))
		if err != nil {
			return nil, "", err
		}
		return id, FormatByteArray, nil
	default:
		return nil, "", fmt.Errorf("unrecognized key file format")
	}
}

// LoadKeyFile reads a wallet key file in either supported format.
func LoadKeyFile(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key file not found: %s", path)
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}
	id, _, err := UnmarshalKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// SaveKeyFile writes id to path with owner-only permissions. An existing
// file is left untouched unless force is set.
func SaveKeyFile(path string, id *Identity, format KeyFormat, force bool) error {
	data, err := MarshalKey(id, format)
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrKeyFileExists)
		}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
