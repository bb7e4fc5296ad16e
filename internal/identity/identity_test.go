package identity

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemProgramID_Text(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", SystemProgramID.String())
	assert.True(t, SystemProgramID.IsZero())

	parsed, err := ParsePublicKey("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, SystemProgramID, parsed)
}

func TestParsePublicKey_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"invalid alphabet", "0OIl"},
		{"too short", "1111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestPublicKey_TextRoundTrip(t *testing.T) {
	id, err := NewDeterministicGenerator("text").Generate()
	require.NoError(t, err)

	data, err := json.Marshal(map[string]PublicKey{"key": id.PublicKey()})
	require.NoError(t, err)

	var out map[string]PublicKey
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, id.PublicKey(), out["key"])
}

func TestDeriveAddress_Deterministic(t *testing.T) {
	a := DeriveAddress("restaurant_dashboard")
	b := DeriveAddress("restaurant_dashboard")
	c := DeriveAddress("payment")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsZero())
}

func TestIdentity_SignVerify(t *testing.T) {
	id, err := RandomGenerator{}.Generate()
	require.NoError(t, err)

	msg := []byte("update_restaurant_profile")
	sig := id.Sign(msg)

	assert.True(t, Verify(id.PublicKey(), msg, sig))
	assert.False(t, Verify(id.PublicKey(), []byte("tampered"), sig))
	assert.False(t, Verify(id.PublicKey(), msg, sig[:10]))

	other, err := RandomGenerator{}.Generate()
	require.NoError(t, err)
	assert.False(t, Verify(other.PublicKey(), msg, sig))
}

func TestFromSeed_RejectsWrongLength(t *testing.T) {
	_, err := FromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestFromPrivateKey_RejectsMismatchedHalves(t *testing.T) {
	a, err := RandomGenerator{}.Generate()
	require.NoError(t, err)
	b, err := RandomGenerator{}.Generate()
	require.NoError(t, err)

	spliced := append(append([]byte{}, a.PrivateKey()[:32]...), b.PrivateKey()[32:]...)
	_, err = FromPrivateKey(spliced)
	assert.Error(t, err)
}

func TestRandomGenerator_UsesProvidedReader(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := RandomGenerator{Rand: bytes.NewReader(seed)}.Generate()
	require.NoError(t, err)
	b, err := RandomGenerator{Rand: bytes.NewReader(seed)}.Generate()
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), b.PublicKey())
}

func TestDeterministicGenerator_Reproducible(t *testing.T) {
	g1 := NewDeterministicGenerator("scenario")
	g2 := NewDeterministicGenerator("scenario")

	for i := 0; i < 5; i++ {
		a, err := g1.Generate()
		require.NoError(t, err)
		b, err := g2.Generate()
		require.NoError(t, err)
		assert.Equal(t, a.PublicKey(), b.PublicKey())
	}
	assert.Equal(t, uint64(5), g1.Count())

	first, err := NewDeterministicGenerator("scenario").Generate()
	require.NoError(t, err)
	g1.Reset()
	again, err := g1.Generate()
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey(), again.PublicKey())
}

func TestDeterministicGenerator_ConcurrentUnique(t *testing.T) {
	g := NewDeterministicGenerator("concurrent")
	const workers = 20
	const perWorker = 25

	var mu sync.Mutex
	seen := make(map[PublicKey]bool)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, err := g.Generate()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id.PublicKey()] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestKeyFile_RoundTrip(t *testing.T) {
	for _, format := range []KeyFormat{FormatJWK, FormatByteArray} {
		t.Run(string(format), func(t *testing.T) {
			id, err := RandomGenerator{}.Generate()
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "wallet", "id.json")
			require.NoError(t, SaveKeyFile(path, id, format, false))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			loaded, err := LoadKeyFile(path)
			require.NoError(t, err)
			assert.Equal(t, id.PublicKey(), loaded.PublicKey())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			_, detected, err := UnmarshalKey(data)
			require.NoError(t, err)
			assert.Equal(t, format, detected)
		})
	}
}

func TestKeyFile_JWKShape(t *testing.T) {
	id, err := NewDeterministicGenerator("jwk").Generate()
	require.NoError(t, err)

	data, err := MarshalKey(id, FormatJWK)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "OKP", fields["kty"])
	assert.Equal(t, "Ed25519", fields["crv"])
	assert.Equal(t, id.PublicKey().String(), fields["kid"])
	assert.Contains(t, fields, "d")
}

func TestSaveKeyFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	first, err := RandomGenerator{}.Generate()
	require.NoError(t, err)
	second, err := RandomGenerator{}.Generate()
	require.NoError(t, err)

	require.NoError(t, SaveKeyFile(path, first, FormatJWK, false))
	err = SaveKeyFile(path, second, FormatJWK, false)
	assert.ErrorIs(t, err, ErrKeyFileExists)

	loaded, err := LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey(), loaded.PublicKey())

	require.NoError(t, SaveKeyFile(path, second, FormatJWK, true))
	loaded, err = LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, second.PublicKey(), loaded.PublicKey())
}

func TestUnmarshalKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "  "},
		{"unknown format", "id: abc"},
		{"short array", "[1,2,3]"},
		{"out of range", "[256]"},
		{"public jwk", `{"kty":"OKP","crv":"Ed25519","x":"11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalKey([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadKeyFile_Missing(t *testing.T) {
	_, err := LoadKeyFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key file not found")
}

func TestParseKeyFormat(t *testing.T) {
	f, err := ParseKeyFormat("jwk")
	require.NoError(t, err)
	assert.Equal(t, FormatJWK, f)

	_, err = ParseKeyFormat("pem")
	assert.Error(t, err)
}
