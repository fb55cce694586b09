// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package calidus

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, keyBytes []byte) []byte {
	t.Helper()
	cborBytes, err := cbor.Marshal(keyBytes)
	require.NoError(t, err)
	raw, err := json.Marshal(keyEnvelope{
		Type:        "PaymentSigningKeyShelley_ed25519",
		Description: "Payment Signing Key",
		CborHex:     hex.EncodeToString(cborBytes),
	})
	require.NoError(t, err)
	return raw
}

func TestParseSeedKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	key, err := ParseSigningKey(envelope(t, seed))
	require.NoError(t, err)

	priv := ed25519.NewKeyFromSeed(seed)
	assert.Equal(t, hex.EncodeToString(priv.Public().(ed25519.PublicKey)), key.PublicKeyHex())

	sig := key.SignChallenge("sign-me")
	sigBytes, err := hex.DecodeString(sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(priv.Public().(ed25519.PublicKey), []byte("sign-me"), sigBytes))
}

func TestParseExpandedKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	key, err := ParseSigningKey(envelope(t, priv))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(priv.Public().(ed25519.PublicKey)), key.PublicKeyHex())
}

func TestParseRejectsExtendedKey(t *testing.T) {
	_, err := ParseSigningKey(envelope(t, make([]byte, 128)))
	assert.ErrorContains(t, err, "extended")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseSigningKey([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseSigningKey([]byte(`{"type":"x","cborHex":""}`))
	assert.ErrorContains(t, err, "no cborHex")

	_, err = ParseSigningKey([]byte(`{"type":"x","cborHex":"zz"}`))
	assert.Error(t, err)

	_, err = ParseSigningKey(envelope(t, make([]byte, 16)))
	assert.ErrorContains(t, err, "unexpected key length")
}

func TestLoadSigningKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	path := filepath.Join(t.TempDir(), "calidus.skey")
	require.NoError(t, os.WriteFile(path, envelope(t, seed), 0o600))

	key, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.NotEmpty(t, key.PublicKeyHex())

	_, err = LoadSigningKey(filepath.Join(t.TempDir(), "missing.skey"))
	assert.Error(t, err)
}
