// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package calidus loads a Cardano signing key from its envelope file and
// signs registration challenges with it.
package calidus

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// keyEnvelope is the standard key file format written by cardano-cli:
// a JSON wrapper around a CBOR-encoded byte string.
type keyEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// SigningKey is a loaded calidus key pair.
type SigningKey struct {
	priv ed25519.PrivateKey
}

// LoadSigningKey reads a signing key envelope from path. Both the 32-byte
// seed form and the 64-byte expanded form are accepted; 128-byte extended
// keys (BIP32-Ed25519) are not supported.
func LoadSigningKey(path string) (*SigningKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read signing key file")
	}
	return ParseSigningKey(raw)
}

// ParseSigningKey decodes a signing key envelope.
func ParseSigningKey(raw []byte) (*SigningKey, error) {
	var env keyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "invalid key envelope")
	}
	if env.CborHex == "" {
		return nil, errors.New("key envelope has no cborHex field")
	}
	cborBytes, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cborHex")
	}
	var keyBytes []byte
	if err := cbor.Unmarshal(cborBytes, &keyBytes); err != nil {
		return nil, errors.Wrap(err, "cborHex is not a CBOR byte string")
	}

	switch len(keyBytes) {
	case ed25519.SeedSize:
		return &SigningKey{priv: ed25519.NewKeyFromSeed(keyBytes)}, nil
	case ed25519.PrivateKeySize:
		return &SigningKey{priv: ed25519.PrivateKey(keyBytes)}, nil
	case 128:
		return nil, errors.New("extended (BIP32) signing keys are not supported, use a plain ed25519 key")
	default:
		return nil, errors.Errorf("unexpected key length %d", len(keyBytes))
	}
}

// PublicKeyHex returns the hex-encoded public half.
func (k *SigningKey) PublicKeyHex() string {
	return hex.EncodeToString(k.priv.Public().(ed25519.PublicKey))
}

// SignChallenge signs the challenge string and returns the hex-encoded
// signature.
func (k *SigningKey) SignChallenge(challenge string) string {
	return hex.EncodeToString(ed25519.Sign(k.priv, []byte(challenge)))
}
