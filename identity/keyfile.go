// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	VerificationKeyType = "GovernanceVerificationKey_ed25519"
	SigningKeyType      = "GovernanceSigningKey_ed25519"

	// Payment keys produced by cardano-cli are accepted as well
	paymentVerificationKeyType = "PaymentVerificationKeyShelley_ed25519"
	paymentSigningKeyType      = "PaymentSigningKeyShelley_ed25519"

	maxKeyFileSize = 1 << 20
)

type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// LoadVerificationKey reads an ed25519 verification key from a text
// envelope file
func LoadVerificationKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	keyType, keyBytes, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	switch keyType {
	case VerificationKeyType, paymentVerificationKeyType:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyType, keyType)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"%w: verification key expected %d bytes, got %d",
			ErrInvalidKey,
			ed25519.PublicKeySize,
			len(keyBytes),
		)
	}
	return ed25519.PublicKey(keyBytes), nil
}

// LoadSigningKey reads an ed25519 signing key from a text envelope file.
// Returns ErrInsecureFileMode if the file is accessible by other users.
//
// Permissions are checked on the open handle to avoid a race between the
// check and the read.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()
	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	keyType, keyBytes, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	switch keyType {
	case SigningKeyType, paymentSigningKeyType:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyType, keyType)
	}
	switch len(keyBytes) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(keyBytes), nil
	case ed25519.PrivateKeySize:
		// Derive from the seed rather than trusting the stored public half
		return ed25519.NewKeyFromSeed(keyBytes[:ed25519.SeedSize]), nil
	default:
		return nil, fmt.Errorf(
			"%w: signing key expected %d or %d bytes, got %d",
			ErrInvalidKey,
			ed25519.SeedSize,
			ed25519.PrivateKeySize,
			len(keyBytes),
		)
	}
}

// WriteKeyPair writes a new key pair as <prefix>.vkey and <prefix>.skey and
// returns the identity of the key
func WriteKeyPair(prefix string, skey ed25519.PrivateKey) (Identity, error) {
	vkey := skey.Public().(ed25519.PublicKey)
	vkeyData, err := encodeKeyEnvelope(VerificationKeyType, "Governance Verification Key", vkey)
	if err != nil {
		return "", err
	}
	skeyData, err := encodeKeyEnvelope(SigningKeyType, "Governance Signing Key", skey.Seed())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(prefix+".vkey", vkeyData, 0o644); err != nil { //nolint:gosec // verification keys are public
		return "", fmt.Errorf("failed to write verification key: %w", err)
	}
	if err := os.WriteFile(prefix+".skey", skeyData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write signing key: %w", err)
	}
	return KeyHash(vkey), nil
}

func parseKeyEnvelope(fileBytes []byte) (string, []byte, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return "", nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return "", nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if _, err := cbor.Decode(cborData, &keyBytes); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}
	return env.Type, keyBytes, nil
}

func encodeKeyEnvelope(keyType string, description string, key []byte) ([]byte, error) {
	cborData, err := cbor.Encode(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key CBOR: %w", err)
	}
	return json.MarshalIndent(
		keyFileEnvelope{
			Type:        keyType,
			Description: description,
			CborHex:     hex.EncodeToString(cborData),
		},
		"",
		"    ",
	)
}
