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

package identity_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/blinklabs-io/vedao/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, skey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return skey
}

func TestStaticVerifier(t *testing.T) {
	v := identity.StaticVerifier{}
	ctx := identity.WithCaller(context.Background(), "alice")
	assert.True(t, v.IsSigner(ctx, "alice"))
	assert.False(t, v.IsSigner(ctx, "bob"))
	assert.False(t, v.IsSigner(context.Background(), ""))
}

func TestEd25519Verifier(t *testing.T) {
	skey := newKey(t)
	vkey := skey.Public().(ed25519.PublicKey)
	owner := identity.KeyHash(vkey)
	assert.Len(t, owner.String(), 56)
	msg := []byte(`{"title":"x"}`)
	v := identity.NewEd25519Verifier(nil)

	testDefs := []struct {
		name    string
		ctx     context.Context
		claimed identity.Identity
		want    bool
	}{
		{
			name:    "valid proof",
			ctx:     identity.WithProof(context.Background(), identity.Sign(skey, msg)),
			claimed: owner,
			want:    true,
		},
		{
			name:    "no proof",
			ctx:     context.Background(),
			claimed: owner,
		},
		{
			name:    "other identity",
			ctx:     identity.WithProof(context.Background(), identity.Sign(skey, msg)),
			claimed: identity.KeyHash(newKey(t).Public().(ed25519.PublicKey)),
		},
		{
			name: "tampered message",
			ctx: identity.WithProof(context.Background(), identity.Proof{
				VKey:      vkey,
				Signature: ed25519.Sign(skey, msg),
				Message:   []byte(`{"title":"y"}`),
			}),
			claimed: owner,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			assert.Equal(t, testDef.want, v.IsSigner(testDef.ctx, testDef.claimed))
		})
	}
}

func TestKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	skey := newKey(t)
	prefix := filepath.Join(dir, "gov")
	id, err := identity.WriteKeyPair(prefix, skey)
	require.NoError(t, err)

	vkey, err := identity.LoadVerificationKey(prefix + ".vkey")
	require.NoError(t, err)
	assert.Equal(t, id, identity.KeyHash(vkey))

	loaded, err := identity.LoadSigningKey(prefix + ".skey")
	require.NoError(t, err)
	assert.True(t, skey.Equal(loaded))

	_, err = identity.LoadVerificationKey(prefix + ".skey")
	assert.ErrorIs(t, err, identity.ErrUnknownKeyType)
}

func TestLoadSigningKeyInsecureMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits are not used on windows")
	}
	dir := t.TempDir()
	prefix := filepath.Join(dir, "gov")
	_, err := identity.WriteKeyPair(prefix, newKey(t))
	require.NoError(t, err)
	require.NoError(t, os.Chmod(prefix+".skey", 0o644))
	_, err = identity.LoadSigningKey(prefix + ".skey")
	assert.ErrorIs(t, err, identity.ErrInsecureFileMode)
}
