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
	"context"
	"crypto/ed25519"
	"io"
	"log/slog"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// KeyHash returns the identity owned by an ed25519 verification key
func KeyHash(vkey []byte) Identity {
	return Identity(lcommon.Blake2b224Hash(vkey).String())
}

// Ed25519Verifier checks the Proof attached to the context. The claim holds
// when the proof key hashes to the claimed identity and the signature over
// the message verifies
type Ed25519Verifier struct {
	logger *slog.Logger
}

func NewEd25519Verifier(logger *slog.Logger) *Ed25519Verifier {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Ed25519Verifier{logger: logger}
}

func (v *Ed25519Verifier) IsSigner(ctx context.Context, claimed Identity) bool {
	proof, ok := ProofFrom(ctx)
	if !ok {
		v.logger.Debug(
			"no signature proof in request",
			"component", "identity",
			"claimed", claimed,
		)
		return false
	}
	if len(proof.VKey) != ed25519.PublicKeySize ||
		len(proof.Signature) != ed25519.SignatureSize {
		return false
	}
	if KeyHash(proof.VKey) != claimed {
		v.logger.Debug(
			"signature key does not match claimed identity",
			"component", "identity",
			"claimed", claimed,
		)
		return false
	}
	return ed25519.Verify(proof.VKey, proof.Message, proof.Signature)
}

// Sign produces a proof over msg with skey
func Sign(skey ed25519.PrivateKey, msg []byte) Proof {
	return Proof{
		VKey:      skey.Public().(ed25519.PublicKey),
		Signature: ed25519.Sign(skey, msg),
		Message:   msg,
	}
}
