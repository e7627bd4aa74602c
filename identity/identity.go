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

// Package identity authenticates the callers of governance operations
package identity

import (
	"context"
	"errors"
)

var (
	ErrInsecureFileMode = errors.New("insecure key file permissions")
	ErrUnknownKeyType   = errors.New("unknown key type")
	ErrInvalidKey       = errors.New("invalid key")
)

// Identity names a caller. With ed25519 keys it is the hex Blake2b-224 hash
// of the verification key
type Identity string

func (i Identity) String() string {
	return string(i)
}

// Verifier decides whether the caller carried by ctx is the claimed identity
type Verifier interface {
	IsSigner(ctx context.Context, claimed Identity) bool
}

type callerKey struct{}

type proofKey struct{}

// WithCaller attaches an already authenticated caller to ctx
func WithCaller(ctx context.Context, caller Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller attached with WithCaller
func CallerFrom(ctx context.Context) (Identity, bool) {
	caller, ok := ctx.Value(callerKey{}).(Identity)
	return caller, ok && caller != ""
}

// Proof is a signature by VKey over Message
type Proof struct {
	VKey      []byte
	Signature []byte
	Message   []byte
}

// WithProof attaches a signature proof to ctx
func WithProof(ctx context.Context, proof Proof) context.Context {
	return context.WithValue(ctx, proofKey{}, proof)
}

// ProofFrom returns the proof attached with WithProof
func ProofFrom(ctx context.Context) (Proof, bool) {
	proof, ok := ctx.Value(proofKey{}).(Proof)
	return proof, ok
}

// StaticVerifier trusts the caller attached to the context. It suits
// embedding where the host has already authenticated the caller
type StaticVerifier struct{}

func (StaticVerifier) IsSigner(ctx context.Context, claimed Identity) bool {
	caller, ok := CallerFrom(ctx)
	return ok && caller == claimed
}
