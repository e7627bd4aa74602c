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

package vedao_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

var startTime = time.Unix(1_700_000_000, 0)

func testGenesis(authorityKey ed25519.PrivateKey) *vedao.Genesis {
	return &vedao.Genesis{
		Params: governance.DefaultInitParams(
			"treasury",
			"bond-escrow",
			"vote-vault",
			"GOV",
		),
		AuthorityKey: authorityKey,
		Balances: map[string]uint64{
			"treasury": 1_000 * governance.TokenUnit,
			"alice":    250 * governance.TokenUnit,
		},
	}
}

// runEngine starts e and waits until it is ready. The returned channel
// yields the result of Run
func runEngine(t *testing.T, ctx context.Context, e *vedao.Engine) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx)
	}()
	select {
	case <-e.Ready():
	case err := <-errCh:
		require.FailNow(t, "engine failed to start", "error: %v", err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "timed out waiting for engine")
	}
	return errCh
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []vedao.ConfigOptionFunc
	}{
		{
			name: "negative shutdown timeout",
			opts: []vedao.ConfigOptionFunc{vedao.WithShutdownTimeout(-time.Second)},
		},
		{
			name: "negative clock skew",
			opts: []vedao.ConfigOptionFunc{vedao.WithApiMaxClockSkew(-time.Second)},
		},
		{
			name: "trusted header without API",
			opts: []vedao.ConfigOptionFunc{vedao.WithApiTrustCallerHeader(true)},
		},
		{
			name: "genesis without authority",
			opts: []vedao.ConfigOptionFunc{vedao.WithGenesis(testGenesis(nil))},
		},
		{
			name: "genesis asset mismatch",
			opts: []vedao.ConfigOptionFunc{
				vedao.WithGenesis(&vedao.Genesis{
					Params:    governance.DefaultInitParams("t", "b", "v", "GOV"),
					Authority: "operator",
				}),
				vedao.WithLedger(ledger.NewMemoryLedger("OTHER")),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := vedao.New(vedao.NewConfig(tc.opts...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestShutdownTimeoutDefault(t *testing.T) {
	assert.Equal(t, vedao.DefaultShutdownTimeout, vedao.NewConfig().ShutdownTimeout())
	assert.Equal(
		t,
		5*time.Second,
		vedao.NewConfig(vedao.WithShutdownTimeout(5*time.Second)).ShutdownTimeout(),
	)
}

func TestRunInitializesFromGenesis(t *testing.T) {
	authorityKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))
	registry := prometheus.NewRegistry()
	e, err := vedao.New(vedao.NewConfig(
		vedao.WithGenesis(testGenesis(authorityKey)),
		vedao.WithClock(governance.NewManualClock(startTime)),
		vedao.WithPrometheusRegistry(registry),
		vedao.WithApiListenAddress("127.0.0.1:0"),
	))
	require.NoError(t, err)
	errCh := runEngine(t, context.Background(), e)

	gov := e.Governance()
	require.NotNil(t, gov)
	cfg, err := gov.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.KeyHash(authorityKey.Public().(ed25519.PublicKey)), cfg.Authority)
	assert.Equal(t, "GOV", cfg.GovernanceAsset)

	balance, err := e.Ledger().BalanceOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 250*governance.TokenUnit, balance)
	treasury, err := gov.GetTreasuryBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1_000*governance.TokenUnit, treasury)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "vedao_governance_operations_total")

	require.NoError(t, e.Stop())
	require.NoError(t, <-errCh)
	// Stopping twice is harmless
	require.NoError(t, e.Stop())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e, err := vedao.New(vedao.NewConfig(
		vedao.WithApiListenAddress("127.0.0.1:0"),
		vedao.WithApiTrustCallerHeader(true),
		vedao.WithGenesis(&vedao.Genesis{
			Params:    governance.DefaultInitParams("treasury", "bond-escrow", "vote-vault", "GOV"),
			Authority: "operator",
		}),
	))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runEngine(t, ctx, e)
	cfg, err := e.Governance().GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, identity.Identity("operator"), cfg.Authority)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "engine did not stop")
	}
}

func TestGenesisAppliedOnce(t *testing.T) {
	dataDir := t.TempDir()
	authorityKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize))

	first, err := vedao.New(vedao.NewConfig(
		vedao.WithDatabasePath(dataDir),
		vedao.WithGenesis(testGenesis(authorityKey)),
	))
	require.NoError(t, err)
	errCh := runEngine(t, context.Background(), first)
	require.NoError(t, first.Stop())
	require.NoError(t, <-errCh)

	// A different genesis does not replace the stored config
	genesis := testGenesis(authorityKey)
	genesis.Params.QuorumPercentage = 42
	second, err := vedao.New(vedao.NewConfig(
		vedao.WithDatabasePath(dataDir),
		vedao.WithGenesis(genesis),
	))
	require.NoError(t, err)
	errCh = runEngine(t, context.Background(), second)
	cfg, err := second.Governance().GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.DefaultQuorumPercentage, cfg.QuorumPercentage)
	require.NoError(t, second.Stop())
	require.NoError(t, <-errCh)
}

func TestLedgerSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	clock := governance.NewManualClock(startTime)
	newEngine := func() *vedao.Engine {
		genesis := &vedao.Genesis{
			Params:    governance.DefaultInitParams("treasury", "bond-escrow", "vote-vault", "GOV"),
			Authority: "operator",
			Balances: map[string]uint64{
				"treasury": 1_000 * governance.TokenUnit,
				"alice":    250 * governance.TokenUnit,
				"bob":      500 * governance.TokenUnit,
			},
		}
		e, err := vedao.New(vedao.NewConfig(
			vedao.WithDatabasePath(dataDir),
			vedao.WithGenesis(genesis),
			vedao.WithIdentity(identity.StaticVerifier{}),
			vedao.WithClock(clock),
		))
		require.NoError(t, err)
		return e
	}
	ctx := context.Background()
	aliceCtx := identity.WithCaller(ctx, "alice")
	bobCtx := identity.WithCaller(ctx, "bob")

	first := newEngine()
	errCh := runEngine(t, ctx, first)
	p, err := first.Governance().CreateProposal(aliceCtx, "alice", governance.CreateProposalParams{
		Title:          "Keep balances",
		DescriptionCid: "cid",
	})
	require.NoError(t, err)
	_, err = first.Governance().DepositVoteTokens(bobCtx, "bob", p.ProposalId, 400*governance.TokenUnit)
	require.NoError(t, err)
	require.NoError(t, first.Stop())
	require.NoError(t, <-errCh)

	second := newEngine()
	errCh = runEngine(t, ctx, second)
	gov := second.Governance()
	esc, err := gov.GetVoteEscrow(ctx, p.ProposalId, "bob")
	require.NoError(t, err)
	assert.Equal(t, 400*governance.TokenUnit, esc.DepositedAmount)
	balances := map[string]uint64{
		"vote-vault":  400 * governance.TokenUnit,
		"bob":         100 * governance.TokenUnit,
		"alice":       150 * governance.TokenUnit,
		"bond-escrow": governance.DefaultProposalBond,
		"treasury":    1_000 * governance.TokenUnit,
	}
	for account, expected := range balances {
		balance, err := second.Ledger().BalanceOf(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, expected, balance, account)
	}
	supply, err := second.Ledger().TotalSupply(ctx, "GOV")
	require.NoError(t, err)
	assert.Equal(t, 1_750*governance.TokenUnit, supply)

	_, err = gov.WithdrawVoteTokens(bobCtx, "bob", p.ProposalId)
	require.NoError(t, err)
	bob, err := second.Ledger().BalanceOf(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 500*governance.TokenUnit, bob)
	vault, err := second.Ledger().BalanceOf(ctx, "vote-vault")
	require.NoError(t, err)
	assert.Zero(t, vault)
	require.NoError(t, second.Stop())
	require.NoError(t, <-errCh)
}
