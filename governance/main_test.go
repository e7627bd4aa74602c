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

package governance_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/event"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(
		m,
		// Started by an init() in a badger dependency
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const (
	treasuryAccount   = "treasury"
	bondEscrowAccount = "bond-escrow"
	voteVaultAccount  = "vote-vault"
	governanceAsset   = "GOV"

	authority identity.Identity = "authority"
	proposer  identity.Identity = "proposer"
	alice     identity.Identity = "alice"
	bob       identity.Identity = "bob"

	token = governance.TokenUnit
	day   = 24 * time.Hour
)

var startTime = time.Unix(1_700_000_000, 0)

type testEnv struct {
	engine   *governance.Engine
	ledger   *ledger.StoreLedger
	clock    *governance.ManualClock
	db       *database.Database
	eventBus *event.EventBus
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{InMemory: true})
	require.NoError(t, err)
	env := &testEnv{
		ledger:   ledger.NewStoreLedger(db, governanceAsset),
		clock:    governance.NewManualClock(startTime),
		db:       db,
		eventBus: event.NewEventBus(nil, nil),
		registry: prometheus.NewRegistry(),
	}
	t.Cleanup(func() {
		env.eventBus.Stop()
		_ = db.Close()
	})
	env.engine, err = governance.NewEngine(
		db,
		env.ledger,
		identity.StaticVerifier{},
		governance.WithClock(env.clock),
		governance.WithEventBus(env.eventBus),
		governance.WithPromRegistry(env.registry),
	)
	require.NoError(t, err)
	return env
}

// as returns a context authenticated as id
func as(id identity.Identity) context.Context {
	return identity.WithCaller(context.Background(), id)
}

func testInitParams() governance.InitParams {
	params := governance.DefaultInitParams(
		treasuryAccount,
		bondEscrowAccount,
		voteVaultAccount,
		governanceAsset,
	)
	params.ProposalBond = governance.MinProposalBond
	return params
}

// newInitializedEnv mints balances and initializes the DAO with a one token
// bond, 10% quorum and 51% approval
func newInitializedEnv(t *testing.T, balances map[string]uint64) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	for id, amount := range balances {
		require.NoError(t, env.ledger.Mint(id, amount))
	}
	_, err := env.engine.Initialize(as(authority), authority, testInitParams())
	require.NoError(t, err)
	return env
}

func (env *testEnv) balance(t *testing.T, account string) uint64 {
	t.Helper()
	bal, err := env.ledger.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func (env *testEnv) createGeneral(t *testing.T, who identity.Identity) *governance.Proposal {
	t.Helper()
	p, err := env.engine.CreateProposal(as(who), who, governance.CreateProposalParams{
		Title:          "Fund the docs",
		DescriptionCid: "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		ProposalType:   governance.ProposalTypeGeneral,
	})
	require.NoError(t, err)
	return p
}

func (env *testEnv) createWithdrawal(
	t *testing.T,
	who identity.Identity,
	recipient string,
	amount uint64,
) *governance.Proposal {
	t.Helper()
	p, err := env.engine.CreateProposal(as(who), who, governance.CreateProposalParams{
		Title:          "Pay the auditors",
		DescriptionCid: "bafy-audit",
		ProposalType:   governance.ProposalTypeTreasuryWithdrawal,
		ExecutionData: &governance.ExecutionData{
			Recipient: recipient,
			Amount:    amount,
		},
	})
	require.NoError(t, err)
	return p
}

// openVoting moves the clock to the start of voting for p
func (env *testEnv) openVoting(p *governance.Proposal) {
	env.clock.Set(time.Unix(p.VoteStart, 0))
}

// closeVoting moves the clock to the end of voting for p
func (env *testEnv) closeVoting(p *governance.Proposal) {
	env.clock.Set(time.Unix(p.VoteEnd, 0))
}

func (env *testEnv) depositAndVote(
	t *testing.T,
	p *governance.Proposal,
	voter identity.Identity,
	amount uint64,
	choice governance.VoteChoice,
) {
	t.Helper()
	_, err := env.engine.DepositVoteTokens(as(voter), voter, p.ProposalId, amount)
	require.NoError(t, err)
	_, err = env.engine.CastVote(as(voter), voter, p.ProposalId, choice)
	require.NoError(t, err)
}
