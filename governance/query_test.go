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
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao/event"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposalIds(proposals []governance.Proposal) []uint64 {
	ret := make([]uint64, 0, len(proposals))
	for _, p := range proposals {
		ret = append(ret, p.ProposalId)
	}
	return ret
}

func TestGetProposals(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(proposer): 10 * token,
		string(alice):    10 * token,
	})
	for range 3 {
		env.createGeneral(t, proposer)
	}
	env.createWithdrawal(t, alice, "auditor", token)
	_, err := env.engine.CancelProposal(as(proposer), proposer, 1)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := env.engine.GetProposals(ctx, governance.ProposalFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3}, proposalIds(all))
	// Records come from the store, not the index
	assert.Equal(t, governance.ProposalStatusCancelled, all[1].Status)
	require.NotNil(t, all[3].ExecutionData)
	assert.Equal(t, "auditor", all[3].ExecutionData.Recipient)

	active := governance.ProposalStatusActive
	found, err := env.engine.GetProposals(ctx, governance.ProposalFilter{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2, 3}, proposalIds(found))

	withdrawal := governance.ProposalTypeTreasuryWithdrawal
	found, err = env.engine.GetProposals(ctx, governance.ProposalFilter{Type: &withdrawal})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, proposalIds(found))

	who := proposer
	found, err = env.engine.GetProposals(ctx, governance.ProposalFilter{
		Proposer:   &who,
		Descending: true,
		Offset:     1,
		Limit:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, proposalIds(found))
	count, err := env.engine.CountProposals(ctx, governance.ProposalFilter{Proposer: &who, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGetVotesAndRebuildIndex(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(bob):      100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	env.openVoting(p)
	env.depositAndVote(t, p, alice, 20*token, governance.VoteChoiceFor)
	env.clock.Advance(time.Minute)
	env.depositAndVote(t, p, bob, 30*token, governance.VoteChoiceAbstain)
	ctx := context.Background()

	votes, err := env.engine.GetVotes(ctx, p.ProposalId)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, alice, votes[0].Voter)
	assert.Equal(t, governance.VoteChoiceFor, votes[0].VoteChoice)
	assert.Equal(t, 20*token, votes[0].VoteWeight)
	assert.Equal(t, bob, votes[1].Voter)
	assert.Equal(t, governance.VoteChoiceAbstain, votes[1].VoteChoice)

	_, err = env.engine.GetVotes(ctx, 99)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)

	// Wipe the index and rebuild it from the records
	require.NoError(t, env.db.Metadata().Reset())
	all, err := env.engine.GetProposals(ctx, governance.ProposalFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	require.NoError(t, env.engine.RebuildIndex(ctx))
	assert.False(t, env.db.IndexStale())

	all, err = env.engine.GetProposals(ctx, governance.ProposalFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{p.ProposalId}, proposalIds(all))
	rebuilt, err := env.engine.GetVotes(ctx, p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, votes, rebuilt)
}

func TestDepositToTreasury(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{string(alice): 10 * token})
	total, err := env.engine.DepositToTreasury(as(alice), alice, 3*token)
	require.NoError(t, err)
	assert.Equal(t, 3*token, total)
	total, err = env.engine.DepositToTreasury(as(alice), alice, 2*token)
	require.NoError(t, err)
	assert.Equal(t, 5*token, total)

	_, err = env.engine.DepositToTreasury(as(alice), alice, 0)
	require.ErrorIs(t, err, governance.ErrInvalidAmount)
	_, err = env.engine.DepositToTreasury(as(alice), alice, 6*token)
	require.ErrorIs(t, err, governance.ErrInsufficientBalance)

	cfg, err := env.engine.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*token, cfg.TotalTreasuryDeposits)
	balance, err := env.engine.GetTreasuryBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*token, balance)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	_, evtCh := env.eventBus.Subscribe(event.EventTypeAll)
	require.NoError(t, env.ledger.Mint(string(proposer), 10*token))
	_, err := env.engine.Initialize(as(authority), authority, testInitParams())
	require.NoError(t, err)
	p := env.createGeneral(t, proposer)
	// Rejected operations publish nothing
	_, err = env.engine.CancelProposal(as(alice), alice, p.ProposalId)
	require.Error(t, err)
	_, err = env.engine.CancelProposal(as(proposer), proposer, p.ProposalId)
	require.NoError(t, err)

	var types []event.EventType
	for range 3 {
		evt := <-evtCh
		assert.Equal(t, startTime, evt.Timestamp)
		types = append(types, evt.Type)
	}
	assert.Equal(
		t,
		[]event.EventType{
			governance.InitializedEventType,
			governance.ProposalCreatedEventType,
			governance.ProposalCancelledEventType,
		},
		types,
	)
	select {
	case evt := <-evtCh:
		t.Fatalf("unexpected event: %s", evt.Type)
	default:
	}
}

func TestMetrics(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{string(proposer): 10 * token})
	env.createGeneral(t, proposer)
	p := env.createGeneral(t, proposer)
	_, err := env.engine.CancelProposal(as(proposer), proposer, p.ProposalId)
	require.NoError(t, err)
	_, err = env.engine.CancelProposal(as(proposer), proposer, p.ProposalId)
	require.ErrorIs(t, err, governance.ErrProposalNotActive)
	_, err = env.engine.DepositToTreasury(as(proposer), proposer, 2*token)
	require.NoError(t, err)

	expected := `
# HELP vedao_governance_operations_total governance operations by operation and result kind
# TYPE vedao_governance_operations_total counter
vedao_governance_operations_total{op="cancel_proposal",result="ProposalNotActive"} 1
vedao_governance_operations_total{op="cancel_proposal",result="ok"} 1
vedao_governance_operations_total{op="create_proposal",result="ok"} 2
vedao_governance_operations_total{op="deposit_to_treasury",result="ok"} 1
vedao_governance_operations_total{op="initialize",result="ok"} 1
# HELP vedao_governance_proposals proposals by status
# TYPE vedao_governance_proposals gauge
vedao_governance_proposals{status="Active"} 1
vedao_governance_proposals{status="Cancelled"} 1
vedao_governance_proposals{status="Defeated"} 0
vedao_governance_proposals{status="Executed"} 0
vedao_governance_proposals{status="Passed"} 0
# HELP vedao_governance_treasury_balance treasury account balance
# TYPE vedao_governance_treasury_balance gauge
vedao_governance_treasury_balance 2e+09
`
	require.NoError(t, testutil.GatherAndCompare(
		env.registry,
		strings.NewReader(expected),
		"vedao_governance_operations_total",
		"vedao_governance_proposals",
		"vedao_governance_treasury_balance",
	))
}
