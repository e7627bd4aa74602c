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

	"github.com/blinklabs-io/vedao/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.GetConfig(context.Background())
	require.ErrorIs(t, err, governance.ErrNotInitialized)

	cfg, err := env.engine.Initialize(as(authority), authority, testInitParams())
	require.NoError(t, err)
	assert.Equal(t, authority, cfg.Authority)
	assert.Equal(t, governance.DefaultVotingPeriod, cfg.VotingPeriod)
	assert.Equal(t, governance.DefaultDiscussionPeriod, cfg.DiscussionPeriod)
	assert.Equal(t, governance.DefaultQuorumPercentage, cfg.QuorumPercentage)
	assert.Equal(t, governance.DefaultApprovalThreshold, cfg.ApprovalThreshold)
	assert.Zero(t, cfg.ProposalCount)
	assert.False(t, cfg.Paused)
	assert.Nil(t, cfg.PendingConfigChange)

	stored, err := env.engine.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)

	_, err = env.engine.Initialize(as(authority), authority, testInitParams())
	require.ErrorIs(t, err, governance.ErrAlreadyInitialized)
}

func TestInitializeRequiresSigner(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Initialize(as(alice), authority, testInitParams())
	require.ErrorIs(t, err, governance.ErrInvalidSignature)
	_, err = env.engine.Initialize(context.Background(), authority, testInitParams())
	require.ErrorIs(t, err, governance.ErrInvalidSignature)
	_, err = env.engine.GetConfig(context.Background())
	require.ErrorIs(t, err, governance.ErrNotInitialized)
}

func TestInitializeValidation(t *testing.T) {
	testDefs := []struct {
		name   string
		modify func(*governance.InitParams)
		err    error
	}{
		{
			name:   "voting period too short",
			modify: func(p *governance.InitParams) { p.VotingPeriod = governance.MinVotingPeriod - 1 },
			err:    governance.ErrInvalidVotingPeriod,
		},
		{
			name:   "voting period too long",
			modify: func(p *governance.InitParams) { p.VotingPeriod = governance.MaxVotingPeriod + 1 },
			err:    governance.ErrInvalidVotingPeriod,
		},
		{
			name:   "discussion period too short",
			modify: func(p *governance.InitParams) { p.DiscussionPeriod = 0 },
			err:    governance.ErrInvalidDiscussionPeriod,
		},
		{
			name:   "bond below minimum",
			modify: func(p *governance.InitParams) { p.ProposalBond = governance.MinProposalBond - 1 },
			err:    governance.ErrInvalidProposalBond,
		},
		{
			name:   "zero quorum",
			modify: func(p *governance.InitParams) { p.QuorumPercentage = 0 },
			err:    governance.ErrInvalidQuorumPercentage,
		},
		{
			name:   "quorum above 100",
			modify: func(p *governance.InitParams) { p.QuorumPercentage = 101 },
			err:    governance.ErrInvalidQuorumPercentage,
		},
		{
			name:   "approval above 100",
			modify: func(p *governance.InitParams) { p.ApprovalThreshold = 101 },
			err:    governance.ErrInvalidApprovalThreshold,
		},
		{
			name:   "missing treasury account",
			modify: func(p *governance.InitParams) { p.TreasuryAccount = "" },
			err:    governance.ErrInvalidAccount,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			env := newTestEnv(t)
			params := testInitParams()
			testDef.modify(&params)
			_, err := env.engine.Initialize(as(authority), authority, params)
			require.ErrorIs(t, err, testDef.err)
			assert.Equal(t, "Validation", string(governance.CategoryOf(err)))
		})
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CreateProposal(as(proposer), proposer, governance.CreateProposalParams{
		Title:          "t",
		DescriptionCid: "c",
	})
	require.ErrorIs(t, err, governance.ErrNotInitialized)
	_, err = env.engine.DepositToTreasury(as(alice), alice, 1)
	require.ErrorIs(t, err, governance.ErrNotInitialized)
	err = env.engine.SetPaused(as(authority), authority, true)
	require.ErrorIs(t, err, governance.ErrNotInitialized)
}

func TestConfigUpdateTimelock(t *testing.T) {
	env := newInitializedEnv(t, nil)
	period := int64(10 * 24 * 60 * 60)
	quorum := uint8(20)
	pending, err := env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{
		VotingPeriod:     &period,
		QuorumPercentage: &quorum,
	})
	require.NoError(t, err)
	assert.Equal(t, startTime.Unix(), pending.QueuedAt)
	assert.Equal(t, startTime.Unix()+governance.ConfigTimelockDelay, pending.ExecuteAfter)

	_, err = env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{
		QuorumPercentage: &quorum,
	})
	require.ErrorIs(t, err, governance.ErrPendingConfigChangeExists)

	env.clock.Set(time.Unix(pending.ExecuteAfter-1, 0))
	_, err = env.engine.ExecuteConfigUpdate(as(authority), authority)
	require.ErrorIs(t, err, governance.ErrTimelockNotElapsed)

	env.clock.Set(time.Unix(pending.ExecuteAfter, 0))
	cfg, err := env.engine.ExecuteConfigUpdate(as(authority), authority)
	require.NoError(t, err)
	assert.Equal(t, period, cfg.VotingPeriod)
	assert.Equal(t, quorum, cfg.QuorumPercentage)
	assert.Equal(t, governance.DefaultApprovalThreshold, cfg.ApprovalThreshold)
	assert.Nil(t, cfg.PendingConfigChange)

	_, err = env.engine.ExecuteConfigUpdate(as(authority), authority)
	require.ErrorIs(t, err, governance.ErrNoPendingConfigChange)
}

func TestConfigUpdateAuthorization(t *testing.T) {
	env := newInitializedEnv(t, nil)
	bond := 2 * token
	change := governance.ConfigChange{ProposalBond: &bond}
	_, err := env.engine.QueueConfigUpdate(as(alice), alice, change)
	require.ErrorIs(t, err, governance.ErrUnauthorizedAuthority)
	_, err = env.engine.QueueConfigUpdate(as(alice), authority, change)
	require.ErrorIs(t, err, governance.ErrInvalidSignature)
	_, err = env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{})
	require.ErrorIs(t, err, governance.ErrEmptyConfigChange)
	low := governance.MinProposalBond - 1
	_, err = env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{ProposalBond: &low})
	require.ErrorIs(t, err, governance.ErrInvalidProposalBond)

	_, err = env.engine.QueueConfigUpdate(as(authority), authority, change)
	require.NoError(t, err)
	_, err = env.engine.ExecuteConfigUpdate(as(alice), alice)
	require.ErrorIs(t, err, governance.ErrUnauthorizedAuthority)
	require.ErrorIs(t, env.engine.CancelConfigUpdate(as(alice), alice), governance.ErrUnauthorizedAuthority)
}

func TestCancelConfigUpdate(t *testing.T) {
	env := newInitializedEnv(t, nil)
	require.ErrorIs(t, env.engine.CancelConfigUpdate(as(authority), authority), governance.ErrNoPendingConfigChange)
	approval := uint8(66)
	_, err := env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{
		ApprovalThreshold: &approval,
	})
	require.NoError(t, err)
	require.NoError(t, env.engine.CancelConfigUpdate(as(authority), authority))

	env.clock.Advance(3 * day)
	_, err = env.engine.ExecuteConfigUpdate(as(authority), authority)
	require.ErrorIs(t, err, governance.ErrNoPendingConfigChange)
	cfg, err := env.engine.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, governance.DefaultApprovalThreshold, cfg.ApprovalThreshold)
}

func TestPendingChangeDoesNotAffectExistingProposals(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{string(proposer): 10 * token})
	p := env.createGeneral(t, proposer)
	period := governance.MinVotingPeriod
	_, err := env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{
		VotingPeriod: &period,
	})
	require.NoError(t, err)
	env.clock.Advance(2 * day)
	_, err = env.engine.ExecuteConfigUpdate(as(authority), authority)
	require.NoError(t, err)
	stored, err := env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, p.VoteEnd, stored.VoteEnd)
}

func TestSetPaused(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{string(proposer): 10 * token})
	p := env.createGeneral(t, proposer)
	require.ErrorIs(t, env.engine.SetPaused(as(alice), alice, true), governance.ErrUnauthorizedAuthority)
	require.NoError(t, env.engine.SetPaused(as(authority), authority, true))

	_, err := env.engine.CreateProposal(as(proposer), proposer, governance.CreateProposalParams{
		Title:          "Paused",
		DescriptionCid: "cid",
	})
	require.ErrorIs(t, err, governance.ErrDaoPaused)
	_, err = env.engine.DepositVoteTokens(as(proposer), proposer, p.ProposalId, token)
	require.ErrorIs(t, err, governance.ErrDaoPaused)
	_, err = env.engine.DepositToTreasury(as(proposer), proposer, token)
	require.ErrorIs(t, err, governance.ErrDaoPaused)

	// Admin operations still work while paused
	bond := 2 * token
	_, err = env.engine.QueueConfigUpdate(as(authority), authority, governance.ConfigChange{ProposalBond: &bond})
	require.NoError(t, err)

	require.NoError(t, env.engine.SetPaused(as(authority), authority, false))
	_, err = env.engine.DepositVoteTokens(as(proposer), proposer, p.ProposalId, token)
	require.NoError(t, err)
}
