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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositVoteTokens(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	// Deposits are accepted during discussion
	esc, err := env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 30*token)
	require.NoError(t, err)
	assert.Equal(t, 30*token, esc.DepositedAmount)
	esc, err = env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 20*token)
	require.NoError(t, err)
	assert.Equal(t, 50*token, esc.DepositedAmount)
	assert.Equal(t, 50*token, env.balance(t, string(alice)))
	assert.Equal(t, 50*token, env.balance(t, voteVaultAccount))

	_, err = env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 0)
	require.ErrorIs(t, err, governance.ErrInvalidAmount)
	_, err = env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 51*token)
	require.ErrorIs(t, err, governance.ErrInsufficientBalance)
	_, err = env.engine.DepositVoteTokens(as(alice), alice, 42, token)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = env.engine.DepositVoteTokens(as(bob), alice, p.ProposalId, token)
	require.ErrorIs(t, err, governance.ErrInvalidSignature)

	// A failed deposit leaves balances and escrow untouched
	assert.Equal(t, 50*token, env.balance(t, string(alice)))
	stored, err := env.engine.GetVoteEscrow(context.Background(), p.ProposalId, alice)
	require.NoError(t, err)
	assert.Equal(t, 50*token, stored.DepositedAmount)

	env.closeVoting(p)
	_, err = env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, token)
	require.ErrorIs(t, err, governance.ErrVotingEnded)
}

func TestCastVoteWindow(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(bob):      100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	_, err := env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 10*token)
	require.NoError(t, err)

	_, err = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceFor)
	require.ErrorIs(t, err, governance.ErrVotingNotStarted)
	env.clock.Set(time.Unix(p.VoteStart-1, 0))
	_, err = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceFor)
	require.ErrorIs(t, err, governance.ErrVotingNotStarted)

	env.openVoting(p)
	_, err = env.engine.CastVote(as(bob), bob, p.ProposalId, governance.VoteChoiceFor)
	require.ErrorIs(t, err, governance.ErrNoVotingPower)
	_, err = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoice(7))
	require.ErrorIs(t, err, governance.ErrInvalidVoteChoice)

	_, err = env.engine.DepositVoteTokens(as(bob), bob, p.ProposalId, 10*token)
	require.NoError(t, err)
	env.clock.Set(time.Unix(p.VoteEnd-1, 0))
	_, err = env.engine.CastVote(as(bob), bob, p.ProposalId, governance.VoteChoiceAgainst)
	require.NoError(t, err)

	env.closeVoting(p)
	_, err = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceFor)
	require.ErrorIs(t, err, governance.ErrVotingEnded)
}

func TestVoteWeightIsFrozen(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	env.openVoting(p)
	env.depositAndVote(t, p, alice, 40*token, governance.VoteChoiceFor)

	// Topping up after voting does not change the counted weight
	esc, err := env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 20*token)
	require.NoError(t, err)
	assert.Equal(t, 60*token, esc.DepositedAmount)
	rec, err := env.engine.GetVoteRecord(context.Background(), p.ProposalId, alice)
	require.NoError(t, err)
	assert.Equal(t, 40*token, rec.VoteWeight)
	stored, err := env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 40*token, stored.ForVotes)

	_, err = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceAgainst)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)
	stored, err = env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 40*token, stored.ForVotes)
	assert.Zero(t, stored.AgainstVotes)
}

func TestRetractVote(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	env.openVoting(p)
	require.ErrorIs(t, env.engine.RetractVote(as(alice), alice, p.ProposalId), governance.ErrNotVoted)
	env.depositAndVote(t, p, alice, 40*token, governance.VoteChoiceFor)
	_, err := env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 10*token)
	require.NoError(t, err)

	require.NoError(t, env.engine.RetractVote(as(alice), alice, p.ProposalId))
	stored, err := env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Zero(t, stored.ForVotes)
	_, err = env.engine.GetVoteRecord(context.Background(), p.ProposalId, alice)
	require.ErrorIs(t, err, governance.ErrVoteRecordNotFound)
	votes, err := env.engine.GetVotes(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Empty(t, votes)

	// A new vote uses the escrow amount at that time
	rec, err := env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceAgainst)
	require.NoError(t, err)
	assert.Equal(t, 50*token, rec.VoteWeight)
	stored, err = env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 50*token, stored.AgainstVotes)

	env.closeVoting(p)
	require.ErrorIs(t, env.engine.RetractVote(as(alice), alice, p.ProposalId), governance.ErrVotingEnded)
}

func TestWithdrawVoteTokens(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(bob):      100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	_, err := env.engine.WithdrawVoteTokens(as(alice), alice, p.ProposalId)
	require.ErrorIs(t, err, governance.ErrNoEscrow)

	// Without a vote the escrow can leave at any time
	_, err = env.engine.DepositVoteTokens(as(bob), bob, p.ProposalId, 30*token)
	require.NoError(t, err)
	esc, err := env.engine.WithdrawVoteTokens(as(bob), bob, p.ProposalId)
	require.NoError(t, err)
	assert.True(t, esc.Withdrawn)
	assert.Zero(t, esc.DepositedAmount)
	assert.Equal(t, 100*token, env.balance(t, string(bob)))
	_, err = env.engine.WithdrawVoteTokens(as(bob), bob, p.ProposalId)
	require.ErrorIs(t, err, governance.ErrAlreadyWithdrawn)
	_, err = env.engine.DepositVoteTokens(as(bob), bob, p.ProposalId, token)
	require.ErrorIs(t, err, governance.ErrAlreadyWithdrawn)

	env.openVoting(p)
	env.depositAndVote(t, p, alice, 40*token, governance.VoteChoiceFor)
	env.clock.Set(time.Unix(p.VoteEnd-1, 0))
	_, err = env.engine.WithdrawVoteTokens(as(alice), alice, p.ProposalId)
	require.ErrorIs(t, err, governance.ErrTokensLockedDuringVoting)

	env.closeVoting(p)
	_, err = env.engine.WithdrawVoteTokens(as(alice), alice, p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 100*token, env.balance(t, string(alice)))
	assert.Zero(t, env.balance(t, voteVaultAccount))

	// Counted votes stay in the tally after withdrawal
	stored, err := env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 40*token, stored.ForVotes)
}

func TestConcurrentCastVote(t *testing.T) {
	env := newInitializedEnv(t, map[string]uint64{
		string(alice):    100 * token,
		string(proposer): 10 * token,
	})
	p := env.createGeneral(t, proposer)
	env.openVoting(p)
	_, err := env.engine.DepositVoteTokens(as(alice), alice, p.ProposalId, 40*token)
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = env.engine.CastVote(as(alice), alice, p.ProposalId, governance.VoteChoiceFor)
		}()
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(
			t,
			errors.Is(err, governance.ErrAlreadyVoted) ||
				errors.Is(err, governance.ErrConcurrentModification),
			"unexpected error: %s",
			err,
		)
	}
	assert.Equal(t, 1, successes)
	stored, err := env.engine.GetProposal(context.Background(), p.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, 40*token, stored.ForVotes)
}

func TestConcurrentDeposits(t *testing.T) {
	const voters = 6
	balances := map[string]uint64{string(proposer): 10 * token}
	for i := range voters {
		balances[fmt.Sprintf("voter-%d", i)] = 10 * token
	}
	env := newInitializedEnv(t, balances)
	p := env.createGeneral(t, proposer)

	var wg sync.WaitGroup
	var mu sync.Mutex
	deposited := map[identity.Identity]uint64{}
	for i := range voters {
		voter := identity.Identity(fmt.Sprintf("voter-%d", i))
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := env.engine.DepositVoteTokens(as(voter), voter, p.ProposalId, token); err != nil {
					assert.ErrorIs(t, err, governance.ErrConcurrentModification)
					return
				}
				mu.Lock()
				deposited[voter] += token
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	// Escrow records and the vault agree with what was reported as done
	var total uint64
	for i := range voters {
		voter := identity.Identity(fmt.Sprintf("voter-%d", i))
		esc, err := env.engine.GetVoteEscrow(context.Background(), p.ProposalId, voter)
		if deposited[voter] == 0 {
			require.ErrorIs(t, err, governance.ErrNoEscrow)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, deposited[voter], esc.DepositedAmount)
		assert.Equal(t, 10*token-deposited[voter], env.balance(t, string(voter)))
		total += esc.DepositedAmount
	}
	assert.Equal(t, total, env.balance(t, voteVaultAccount))
}
