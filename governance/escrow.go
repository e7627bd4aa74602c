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

package governance

import (
	"context"

	"github.com/blinklabs-io/vedao/identity"
)

// addToTally adds or removes weight from the tally field of choice
func addToTally(p *Proposal, choice VoteChoice, weight uint64, remove bool) error {
	var field *uint64
	switch choice {
	case VoteChoiceFor:
		field = &p.ForVotes
	case VoteChoiceAgainst:
		field = &p.AgainstVotes
	case VoteChoiceAbstain:
		field = &p.AbstainVotes
	default:
		return ErrInvalidVoteChoice
	}
	var v uint64
	var err error
	if remove {
		v, err = subU64(*field, weight)
	} else {
		v, err = addU64(*field, weight)
	}
	if err != nil {
		return err
	}
	*field = v
	return nil
}

// DepositVoteTokens locks amount of the caller's governance asset in the
// vote vault for one proposal. Deposits add up
func (e *Engine) DepositVoteTokens(
	ctx context.Context,
	caller identity.Identity,
	proposalId uint64,
	amount uint64,
) (*VoteEscrow, error) {
	var ret *VoteEscrow
	err := e.mutate(ctx, "deposit_vote_tokens", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		if p.Status != ProposalStatusActive {
			return ErrProposalNotActive
		}
		if s.now >= p.VoteEnd {
			return ErrVotingEnded
		}
		esc, _, err := s.loadEscrow(proposalId, caller)
		if err != nil {
			return err
		}
		if esc.Withdrawn {
			return ErrAlreadyWithdrawn
		}
		total, err := addU64(esc.DepositedAmount, amount)
		if err != nil {
			return err
		}
		esc.DepositedAmount = total
		esc.DepositedAt = s.now
		if err := s.saveEscrow(esc); err != nil {
			return err
		}
		if err := s.transfer(
			string(caller),
			cfg.VoteVaultAccount,
			amount,
			ErrInsufficientBalance,
		); err != nil {
			return err
		}
		s.emit(VoteTokensDepositedEventType, VoteTokensEvent{
			ProposalId: proposalId,
			Voter:      caller,
			Amount:     amount,
			Total:      total,
		})
		ret = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CastVote counts the caller's current escrow as their vote. The weight is
// fixed at this moment
func (e *Engine) CastVote(
	ctx context.Context,
	caller identity.Identity,
	proposalId uint64,
	choice VoteChoice,
) (*VoteRecord, error) {
	var ret *VoteRecord
	err := e.mutate(ctx, "cast_vote", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		if _, err := s.loadActiveConfig(); err != nil {
			return err
		}
		if !choice.Valid() {
			return ErrInvalidVoteChoice
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		if p.Status != ProposalStatusActive {
			return ErrProposalNotActive
		}
		if s.now < p.VoteStart {
			return ErrVotingNotStarted
		}
		if s.now >= p.VoteEnd {
			return ErrVotingEnded
		}
		esc, _, err := s.loadEscrow(proposalId, caller)
		if err != nil {
			return err
		}
		if esc.DepositedAmount == 0 {
			return ErrNoVotingPower
		}
		if esc.HasVoted {
			return ErrAlreadyVoted
		}
		rec := &VoteRecord{
			ProposalId: proposalId,
			Voter:      caller,
			VoteChoice: choice,
			VoteWeight: esc.DepositedAmount,
			VotedAt:    s.now,
		}
		if err := addToTally(p, choice, rec.VoteWeight, false); err != nil {
			return err
		}
		esc.HasVoted = true
		esc.VoteChoice = &choice
		if err := s.saveEscrow(esc); err != nil {
			return err
		}
		if err := s.saveVoteRecord(rec); err != nil {
			return err
		}
		if err := s.saveProposal(p, &p.Status); err != nil {
			return err
		}
		s.emit(VoteCastEventType, VoteEvent{
			ProposalId: proposalId,
			Voter:      caller,
			Choice:     choice,
			Weight:     rec.VoteWeight,
		})
		ret = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// RetractVote removes the caller's counted vote while voting is open. The
// escrow stays locked and a later vote uses its amount at that time
func (e *Engine) RetractVote(
	ctx context.Context,
	caller identity.Identity,
	proposalId uint64,
) error {
	return e.mutate(ctx, "retract_vote", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		if _, err := s.loadActiveConfig(); err != nil {
			return err
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		esc, _, err := s.loadEscrow(proposalId, caller)
		if err != nil {
			return err
		}
		if !esc.HasVoted {
			return ErrNotVoted
		}
		if p.Status != ProposalStatusActive {
			return ErrProposalNotActive
		}
		if s.now >= p.VoteEnd {
			return ErrVotingEnded
		}
		rec, err := s.loadVoteRecord(proposalId, caller)
		if err != nil {
			return err
		}
		if err := addToTally(p, rec.VoteChoice, rec.VoteWeight, true); err != nil {
			return err
		}
		esc.HasVoted = false
		esc.VoteChoice = nil
		if err := s.saveEscrow(esc); err != nil {
			return err
		}
		if err := s.deleteVoteRecord(proposalId, caller); err != nil {
			return err
		}
		if err := s.saveProposal(p, &p.Status); err != nil {
			return err
		}
		s.emit(VoteRetractedEventType, VoteEvent{
			ProposalId: proposalId,
			Voter:      caller,
			Choice:     rec.VoteChoice,
			Weight:     rec.VoteWeight,
		})
		return nil
	})
}

// WithdrawVoteTokens returns the caller's escrow. A counted vote keeps the
// escrow locked until voting ends
func (e *Engine) WithdrawVoteTokens(
	ctx context.Context,
	caller identity.Identity,
	proposalId uint64,
) (*VoteEscrow, error) {
	var ret *VoteEscrow
	var amount uint64
	err := e.mutate(ctx, "withdraw_vote_tokens", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		esc, found, err := s.loadEscrow(proposalId, caller)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoEscrow
		}
		if esc.Withdrawn {
			return ErrAlreadyWithdrawn
		}
		if esc.HasVoted && s.now < p.VoteEnd {
			return ErrTokensLockedDuringVoting
		}
		amount = esc.DepositedAmount
		esc.DepositedAmount = 0
		esc.Withdrawn = true
		if err := s.saveEscrow(esc); err != nil {
			return err
		}
		if amount > 0 {
			if err := s.transfer(
				cfg.VoteVaultAccount,
				string(caller),
				amount,
				ErrInsufficientBalance,
			); err != nil {
				return err
			}
		}
		s.emit(VoteTokensWithdrawnEventType, VoteTokensEvent{
			ProposalId: proposalId,
			Voter:      caller,
			Amount:     amount,
		})
		ret = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
