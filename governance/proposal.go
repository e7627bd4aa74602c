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
	"fmt"
	"unicode/utf8"

	"github.com/blinklabs-io/vedao/identity"
)

type CreateProposalParams struct {
	Title          string
	DescriptionCid string
	ProposalType   ProposalType
	ExecutionData  *ExecutionData
}

func (p CreateProposalParams) validate() error {
	if p.Title == "" || len(p.Title) > MaxTitleLength {
		return ErrInvalidTitleLength
	}
	if p.DescriptionCid == "" || len(p.DescriptionCid) > MaxDescriptionCidLength {
		return ErrInvalidDescriptionCidLength
	}
	if !p.ProposalType.Valid() {
		return ErrInvalidProposalType
	}
	isWithdrawal := p.ProposalType == ProposalTypeTreasuryWithdrawal
	if isWithdrawal != (p.ExecutionData != nil) {
		return ErrInvalidExecutionData
	}
	if p.ExecutionData != nil {
		if p.ExecutionData.Recipient == "" {
			return ErrInvalidExecutionData
		}
		if p.ExecutionData.Amount == 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// nextProposalId hands out the next id and advances the counter
func nextProposalId(cfg *DaoConfig) (uint64, error) {
	id := cfg.ProposalCount
	next, err := addU64(id, 1)
	if err != nil {
		return 0, err
	}
	cfg.ProposalCount = next
	return id, nil
}

// snapshotSupply reads the circulating supply of the governance asset
func (s *opState) snapshotSupply(cfg *DaoConfig) (uint64, error) {
	l, _ := s.boundLedger()
	supply, err := l.TotalSupply(s.ctx, cfg.GovernanceAsset)
	if err != nil {
		return 0, fmt.Errorf("snapshot supply: %w", err)
	}
	return supply, nil
}

// CreateProposal escrows the proposal bond from the caller and opens a new
// proposal whose voting starts after the discussion period
func (e *Engine) CreateProposal(
	ctx context.Context,
	caller identity.Identity,
	params CreateProposalParams,
) (*Proposal, error) {
	var ret *Proposal
	err := e.mutate(ctx, "create_proposal", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		if err := params.validate(); err != nil {
			return err
		}
		voteStart, err := addI64(s.now, cfg.DiscussionPeriod)
		if err != nil {
			return err
		}
		voteEnd, err := addI64(voteStart, cfg.VotingPeriod)
		if err != nil {
			return err
		}
		supply, err := s.snapshotSupply(cfg)
		if err != nil {
			return err
		}
		id, err := nextProposalId(cfg)
		if err != nil {
			return err
		}
		p := &Proposal{
			ProposalId:     id,
			Proposer:       caller,
			Title:          params.Title,
			DescriptionCid: params.DescriptionCid,
			ProposalType:   params.ProposalType,
			ExecutionData:  params.ExecutionData,
			Status:         ProposalStatusActive,
			CreatedAt:      s.now,
			VoteStart:      voteStart,
			VoteEnd:        voteEnd,
			BondAmount:     cfg.ProposalBond,
			SnapshotSupply: supply,
		}
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		if err := s.saveProposal(p, nil); err != nil {
			return err
		}
		if err := s.transfer(
			string(caller),
			cfg.BondEscrowAccount,
			cfg.ProposalBond,
			ErrInsufficientBond,
		); err != nil {
			return err
		}
		s.emit(ProposalCreatedEventType, ProposalCreatedEvent{Proposal: *p})
		ret = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal created",
		"component", "governance",
		"proposal_id", ret.ProposalId,
		"type", ret.ProposalType.String(),
		"proposer", ret.Proposer,
		"vote_start", timeOf(ret.VoteStart),
		"vote_end", timeOf(ret.VoteEnd),
	)
	return ret, nil
}

// FinalizeProposal decides an Active proposal once voting has ended
func (e *Engine) FinalizeProposal(
	ctx context.Context,
	proposalId uint64,
) (*Proposal, error) {
	var ret *Proposal
	err := e.mutate(ctx, "finalize_proposal", func(s *opState) error {
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		if p.Status != ProposalStatusActive {
			return ErrProposalNotActive
		}
		if s.now < p.VoteEnd {
			return ErrVotingStillActive
		}
		quorum, err := quorumReached(p, cfg.QuorumPercentage)
		if err != nil {
			return err
		}
		approved := false
		if quorum {
			approved, err = approvalReached(p, cfg.ApprovalThreshold)
			if err != nil {
				return err
			}
		}
		prev := p.Status
		if approved {
			p.Status = ProposalStatusPassed
			if p.ProposalType == ProposalTypeTreasuryWithdrawal {
				eligible, err := addI64(s.now, ExecutionTimelock)
				if err != nil {
					return err
				}
				p.ExecutionEligibleAt = unixPtr(eligible)
			}
		} else {
			p.Status = ProposalStatusDefeated
		}
		if err := s.saveProposal(p, &prev); err != nil {
			return err
		}
		s.emit(ProposalFinalizedEventType, ProposalFinalizedEvent{
			ProposalId:    p.ProposalId,
			Status:        p.Status,
			QuorumReached: quorum,
			ForVotes:      p.ForVotes,
			AgainstVotes:  p.AgainstVotes,
			AbstainVotes:  p.AbstainVotes,
		})
		ret = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal finalized",
		"component", "governance",
		"proposal_id", ret.ProposalId,
		"status", ret.Status.String(),
		"for", ret.ForVotes,
		"against", ret.AgainstVotes,
		"abstain", ret.AbstainVotes,
		"snapshot_supply", ret.SnapshotSupply,
	)
	return ret, nil
}

// ExecuteProposal pays out a passed treasury withdrawal after its timelock
func (e *Engine) ExecuteProposal(
	ctx context.Context,
	proposalId uint64,
	recipient string,
) (*Proposal, error) {
	var ret *Proposal
	err := e.mutate(ctx, "execute_proposal", func(s *opState) error {
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		switch p.Status {
		case ProposalStatusPassed:
		case ProposalStatusExecuted:
			return ErrProposalAlreadyExecuted
		case ProposalStatusActive, ProposalStatusDefeated, ProposalStatusCancelled:
			return ErrProposalNotPassed
		default:
			return ErrProposalNotPassed
		}
		if p.ProposalType != ProposalTypeTreasuryWithdrawal || p.ExecutionData == nil {
			return ErrProposalNotExecutable
		}
		if p.ExecutionEligibleAt == nil || s.now < *p.ExecutionEligibleAt {
			return ErrExecutionTimelockNotElapsed
		}
		if recipient != p.ExecutionData.Recipient {
			return ErrRecipientMismatch
		}
		prev := p.Status
		p.Status = ProposalStatusExecuted
		p.ExecutedAt = unixPtr(s.now)
		if err := s.saveProposal(p, &prev); err != nil {
			return err
		}
		if err := s.transfer(
			cfg.TreasuryAccount,
			recipient,
			p.ExecutionData.Amount,
			ErrInsufficientTreasuryBalance,
		); err != nil {
			return err
		}
		s.emit(ProposalExecutedEventType, ProposalExecutedEvent{
			ProposalId: p.ProposalId,
			Recipient:  recipient,
			Amount:     p.ExecutionData.Amount,
		})
		ret = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal executed",
		"component", "governance",
		"proposal_id", ret.ProposalId,
		"recipient", recipient,
		"amount", ret.ExecutionData.Amount,
	)
	return ret, nil
}

// CancelProposal lets the proposer withdraw an Active proposal before voting
// ends
func (e *Engine) CancelProposal(
	ctx context.Context,
	caller identity.Identity,
	proposalId uint64,
) (*Proposal, error) {
	var ret *Proposal
	err := e.mutate(ctx, "cancel_proposal", func(s *opState) error {
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
		if p.Proposer != caller {
			return ErrUnauthorizedOperator
		}
		if p.Status != ProposalStatusActive {
			return ErrProposalNotActive
		}
		if s.now > p.VoteEnd {
			return ErrVotingEnded
		}
		prev := p.Status
		p.Status = ProposalStatusCancelled
		if err := s.saveProposal(p, &prev); err != nil {
			return err
		}
		s.emit(ProposalCancelledEventType, ProposalCancelledEvent{ProposalId: p.ProposalId})
		ret = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal cancelled",
		"component", "governance",
		"proposal_id", proposalId,
	)
	return ret, nil
}

// RefundBond settles the bond of a decided proposal once. Passed, executed
// and cancelled proposals get their bond back and defeated ones forfeit it
// to the treasury
func (e *Engine) RefundBond(
	ctx context.Context,
	proposalId uint64,
) (*Proposal, error) {
	var ret *Proposal
	var forfeited bool
	err := e.mutate(ctx, "refund_bond", func(s *opState) error {
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		p, err := s.loadProposal(proposalId)
		if err != nil {
			return err
		}
		if p.BondReturned {
			return ErrBondAlreadyReturned
		}
		var recipient string
		var eventType = BondRefundedEventType
		switch p.Status {
		case ProposalStatusActive:
			return ErrProposalStillActive
		case ProposalStatusPassed, ProposalStatusExecuted, ProposalStatusCancelled:
			recipient = string(p.Proposer)
		case ProposalStatusDefeated:
			recipient = cfg.TreasuryAccount
			eventType = BondForfeitedEventType
			forfeited = true
		default:
			return ErrProposalNotActive
		}
		p.BondReturned = true
		if err := s.saveProposal(p, &p.Status); err != nil {
			return err
		}
		if err := s.transfer(
			cfg.BondEscrowAccount,
			recipient,
			p.BondAmount,
			ErrInsufficientBalance,
		); err != nil {
			return err
		}
		s.emit(eventType, BondEvent{
			ProposalId: p.ProposalId,
			Recipient:  recipient,
			Amount:     p.BondAmount,
		})
		ret = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal bond settled",
		"component", "governance",
		"proposal_id", proposalId,
		"amount", ret.BondAmount,
		"forfeited", forfeited,
	)
	return ret, nil
}

// AppealProposal reopens a defeated proposal that came close to quorum. The
// appellant escrows 1.5x the proposal bond and the new proposal votes
// immediately for 1.5x the voting period
func (e *Engine) AppealProposal(
	ctx context.Context,
	caller identity.Identity,
	originalId uint64,
) (*Proposal, error) {
	var ret *Proposal
	err := e.mutate(ctx, "appeal_proposal", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		original, err := s.loadProposal(originalId)
		if err != nil {
			return err
		}
		if original.Status != ProposalStatusDefeated {
			return ErrCannotAppealNonDefeated
		}
		if original.Appealed {
			return ErrAlreadyAppealed
		}
		eligible, err := appealEligible(original, cfg.QuorumPercentage)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrInsufficientVotesForAppeal
		}
		appealBond, err := scaleThreeHalves(cfg.ProposalBond)
		if err != nil {
			return err
		}
		duration := cfg.VotingPeriod + cfg.VotingPeriod/2
		voteEnd, err := addI64(s.now, duration)
		if err != nil {
			return err
		}
		supply, err := s.snapshotSupply(cfg)
		if err != nil {
			return err
		}
		id, err := nextProposalId(cfg)
		if err != nil {
			return err
		}
		appeal := &Proposal{
			ProposalId:     id,
			Proposer:       caller,
			Title:          appealTitle(original.Title),
			DescriptionCid: original.DescriptionCid,
			ProposalType:   original.ProposalType,
			ExecutionData:  original.ExecutionData,
			Status:         ProposalStatusActive,
			CreatedAt:      s.now,
			VoteStart:      s.now,
			VoteEnd:        voteEnd,
			BondAmount:     appealBond,
			SnapshotSupply: supply,
			AppealOf:       &original.ProposalId,
		}
		original.Appealed = true
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		if err := s.saveProposal(original, &original.Status); err != nil {
			return err
		}
		if err := s.saveProposal(appeal, nil); err != nil {
			return err
		}
		if err := s.transfer(
			string(caller),
			cfg.BondEscrowAccount,
			appealBond,
			ErrInsufficientBond,
		); err != nil {
			return err
		}
		s.emit(ProposalAppealedEventType, ProposalAppealedEvent{
			OriginalProposalId: original.ProposalId,
			AppealProposalId:   appeal.ProposalId,
			Appellant:          caller,
			AppealBond:         appealBond,
		})
		ret = appeal
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal appealed",
		"component", "governance",
		"original_id", originalId,
		"appeal_id", ret.ProposalId,
		"appeal_bond", ret.BondAmount,
	)
	return ret, nil
}

// appealTitle prefixes the title and truncates it to the title limit
// without splitting a UTF-8 sequence
func appealTitle(title string) string {
	ret := AppealTitlePrefix + title
	if len(ret) <= MaxTitleLength {
		return ret
	}
	cut := MaxTitleLength
	for cut > 0 && !utf8.RuneStart(ret[cut]) {
		cut--
	}
	return ret[:cut]
}
