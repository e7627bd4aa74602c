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
	"errors"

	"github.com/blinklabs-io/vedao/identity"
)

// InitParams are the parameters of the one-time DAO initialization. The
// caller becomes the authority
type InitParams struct {
	VotingPeriod      int64
	DiscussionPeriod  int64
	ProposalBond      uint64
	QuorumPercentage  uint8
	ApprovalThreshold uint8
	TreasuryAccount   string
	BondEscrowAccount string
	VoteVaultAccount  string
	GovernanceAsset   string
}

// DefaultInitParams returns the default governance parameters for the given
// accounts
func DefaultInitParams(treasury, bondEscrow, voteVault, asset string) InitParams {
	return InitParams{
		VotingPeriod:      DefaultVotingPeriod,
		DiscussionPeriod:  DefaultDiscussionPeriod,
		ProposalBond:      DefaultProposalBond,
		QuorumPercentage:  DefaultQuorumPercentage,
		ApprovalThreshold: DefaultApprovalThreshold,
		TreasuryAccount:   treasury,
		BondEscrowAccount: bondEscrow,
		VoteVaultAccount:  voteVault,
		GovernanceAsset:   asset,
	}
}

func validateVotingPeriod(v int64) error {
	if v < MinVotingPeriod || v > MaxVotingPeriod {
		return ErrInvalidVotingPeriod
	}
	return nil
}

func validateDiscussionPeriod(v int64) error {
	if v < MinDiscussionPeriod || v > MaxDiscussionPeriod {
		return ErrInvalidDiscussionPeriod
	}
	return nil
}

func validateProposalBond(v uint64) error {
	if v < MinProposalBond {
		return ErrInvalidProposalBond
	}
	return nil
}

func validateQuorum(v uint8) error {
	if v < 1 || v > 100 {
		return ErrInvalidQuorumPercentage
	}
	return nil
}

func validateApproval(v uint8) error {
	if v < 1 || v > 100 {
		return ErrInvalidApprovalThreshold
	}
	return nil
}

func (p InitParams) validate() error {
	if err := validateVotingPeriod(p.VotingPeriod); err != nil {
		return err
	}
	if err := validateDiscussionPeriod(p.DiscussionPeriod); err != nil {
		return err
	}
	if err := validateProposalBond(p.ProposalBond); err != nil {
		return err
	}
	if err := validateQuorum(p.QuorumPercentage); err != nil {
		return err
	}
	if err := validateApproval(p.ApprovalThreshold); err != nil {
		return err
	}
	for _, account := range []string{
		p.TreasuryAccount,
		p.BondEscrowAccount,
		p.VoteVaultAccount,
		p.GovernanceAsset,
	} {
		if account == "" {
			return ErrInvalidAccount
		}
	}
	return nil
}

// Initialize creates the DAO config with the caller as authority
func (e *Engine) Initialize(
	ctx context.Context,
	caller identity.Identity,
	params InitParams,
) (*DaoConfig, error) {
	var ret *DaoConfig
	err := e.mutate(ctx, "initialize", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		if _, err := s.loadConfig(); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		if err := params.validate(); err != nil {
			return err
		}
		cfg := &DaoConfig{
			Authority:         caller,
			TreasuryAccount:   params.TreasuryAccount,
			BondEscrowAccount: params.BondEscrowAccount,
			VoteVaultAccount:  params.VoteVaultAccount,
			GovernanceAsset:   params.GovernanceAsset,
			VotingPeriod:      params.VotingPeriod,
			DiscussionPeriod:  params.DiscussionPeriod,
			ProposalBond:      params.ProposalBond,
			QuorumPercentage:  params.QuorumPercentage,
			ApprovalThreshold: params.ApprovalThreshold,
		}
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		s.emit(InitializedEventType, InitializedEvent{Config: *cfg})
		ret = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"DAO initialized",
		"component", "governance",
		"authority", ret.Authority,
		"voting_period", ret.VotingPeriod,
		"discussion_period", ret.DiscussionPeriod,
		"quorum", ret.QuorumPercentage,
		"approval", ret.ApprovalThreshold,
	)
	return ret, nil
}

// ConfigChange lists the parameters to change. Nil fields stay unchanged
type ConfigChange struct {
	VotingPeriod      *int64
	ProposalBond      *uint64
	QuorumPercentage  *uint8
	ApprovalThreshold *uint8
}

func (c ConfigChange) validate() error {
	if c.VotingPeriod == nil && c.ProposalBond == nil &&
		c.QuorumPercentage == nil && c.ApprovalThreshold == nil {
		return ErrEmptyConfigChange
	}
	if c.VotingPeriod != nil {
		if err := validateVotingPeriod(*c.VotingPeriod); err != nil {
			return err
		}
	}
	if c.ProposalBond != nil {
		if err := validateProposalBond(*c.ProposalBond); err != nil {
			return err
		}
	}
	if c.QuorumPercentage != nil {
		if err := validateQuorum(*c.QuorumPercentage); err != nil {
			return err
		}
	}
	if c.ApprovalThreshold != nil {
		if err := validateApproval(*c.ApprovalThreshold); err != nil {
			return err
		}
	}
	return nil
}

// loadAuthorityConfig checks that caller signed and is the authority
func (s *opState) loadAuthorityConfig(caller identity.Identity) (*DaoConfig, error) {
	if err := s.requireSigner(caller); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Authority != caller {
		return nil, ErrUnauthorizedAuthority
	}
	return cfg, nil
}

// QueueConfigUpdate queues a parameter change that can be applied once the
// config timelock has elapsed
func (e *Engine) QueueConfigUpdate(
	ctx context.Context,
	caller identity.Identity,
	change ConfigChange,
) (*PendingConfigChange, error) {
	var ret *PendingConfigChange
	err := e.mutate(ctx, "queue_config_update", func(s *opState) error {
		cfg, err := s.loadAuthorityConfig(caller)
		if err != nil {
			return err
		}
		if cfg.PendingConfigChange != nil {
			return ErrPendingConfigChangeExists
		}
		if err := change.validate(); err != nil {
			return err
		}
		executeAfter, err := addI64(s.now, ConfigTimelockDelay)
		if err != nil {
			return err
		}
		pending := &PendingConfigChange{
			NewVotingPeriod:      change.VotingPeriod,
			NewProposalBond:      change.ProposalBond,
			NewQuorumPercentage:  change.QuorumPercentage,
			NewApprovalThreshold: change.ApprovalThreshold,
			QueuedAt:             s.now,
			ExecuteAfter:         executeAfter,
		}
		cfg.PendingConfigChange = pending
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		s.emit(ConfigUpdateQueuedEventType, ConfigUpdateQueuedEvent{Change: *pending})
		ret = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"config change queued",
		"component", "governance",
		"execute_after", timeOf(ret.ExecuteAfter),
	)
	return ret, nil
}

// ExecuteConfigUpdate applies the pending change once its timelock elapsed
func (e *Engine) ExecuteConfigUpdate(
	ctx context.Context,
	caller identity.Identity,
) (*DaoConfig, error) {
	var ret *DaoConfig
	err := e.mutate(ctx, "execute_config_update", func(s *opState) error {
		cfg, err := s.loadAuthorityConfig(caller)
		if err != nil {
			return err
		}
		pending := cfg.PendingConfigChange
		if pending == nil {
			return ErrNoPendingConfigChange
		}
		if s.now < pending.ExecuteAfter {
			return ErrTimelockNotElapsed
		}
		if pending.NewVotingPeriod != nil {
			cfg.VotingPeriod = *pending.NewVotingPeriod
		}
		if pending.NewProposalBond != nil {
			cfg.ProposalBond = *pending.NewProposalBond
		}
		if pending.NewQuorumPercentage != nil {
			cfg.QuorumPercentage = *pending.NewQuorumPercentage
		}
		if pending.NewApprovalThreshold != nil {
			cfg.ApprovalThreshold = *pending.NewApprovalThreshold
		}
		cfg.PendingConfigChange = nil
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		s.emit(ConfigUpdateExecutedEventType, ConfigUpdateExecutedEvent{
			Change: *pending,
			Config: *cfg,
		})
		ret = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"config change applied",
		"component", "governance",
		"voting_period", ret.VotingPeriod,
		"proposal_bond", ret.ProposalBond,
		"quorum", ret.QuorumPercentage,
		"approval", ret.ApprovalThreshold,
	)
	return ret, nil
}

// CancelConfigUpdate drops the pending change without applying it
func (e *Engine) CancelConfigUpdate(
	ctx context.Context,
	caller identity.Identity,
) error {
	err := e.mutate(ctx, "cancel_config_update", func(s *opState) error {
		cfg, err := s.loadAuthorityConfig(caller)
		if err != nil {
			return err
		}
		pending := cfg.PendingConfigChange
		if pending == nil {
			return ErrNoPendingConfigChange
		}
		cfg.PendingConfigChange = nil
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		s.emit(ConfigUpdateCancelledEventType, ConfigUpdateCancelledEvent{Change: *pending})
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("config change cancelled", "component", "governance")
	return nil
}

// SetPaused pauses or resumes all non-admin operations
func (e *Engine) SetPaused(
	ctx context.Context,
	caller identity.Identity,
	paused bool,
) error {
	err := e.mutate(ctx, "set_paused", func(s *opState) error {
		cfg, err := s.loadAuthorityConfig(caller)
		if err != nil {
			return err
		}
		cfg.Paused = paused
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		s.emit(PausedEventType, PausedEvent{Paused: paused})
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info(
		"DAO pause state changed",
		"component", "governance",
		"paused", paused,
	)
	return nil
}
