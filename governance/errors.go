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
	"errors"
)

type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "Validation"
	CategoryAuthorization ErrorCategory = "Authorization"
	CategoryState         ErrorCategory = "State"
	CategoryResource      ErrorCategory = "Resource"
	CategoryArithmetic    ErrorCategory = "Arithmetic"
	CategoryInternal      ErrorCategory = "Internal"
)

// Validation
var (
	ErrInvalidTitleLength          = errors.New("title must be between 1 and 128 characters")
	ErrInvalidDescriptionCidLength = errors.New("description CID must be between 1 and 64 characters")
	ErrInvalidAmount               = errors.New("amount must be greater than zero")
	ErrInvalidVotingPeriod         = errors.New("voting period out of range")
	ErrInvalidDiscussionPeriod     = errors.New("discussion period out of range")
	ErrInvalidProposalBond         = errors.New("proposal bond below minimum")
	ErrInvalidQuorumPercentage     = errors.New("quorum percentage must be between 1 and 100")
	ErrInvalidApprovalThreshold    = errors.New("approval threshold must be between 1 and 100")
	ErrInvalidExecutionData        = errors.New("execution data required for treasury withdrawals only")
	ErrInvalidProposalType         = errors.New("invalid proposal type")
	ErrInvalidVoteChoice           = errors.New("invalid vote choice")
	ErrInvalidAccount              = errors.New("account id must not be empty")
	ErrEmptyConfigChange           = errors.New("config change has no fields")
)

// Authorization
var (
	ErrInvalidSignature      = errors.New("caller signature does not match claimed identity")
	ErrUnauthorizedAuthority = errors.New("caller is not the DAO authority")
	ErrUnauthorizedOperator  = errors.New("caller is not the proposer")
	ErrRecipientMismatch     = errors.New("recipient does not match execution data")
)

// State
var (
	ErrNotInitialized              = errors.New("DAO is not initialized")
	ErrAlreadyInitialized          = errors.New("DAO is already initialized")
	ErrDaoPaused                   = errors.New("DAO is paused")
	ErrProposalNotFound            = errors.New("proposal not found")
	ErrProposalNotActive           = errors.New("proposal is not active")
	ErrProposalStillActive         = errors.New("proposal is still active")
	ErrProposalNotPassed           = errors.New("proposal has not passed")
	ErrProposalNotExecutable       = errors.New("proposal type is not executable")
	ErrProposalAlreadyExecuted     = errors.New("proposal already executed")
	ErrVotingNotStarted            = errors.New("voting has not started")
	ErrVotingEnded                 = errors.New("voting has ended")
	ErrVotingStillActive           = errors.New("voting is still active")
	ErrExecutionTimelockNotElapsed = errors.New("execution timelock has not elapsed")
	ErrTimelockNotElapsed          = errors.New("config timelock has not elapsed")
	ErrNoPendingConfigChange       = errors.New("no pending config change")
	ErrPendingConfigChangeExists   = errors.New("a config change is already pending")
	ErrAlreadyVoted                = errors.New("already voted")
	ErrNotVoted                    = errors.New("no vote to retract")
	ErrNoVotingPower               = errors.New("no tokens deposited")
	ErrAlreadyWithdrawn            = errors.New("tokens already withdrawn")
	ErrTokensLockedDuringVoting    = errors.New("tokens are locked while a vote is counted")
	ErrNoEscrow                    = errors.New("no vote escrow")
	ErrVoteRecordNotFound          = errors.New("vote record not found")
	ErrBondAlreadyReturned         = errors.New("bond already returned")
	ErrCannotAppealNonDefeated     = errors.New("only defeated proposals can be appealed")
	ErrInsufficientVotesForAppeal  = errors.New("proposal did not reach the participation required for appeal")
	ErrAlreadyAppealed             = errors.New("proposal has already been appealed")
	ErrConcurrentModification      = errors.New("record was modified concurrently, retry")
)

// Resource
var (
	ErrInsufficientBond            = errors.New("insufficient balance for proposal bond")
	ErrInsufficientTreasuryBalance = errors.New("insufficient treasury balance")
	ErrInsufficientBalance         = errors.New("insufficient balance")
)

// Arithmetic
var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

type errorInfo struct {
	kind     string
	category ErrorCategory
}

var errorInfos = map[error]errorInfo{
	ErrInvalidTitleLength:          {"InvalidTitleLength", CategoryValidation},
	ErrInvalidDescriptionCidLength: {"InvalidDescriptionCidLength", CategoryValidation},
	ErrInvalidAmount:               {"InvalidAmount", CategoryValidation},
	ErrInvalidVotingPeriod:         {"InvalidVotingPeriod", CategoryValidation},
	ErrInvalidDiscussionPeriod:     {"InvalidDiscussionPeriod", CategoryValidation},
	ErrInvalidProposalBond:         {"InvalidProposalBond", CategoryValidation},
	ErrInvalidQuorumPercentage:     {"InvalidQuorumPercentage", CategoryValidation},
	ErrInvalidApprovalThreshold:    {"InvalidApprovalThreshold", CategoryValidation},
	ErrInvalidExecutionData:        {"InvalidExecutionData", CategoryValidation},
	ErrInvalidProposalType:         {"InvalidProposalType", CategoryValidation},
	ErrInvalidVoteChoice:           {"InvalidVoteChoice", CategoryValidation},
	ErrInvalidAccount:              {"InvalidAccount", CategoryValidation},
	ErrEmptyConfigChange:           {"EmptyConfigChange", CategoryValidation},

	ErrInvalidSignature:      {"InvalidSignature", CategoryAuthorization},
	ErrUnauthorizedAuthority: {"UnauthorizedAuthority", CategoryAuthorization},
	ErrUnauthorizedOperator:  {"UnauthorizedOperator", CategoryAuthorization},
	ErrRecipientMismatch:     {"RecipientMismatch", CategoryAuthorization},

	ErrNotInitialized:              {"NotInitialized", CategoryState},
	ErrAlreadyInitialized:          {"AlreadyInitialized", CategoryState},
	ErrDaoPaused:                   {"DaoPaused", CategoryState},
	ErrProposalNotFound:            {"ProposalNotFound", CategoryState},
	ErrProposalNotActive:           {"ProposalNotActive", CategoryState},
	ErrProposalStillActive:         {"ProposalStillActive", CategoryState},
	ErrProposalNotPassed:           {"ProposalNotPassed", CategoryState},
	ErrProposalNotExecutable:       {"ProposalNotExecutable", CategoryState},
	ErrProposalAlreadyExecuted:     {"ProposalAlreadyExecuted", CategoryState},
	ErrVotingNotStarted:            {"VotingNotStarted", CategoryState},
	ErrVotingEnded:                 {"VotingEnded", CategoryState},
	ErrVotingStillActive:           {"VotingStillActive", CategoryState},
	ErrExecutionTimelockNotElapsed: {"ExecutionTimelockNotElapsed", CategoryState},
	ErrTimelockNotElapsed:          {"TimelockNotElapsed", CategoryState},
	ErrNoPendingConfigChange:       {"NoPendingConfigChange", CategoryState},
	ErrPendingConfigChangeExists:   {"PendingConfigChangeExists", CategoryState},
	ErrAlreadyVoted:                {"AlreadyVoted", CategoryState},
	ErrNotVoted:                    {"NotVoted", CategoryState},
	ErrNoVotingPower:               {"NoVotingPower", CategoryState},
	ErrAlreadyWithdrawn:            {"AlreadyWithdrawn", CategoryState},
	ErrTokensLockedDuringVoting:    {"TokensLockedDuringVoting", CategoryState},
	ErrNoEscrow:                    {"NoEscrow", CategoryState},
	ErrVoteRecordNotFound:          {"VoteRecordNotFound", CategoryState},
	ErrBondAlreadyReturned:         {"BondAlreadyReturned", CategoryState},
	ErrCannotAppealNonDefeated:     {"CannotAppealNonDefeated", CategoryState},
	ErrInsufficientVotesForAppeal:  {"InsufficientVotesForAppeal", CategoryState},
	ErrAlreadyAppealed:             {"AlreadyAppealed", CategoryState},
	ErrConcurrentModification:      {"ConcurrentModification", CategoryState},

	ErrInsufficientBond:            {"InsufficientBond", CategoryResource},
	ErrInsufficientTreasuryBalance: {"InsufficientTreasuryBalance", CategoryResource},
	ErrInsufficientBalance:         {"InsufficientBalance", CategoryResource},

	ErrArithmeticOverflow: {"ArithmeticOverflow", CategoryArithmetic},
}

func lookupError(err error) (errorInfo, bool) {
	if err == nil {
		return errorInfo{}, false
	}
	for sentinel, info := range errorInfos {
		if errors.Is(err, sentinel) {
			return info, true
		}
	}
	return errorInfo{}, false
}

// KindOf returns the stable name of the governance error wrapped by err, or
// "Internal" for errors outside the governance set
func KindOf(err error) string {
	if info, ok := lookupError(err); ok {
		return info.kind
	}
	return "Internal"
}

// CategoryOf returns the category of the governance error wrapped by err
func CategoryOf(err error) ErrorCategory {
	if info, ok := lookupError(err); ok {
		return info.category
	}
	return CategoryInternal
}
