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
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/vedao/database/models"
	dbtypes "github.com/blinklabs-io/vedao/database/types"
	"github.com/blinklabs-io/vedao/identity"
)

type ProposalType uint8

const (
	ProposalTypeGeneral ProposalType = iota
	ProposalTypeTreasuryWithdrawal
	ProposalTypeParameterChange
)

func (t ProposalType) String() string {
	switch t {
	case ProposalTypeGeneral:
		return "General"
	case ProposalTypeTreasuryWithdrawal:
		return "TreasuryWithdrawal"
	case ProposalTypeParameterChange:
		return "ParameterChange"
	default:
		return fmt.Sprintf("ProposalType(%d)", uint8(t))
	}
}

func (t ProposalType) Valid() bool {
	switch t {
	case ProposalTypeGeneral,
		ProposalTypeTreasuryWithdrawal,
		ProposalTypeParameterChange:
		return true
	default:
		return false
	}
}

func (t ProposalType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid proposal type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *ProposalType) UnmarshalText(text []byte) error {
	v, err := ParseProposalType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseProposalType(s string) (ProposalType, error) {
	for _, t := range []ProposalType{
		ProposalTypeGeneral,
		ProposalTypeTreasuryWithdrawal,
		ProposalTypeParameterChange,
	} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal type %q", s)
}

type ProposalStatus uint8

const (
	ProposalStatusActive ProposalStatus = iota
	ProposalStatusPassed
	ProposalStatusDefeated
	ProposalStatusExecuted
	ProposalStatusCancelled
)

var proposalStatuses = []ProposalStatus{
	ProposalStatusActive,
	ProposalStatusPassed,
	ProposalStatusDefeated,
	ProposalStatusExecuted,
	ProposalStatusCancelled,
}

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusActive:
		return "Active"
	case ProposalStatusPassed:
		return "Passed"
	case ProposalStatusDefeated:
		return "Defeated"
	case ProposalStatusExecuted:
		return "Executed"
	case ProposalStatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("ProposalStatus(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition leaves the status
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusActive, ProposalStatusPassed:
		return false
	case ProposalStatusDefeated,
		ProposalStatusExecuted,
		ProposalStatusCancelled:
		return true
	default:
		return true
	}
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	if s > ProposalStatusCancelled {
		return nil, fmt.Errorf("invalid proposal status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *ProposalStatus) UnmarshalText(text []byte) error {
	v, err := ParseProposalStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseProposalStatus(s string) (ProposalStatus, error) {
	for _, status := range proposalStatuses {
		if status.String() == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal status %q", s)
}

type VoteChoice uint8

const (
	VoteChoiceFor VoteChoice = iota
	VoteChoiceAgainst
	VoteChoiceAbstain
)

func (c VoteChoice) String() string {
	switch c {
	case VoteChoiceFor:
		return "For"
	case VoteChoiceAgainst:
		return "Against"
	case VoteChoiceAbstain:
		return "Abstain"
	default:
		return fmt.Sprintf("VoteChoice(%d)", uint8(c))
	}
}

func (c VoteChoice) Valid() bool {
	switch c {
	case VoteChoiceFor, VoteChoiceAgainst, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

func (c VoteChoice) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid vote choice %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *VoteChoice) UnmarshalText(text []byte) error {
	v, err := ParseVoteChoice(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func ParseVoteChoice(s string) (VoteChoice, error) {
	for _, c := range []VoteChoice{VoteChoiceFor, VoteChoiceAgainst, VoteChoiceAbstain} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown vote choice %q", s)
}

// PendingConfigChange holds a queued parameter change. Nil fields are left
// unchanged when the change is applied
type PendingConfigChange struct {
	cbor.StructAsArray
	NewVotingPeriod      *int64  `json:"newVotingPeriod,omitempty"`
	NewProposalBond      *uint64 `json:"newProposalBond,omitempty"`
	NewQuorumPercentage  *uint8  `json:"newQuorumPercentage,omitempty"`
	NewApprovalThreshold *uint8  `json:"newApprovalThreshold,omitempty"`
	QueuedAt             int64   `json:"queuedAt"`
	ExecuteAfter         int64   `json:"executeAfter"`
}

// DaoConfig is the global governance configuration. Periods are in seconds
// and timestamps are unix seconds
type DaoConfig struct {
	cbor.StructAsArray
	Authority             identity.Identity    `json:"authority"`
	TreasuryAccount       string               `json:"treasuryAccount"`
	BondEscrowAccount     string               `json:"bondEscrowAccount"`
	VoteVaultAccount      string               `json:"voteVaultAccount"`
	GovernanceAsset       string               `json:"governanceAsset"`
	VotingPeriod          int64                `json:"votingPeriod"`
	DiscussionPeriod      int64                `json:"discussionPeriod"`
	ProposalBond          uint64               `json:"proposalBond"`
	QuorumPercentage      uint8                `json:"quorumPercentage"`
	ApprovalThreshold     uint8                `json:"approvalThreshold"`
	ProposalCount         uint64               `json:"proposalCount"`
	TotalTreasuryDeposits uint64               `json:"totalTreasuryDeposits"`
	Paused                bool                 `json:"paused"`
	PendingConfigChange   *PendingConfigChange `json:"pendingConfigChange,omitempty"`
}

// ExecutionData names the payout of a treasury withdrawal
type ExecutionData struct {
	cbor.StructAsArray
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type Proposal struct {
	cbor.StructAsArray
	ProposalId          uint64            `json:"proposalId"`
	Proposer            identity.Identity `json:"proposer"`
	Title               string            `json:"title"`
	DescriptionCid      string            `json:"descriptionCid"`
	ProposalType        ProposalType      `json:"proposalType"`
	ExecutionData       *ExecutionData    `json:"executionData,omitempty"`
	Status              ProposalStatus    `json:"status"`
	ForVotes            uint64            `json:"forVotes"`
	AgainstVotes        uint64            `json:"againstVotes"`
	AbstainVotes        uint64            `json:"abstainVotes"`
	CreatedAt           int64             `json:"createdAt"`
	VoteStart           int64             `json:"voteStart"`
	VoteEnd             int64             `json:"voteEnd"`
	ExecutionEligibleAt *int64            `json:"executionEligibleAt,omitempty"`
	ExecutedAt          *int64            `json:"executedAt,omitempty"`
	BondReturned        bool              `json:"bondReturned"`
	BondAmount          uint64            `json:"bondAmount"`
	SnapshotSupply      uint64            `json:"snapshotSupply"`
	AppealOf            *uint64           `json:"appealOf,omitempty"`
	Appealed            bool              `json:"appealed"`
}

func (p *Proposal) model() *models.GovernanceProposal {
	return &models.GovernanceProposal{
		ID:             p.ProposalId,
		Proposer:       string(p.Proposer),
		Title:          p.Title,
		DescriptionCid: p.DescriptionCid,
		ProposalType:   uint8(p.ProposalType),
		Status:         uint8(p.Status),
		ForVotes:       dbtypes.Uint64(p.ForVotes),
		AgainstVotes:   dbtypes.Uint64(p.AgainstVotes),
		AbstainVotes:   dbtypes.Uint64(p.AbstainVotes),
		CreatedAt:      p.CreatedAt,
		VoteStart:      p.VoteStart,
		VoteEnd:        p.VoteEnd,
		ExecutedAt:     p.ExecutedAt,
		AppealOf:       p.AppealOf,
		BondReturned:   p.BondReturned,
	}
}

// VoteEscrow is a voter's locked deposit for one proposal
type VoteEscrow struct {
	cbor.StructAsArray
	ProposalId      uint64            `json:"proposalId"`
	Voter           identity.Identity `json:"voter"`
	DepositedAmount uint64            `json:"depositedAmount"`
	DepositedAt     int64             `json:"depositedAt"`
	HasVoted        bool              `json:"hasVoted"`
	VoteChoice      *VoteChoice       `json:"voteChoice,omitempty"`
	Withdrawn       bool              `json:"withdrawn"`
}

// VoteRecord is a cast vote. Its weight is fixed when the vote is cast
type VoteRecord struct {
	cbor.StructAsArray
	ProposalId uint64            `json:"proposalId"`
	Voter      identity.Identity `json:"voter"`
	VoteChoice VoteChoice        `json:"voteChoice"`
	VoteWeight uint64            `json:"voteWeight"`
	VotedAt    int64             `json:"votedAt"`
}

func (v *VoteRecord) model() *models.GovernanceVote {
	return &models.GovernanceVote{
		ProposalID: v.ProposalId,
		Voter:      string(v.Voter),
		Choice:     uint8(v.VoteChoice),
		Weight:     dbtypes.Uint64(v.VoteWeight),
		VotedAt:    v.VotedAt,
	}
}

// ProposalFilter selects proposals from the index
type ProposalFilter struct {
	Status   *ProposalStatus
	Type     *ProposalType
	Proposer *identity.Identity
	AppealOf *uint64
	Offset   int
	Limit    int
	// Descending lists newest proposals first
	Descending bool
}

func (f ProposalFilter) model() models.ProposalFilter {
	ret := models.ProposalFilter{
		AppealOf: f.AppealOf,
		Offset:   f.Offset,
		Limit:    f.Limit,
	}
	if f.Status != nil {
		v := uint8(*f.Status)
		ret.Status = &v
	}
	if f.Type != nil {
		v := uint8(*f.Type)
		ret.Type = &v
	}
	if f.Proposer != nil {
		v := string(*f.Proposer)
		ret.Proposer = &v
	}
	if f.Descending {
		ret.Order = models.OrderDescending
	}
	return ret
}
