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
	"github.com/blinklabs-io/vedao/event"
	"github.com/blinklabs-io/vedao/identity"
)

const (
	InitializedEventType           event.EventType = "governance.initialized"
	ConfigUpdateQueuedEventType    event.EventType = "governance.config_update_queued"
	ConfigUpdateExecutedEventType  event.EventType = "governance.config_update_executed"
	ConfigUpdateCancelledEventType event.EventType = "governance.config_update_cancelled"
	PausedEventType                event.EventType = "governance.paused"
	ProposalCreatedEventType       event.EventType = "governance.proposal_created"
	ProposalCancelledEventType     event.EventType = "governance.proposal_cancelled"
	ProposalFinalizedEventType     event.EventType = "governance.proposal_finalized"
	ProposalExecutedEventType      event.EventType = "governance.proposal_executed"
	ProposalAppealedEventType      event.EventType = "governance.proposal_appealed"
	BondRefundedEventType          event.EventType = "governance.bond_refunded"
	BondForfeitedEventType         event.EventType = "governance.bond_forfeited"
	VoteTokensDepositedEventType   event.EventType = "governance.vote_tokens_deposited"
	VoteTokensWithdrawnEventType   event.EventType = "governance.vote_tokens_withdrawn"
	VoteCastEventType              event.EventType = "governance.vote_cast"
	VoteRetractedEventType         event.EventType = "governance.vote_retracted"
	TreasuryDepositEventType       event.EventType = "governance.treasury_deposit"
)

type InitializedEvent struct {
	Config DaoConfig
}

type ConfigUpdateQueuedEvent struct {
	Change PendingConfigChange
}

type ConfigUpdateExecutedEvent struct {
	Change PendingConfigChange
	Config DaoConfig
}

type ConfigUpdateCancelledEvent struct {
	Change PendingConfigChange
}

type PausedEvent struct {
	Paused bool
}

type ProposalCreatedEvent struct {
	Proposal Proposal
}

type ProposalCancelledEvent struct {
	ProposalId uint64
}

type ProposalFinalizedEvent struct {
	ProposalId    uint64
	Status        ProposalStatus
	QuorumReached bool
	ForVotes      uint64
	AgainstVotes  uint64
	AbstainVotes  uint64
}

type ProposalExecutedEvent struct {
	ProposalId uint64
	Recipient  string
	Amount     uint64
}

type ProposalAppealedEvent struct {
	OriginalProposalId uint64
	AppealProposalId   uint64
	Appellant          identity.Identity
	AppealBond         uint64
}

type BondEvent struct {
	ProposalId uint64
	Recipient  string
	Amount     uint64
}

type VoteTokensEvent struct {
	ProposalId uint64
	Voter      identity.Identity
	Amount     uint64
	Total      uint64
}

type VoteEvent struct {
	ProposalId uint64
	Voter      identity.Identity
	Choice     VoteChoice
	Weight     uint64
}

type TreasuryDepositEvent struct {
	Depositor identity.Identity
	Amount    uint64
	Total     uint64
}
