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

package models

import "github.com/blinklabs-io/vedao/database/types"

// GovernanceProposal is the queryable index row for a proposal record. The
// canonical record lives in the blob store and this row is rebuilt from it
type GovernanceProposal struct {
	ID             uint64       `gorm:"primaryKey;autoIncrement:false"`
	Proposer       string       `gorm:"index;size:128;not null"`
	Title          string       `gorm:"size:512;not null"`
	DescriptionCid string       `gorm:"size:256;not null"`
	ProposalType   uint8        `gorm:"index;not null"`
	Status         uint8        `gorm:"index;not null"`
	ForVotes       types.Uint64 `gorm:"not null"`
	AgainstVotes   types.Uint64 `gorm:"not null"`
	AbstainVotes   types.Uint64 `gorm:"not null"`
	CreatedAt      int64        `gorm:"index;not null;autoCreateTime:false"`
	VoteStart      int64        `gorm:"not null"`
	VoteEnd        int64        `gorm:"index;not null"`
	ExecutedAt     *int64
	AppealOf       *uint64 `gorm:"index"`
	BondReturned   bool    `gorm:"not null"`
}

// TableName returns the table name
func (GovernanceProposal) TableName() string {
	return "governance_proposal"
}
