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

// GovernanceVote is the index row for a currently cast vote. Retracting a
// vote removes its row
type GovernanceVote struct {
	ProposalID uint64       `gorm:"primaryKey;autoIncrement:false"`
	Voter      string       `gorm:"primaryKey;size:128"`
	Choice     uint8        `gorm:"not null"`
	Weight     types.Uint64 `gorm:"not null"`
	VotedAt    int64        `gorm:"index;not null"`
}

// TableName returns the table name
func (GovernanceVote) TableName() string {
	return "governance_vote"
}
