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

const (
	day = 24 * 60 * 60

	MinVotingPeriod     int64 = 3 * day
	MaxVotingPeriod     int64 = 14 * day
	DefaultVotingPeriod int64 = 7 * day

	MinDiscussionPeriod     int64 = 1 * day
	MaxDiscussionPeriod     int64 = 14 * day
	DefaultDiscussionPeriod int64 = 7 * day

	// Governance asset amounts are in base units, 10^9 per token
	TokenUnit           uint64 = 1_000_000_000
	MinProposalBond     uint64 = 1 * TokenUnit
	DefaultProposalBond uint64 = 100 * TokenUnit

	DefaultQuorumPercentage  uint8 = 10
	DefaultApprovalThreshold uint8 = 51

	MaxTitleLength          = 128
	MaxDescriptionCidLength = 64

	ConfigTimelockDelay int64 = 48 * 60 * 60
	ExecutionTimelock   int64 = 3 * day

	// A defeated proposal may be appealed when its For and Against votes
	// reach this percentage of the quorum requirement
	AppealQuorumThreshold uint64 = 40
	AppealTitlePrefix            = "APPEAL: "
)
