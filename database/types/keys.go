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

package types

import (
	"encoding/binary"
	"slices"
)

// Record key prefixes. Each record kind owns a single leading byte
const (
	ConfigKeyPrefix     byte = 0x01
	ProposalKeyPrefix   byte = 0x10
	VoteEscrowKeyPrefix byte = 0x20
	VoteRecordKeyPrefix byte = 0x21
	BalanceKeyPrefix    byte = 0x30
	SupplyKeyPrefix     byte = 0x31
	// Store bookkeeping, never decoded as a governance record
	MetaKeyPrefix byte = 0xf0
)

// Meta keys under MetaKeyPrefix
const (
	MetaCommitTimestamp byte = 0x01
	// Set once the genesis balances are minted
	MetaGenesisMinted byte = 0x02
)

func Uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// MetaKey returns the bookkeeping key with the given id
func MetaKey(id byte) []byte {
	return []byte{MetaKeyPrefix, id}
}

func ConfigKey() []byte {
	return []byte{ConfigKeyPrefix}
}

func ProposalKey(proposalId uint64) []byte {
	return slices.Concat([]byte{ProposalKeyPrefix}, Uint64ToBytes(proposalId))
}

func VoteEscrowKey(proposalId uint64, voter string) []byte {
	return slices.Concat(
		[]byte{VoteEscrowKeyPrefix},
		Uint64ToBytes(proposalId),
		[]byte(voter),
	)
}

func VoteRecordKey(proposalId uint64, voter string) []byte {
	return slices.Concat(
		[]byte{VoteRecordKeyPrefix},
		Uint64ToBytes(proposalId),
		[]byte(voter),
	)
}

// VoteRecordKeyPrefixForProposal returns the prefix shared by every vote
// record of a proposal
func VoteRecordKeyPrefixForProposal(proposalId uint64) []byte {
	return slices.Concat(
		[]byte{VoteRecordKeyPrefix},
		Uint64ToBytes(proposalId),
	)
}

// BalanceKey addresses the ledger balance of an account
func BalanceKey(account string) []byte {
	return slices.Concat([]byte{BalanceKeyPrefix}, []byte(account))
}

// SupplyKey addresses the minted supply of an asset
func SupplyKey(asset string) []byte {
	return slices.Concat([]byte{SupplyKeyPrefix}, []byte(asset))
}
