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

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	dbtypes "github.com/blinklabs-io/vedao/database/types"
	"github.com/blinklabs-io/vedao/identity"
)

// GetConfig returns the DAO config
func (e *Engine) GetConfig(ctx context.Context) (*DaoConfig, error) {
	var ret *DaoConfig
	err := e.view(ctx, "get_config", func(s *opState) error {
		cfg, err := s.loadConfig()
		ret = cfg
		return err
	})
	return ret, err
}

// GetProposal returns one proposal
func (e *Engine) GetProposal(ctx context.Context, proposalId uint64) (*Proposal, error) {
	var ret *Proposal
	err := e.view(ctx, "get_proposal", func(s *opState) error {
		p, err := s.loadProposal(proposalId)
		ret = p
		return err
	})
	return ret, err
}

// GetProposals selects proposals through the index and returns their
// current records
func (e *Engine) GetProposals(ctx context.Context, filter ProposalFilter) ([]Proposal, error) {
	rows, err := e.db.Metadata().GetProposals(filter.model())
	if err != nil {
		return nil, fmt.Errorf("query proposal index: %w", err)
	}
	ret := make([]Proposal, 0, len(rows))
	err = e.view(ctx, "get_proposals", func(s *opState) error {
		for _, row := range rows {
			p, err := s.loadProposal(row.ID)
			if err != nil {
				return err
			}
			ret = append(ret, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CountProposals counts the proposals matching filter, ignoring paging
func (e *Engine) CountProposals(_ context.Context, filter ProposalFilter) (int64, error) {
	count, err := e.db.Metadata().CountProposals(filter.model())
	if err != nil {
		return 0, fmt.Errorf("count proposal index: %w", err)
	}
	return count, nil
}

// GetVoteEscrow returns the escrow of voter for a proposal
func (e *Engine) GetVoteEscrow(
	ctx context.Context,
	proposalId uint64,
	voter identity.Identity,
) (*VoteEscrow, error) {
	var ret *VoteEscrow
	err := e.view(ctx, "get_vote_escrow", func(s *opState) error {
		esc, found, err := s.loadEscrow(proposalId, voter)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoEscrow
		}
		ret = esc
		return nil
	})
	return ret, err
}

// GetVoteRecord returns the counted vote of voter for a proposal
func (e *Engine) GetVoteRecord(
	ctx context.Context,
	proposalId uint64,
	voter identity.Identity,
) (*VoteRecord, error) {
	var ret *VoteRecord
	err := e.view(ctx, "get_vote_record", func(s *opState) error {
		rec, err := s.loadVoteRecord(proposalId, voter)
		ret = rec
		return err
	})
	return ret, err
}

// GetVotes lists the counted votes of a proposal in voting order
func (e *Engine) GetVotes(ctx context.Context, proposalId uint64) ([]VoteRecord, error) {
	if _, err := e.GetProposal(ctx, proposalId); err != nil {
		return nil, err
	}
	rows, err := e.db.Metadata().GetVotes(proposalId)
	if err != nil {
		return nil, fmt.Errorf("query vote index: %w", err)
	}
	ret := make([]VoteRecord, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, VoteRecord{
			ProposalId: row.ProposalID,
			Voter:      identity.Identity(row.Voter),
			VoteChoice: VoteChoice(row.Choice),
			VoteWeight: uint64(row.Weight),
			VotedAt:    row.VotedAt,
		})
	}
	return ret, nil
}

// GetTreasuryBalance returns the ledger balance of the treasury account
func (e *Engine) GetTreasuryBalance(ctx context.Context) (uint64, error) {
	cfg, err := e.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	return e.ledger.BalanceOf(ctx, cfg.TreasuryAccount)
}

// RebuildIndex recreates the proposal and vote index from the records
func (e *Engine) RebuildIndex(ctx context.Context) error {
	_, span := e.tracer.Start(ctx, "governance.rebuild_index")
	defer span.End()
	var proposals, votes int
	err := e.db.RebuildIndex(func(txn *database.Txn, w metadata.IndexWriter) error {
		err := txn.IterateRecords(
			[]byte{dbtypes.ProposalKeyPrefix},
			func(_ []byte, val []byte) error {
				p := &Proposal{}
				if _, err := cbor.Decode(val, p); err != nil {
					return fmt.Errorf("decode proposal: %w", err)
				}
				proposals++
				return w.SetProposal(p.model())
			},
		)
		if err != nil {
			return err
		}
		return txn.IterateRecords(
			[]byte{dbtypes.VoteRecordKeyPrefix},
			func(_ []byte, val []byte) error {
				rec := &VoteRecord{}
				if _, err := cbor.Decode(val, rec); err != nil {
					return fmt.Errorf("decode vote record: %w", err)
				}
				votes++
				return w.SetVote(rec.model())
			},
		)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	e.logger.Info(
		"governance index rebuilt",
		"component", "governance",
		"proposals", proposals,
		"votes", votes,
	)
	return e.refreshMetrics(ctx)
}
