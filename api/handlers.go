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

package api

import (
	"net/http"
	"strconv"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetConfig(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetConfig(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	balance, err := s.engine.GetTreasuryBalance(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TreasuryResponse{
		Account:       cfg.TreasuryAccount,
		Balance:       balance,
		TotalDeposits: cfg.TotalTreasuryDeposits,
	})
}

// proposalFilter reads the status, type and proposer query parameters
func proposalFilter(r *http.Request) (governance.ProposalFilter, error) {
	var filter governance.ProposalFilter
	query := r.URL.Query()
	if v := query.Get("status"); v != "" {
		status, err := governance.ParseProposalStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if v := query.Get("type"); v != "" {
		proposalType, err := governance.ParseProposalType(v)
		if err != nil {
			return filter, err
		}
		filter.Type = &proposalType
	}
	if v := query.Get("proposer"); v != "" {
		proposer := identity.Identity(v)
		filter.Proposer = &proposer
	}
	if v := query.Get("appeal_of"); v != "" {
		appealOf, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.AppealOf = &appealOf
	}
	return filter, nil
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	filter, err := proposalFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	total, err := s.engine.CountProposals(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	filter.Offset = params.Offset()
	filter.Limit = params.Count
	filter.Descending = params.Order == PaginationOrderDesc
	proposals, err := s.engine.GetProposals(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []governance.Proposal{}
	}
	SetPaginationHeaders(w, total, params)
	writeJSON(w, http.StatusOK, proposals)
}

func proposalIdParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIdParam(r)
	if err != nil {
		writeBadRequest(w, "invalid proposal id")
		return
	}
	p, err := s.engine.GetProposal(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVotes(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIdParam(r)
	if err != nil {
		writeBadRequest(w, "invalid proposal id")
		return
	}
	votes, err := s.engine.GetVotes(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if votes == nil {
		votes = []governance.VoteRecord{}
	}
	writeJSON(w, http.StatusOK, votes)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIdParam(r)
	if err != nil {
		writeBadRequest(w, "invalid proposal id")
		return
	}
	rec, err := s.engine.GetVoteRecord(r.Context(), id, identity.Identity(r.PathValue("voter")))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIdParam(r)
	if err != nil {
		writeBadRequest(w, "invalid proposal id")
		return
	}
	esc, err := s.engine.GetVoteEscrow(r.Context(), id, identity.Identity(r.PathValue("voter")))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}
