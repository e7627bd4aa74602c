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
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
)

const (
	HeaderIdentity  = "X-Vedao-Identity"
	HeaderVKey      = "X-Vedao-VKey"
	HeaderSignature = "X-Vedao-Signature"
	HeaderTimestamp = "X-Vedao-Timestamp"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrStaleCommand   = errors.New("command timestamp outside the accepted window")
	ErrBadCommand     = errors.New("malformed command body")
)

// CommandMessage returns the bytes a caller signs for a command: the
// operation, the unix timestamp and the raw request body
func CommandMessage(op string, timestamp int64, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("vedao-command\n")
	buf.WriteString(op)
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(timestamp, 10))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

type CommandResponse struct {
	Op     string `json:"op"`
	Result any    `json:"result,omitempty"`
}

type InitializeRequest struct {
	VotingPeriod      *int64  `json:"votingPeriod"`
	DiscussionPeriod  *int64  `json:"discussionPeriod"`
	ProposalBond      *uint64 `json:"proposalBond"`
	QuorumPercentage  *uint8  `json:"quorumPercentage"`
	ApprovalThreshold *uint8  `json:"approvalThreshold"`
	TreasuryAccount   string  `json:"treasuryAccount"`
	BondEscrowAccount string  `json:"bondEscrowAccount"`
	VoteVaultAccount  string  `json:"voteVaultAccount"`
	GovernanceAsset   string  `json:"governanceAsset"`
}

func (r InitializeRequest) params() governance.InitParams {
	ret := governance.DefaultInitParams(
		r.TreasuryAccount,
		r.BondEscrowAccount,
		r.VoteVaultAccount,
		r.GovernanceAsset,
	)
	if r.VotingPeriod != nil {
		ret.VotingPeriod = *r.VotingPeriod
	}
	if r.DiscussionPeriod != nil {
		ret.DiscussionPeriod = *r.DiscussionPeriod
	}
	if r.ProposalBond != nil {
		ret.ProposalBond = *r.ProposalBond
	}
	if r.QuorumPercentage != nil {
		ret.QuorumPercentage = *r.QuorumPercentage
	}
	if r.ApprovalThreshold != nil {
		ret.ApprovalThreshold = *r.ApprovalThreshold
	}
	return ret
}

type ConfigChangeRequest struct {
	VotingPeriod      *int64  `json:"votingPeriod,omitempty"`
	ProposalBond      *uint64 `json:"proposalBond,omitempty"`
	QuorumPercentage  *uint8  `json:"quorumPercentage,omitempty"`
	ApprovalThreshold *uint8  `json:"approvalThreshold,omitempty"`
}

type SetPausedRequest struct {
	Paused bool `json:"paused"`
}

type CreateProposalRequest struct {
	Title          string                    `json:"title"`
	DescriptionCid string                    `json:"descriptionCid"`
	ProposalType   governance.ProposalType   `json:"proposalType"`
	ExecutionData  *governance.ExecutionData `json:"executionData,omitempty"`
}

type ProposalRequest struct {
	ProposalId uint64 `json:"proposalId"`
}

type ExecuteProposalRequest struct {
	ProposalId uint64 `json:"proposalId"`
	Recipient  string `json:"recipient"`
}

type AmountRequest struct {
	ProposalId uint64 `json:"proposalId,omitempty"`
	Amount     uint64 `json:"amount"`
}

type CastVoteRequest struct {
	ProposalId uint64                `json:"proposalId"`
	Choice     governance.VoteChoice `json:"choice"`
}

type TreasuryDepositResponse struct {
	TotalDeposits uint64 `json:"totalDeposits"`
}

type commandFunc func(ctx context.Context, caller identity.Identity, body []byte) (any, error)

// decodeBody decodes a JSON command body. An empty body is an empty object
func decodeBody(body []byte, dest any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	return nil
}

// command adapts a typed command to a commandFunc
func command[T any](fn func(context.Context, identity.Identity, T) (any, error)) commandFunc {
	return func(ctx context.Context, caller identity.Identity, body []byte) (any, error) {
		var req T
		if err := decodeBody(body, &req); err != nil {
			return nil, err
		}
		return fn(ctx, caller, req)
	}
}

type empty struct{}

func (s *Server) commands() map[string]commandFunc {
	e := s.engine
	return map[string]commandFunc{
		"initialize": command(func(ctx context.Context, caller identity.Identity, req InitializeRequest) (any, error) {
			return e.Initialize(ctx, caller, req.params())
		}),
		"queue_config_update": command(func(ctx context.Context, caller identity.Identity, req ConfigChangeRequest) (any, error) {
			return e.QueueConfigUpdate(ctx, caller, governance.ConfigChange{
				VotingPeriod:      req.VotingPeriod,
				ProposalBond:      req.ProposalBond,
				QuorumPercentage:  req.QuorumPercentage,
				ApprovalThreshold: req.ApprovalThreshold,
			})
		}),
		"execute_config_update": command(func(ctx context.Context, caller identity.Identity, _ empty) (any, error) {
			return e.ExecuteConfigUpdate(ctx, caller)
		}),
		"cancel_config_update": command(func(ctx context.Context, caller identity.Identity, _ empty) (any, error) {
			return nil, e.CancelConfigUpdate(ctx, caller)
		}),
		"set_paused": command(func(ctx context.Context, caller identity.Identity, req SetPausedRequest) (any, error) {
			return nil, e.SetPaused(ctx, caller, req.Paused)
		}),
		"create_proposal": command(func(ctx context.Context, caller identity.Identity, req CreateProposalRequest) (any, error) {
			return e.CreateProposal(ctx, caller, governance.CreateProposalParams{
				Title:          req.Title,
				DescriptionCid: req.DescriptionCid,
				ProposalType:   req.ProposalType,
				ExecutionData:  req.ExecutionData,
			})
		}),
		"finalize_proposal": command(func(ctx context.Context, _ identity.Identity, req ProposalRequest) (any, error) {
			return e.FinalizeProposal(ctx, req.ProposalId)
		}),
		"execute_proposal": command(func(ctx context.Context, _ identity.Identity, req ExecuteProposalRequest) (any, error) {
			return e.ExecuteProposal(ctx, req.ProposalId, req.Recipient)
		}),
		"cancel_proposal": command(func(ctx context.Context, caller identity.Identity, req ProposalRequest) (any, error) {
			return e.CancelProposal(ctx, caller, req.ProposalId)
		}),
		"refund_bond": command(func(ctx context.Context, _ identity.Identity, req ProposalRequest) (any, error) {
			return e.RefundBond(ctx, req.ProposalId)
		}),
		"appeal_proposal": command(func(ctx context.Context, caller identity.Identity, req ProposalRequest) (any, error) {
			return e.AppealProposal(ctx, caller, req.ProposalId)
		}),
		"deposit_vote_tokens": command(func(ctx context.Context, caller identity.Identity, req AmountRequest) (any, error) {
			return e.DepositVoteTokens(ctx, caller, req.ProposalId, req.Amount)
		}),
		"cast_vote": command(func(ctx context.Context, caller identity.Identity, req CastVoteRequest) (any, error) {
			return e.CastVote(ctx, caller, req.ProposalId, req.Choice)
		}),
		"retract_vote": command(func(ctx context.Context, caller identity.Identity, req ProposalRequest) (any, error) {
			return nil, e.RetractVote(ctx, caller, req.ProposalId)
		}),
		"withdraw_vote_tokens": command(func(ctx context.Context, caller identity.Identity, req ProposalRequest) (any, error) {
			return e.WithdrawVoteTokens(ctx, caller, req.ProposalId)
		}),
		"deposit_to_treasury": command(func(ctx context.Context, caller identity.Identity, req AmountRequest) (any, error) {
			total, err := e.DepositToTreasury(ctx, caller, req.Amount)
			if err != nil {
				return nil, err
			}
			return TreasuryDepositResponse{TotalDeposits: total}, nil
		}),
	}
}

// callerContext attaches the caller credentials of r to ctx. Requests
// without a proof reach the engine unauthenticated
func (s *Server) callerContext(
	ctx context.Context,
	r *http.Request,
	op string,
	body []byte,
) (context.Context, identity.Identity, error) {
	caller := identity.Identity(r.Header.Get(HeaderIdentity))
	if s.config.TrustCallerHeader {
		if caller != "" {
			ctx = identity.WithCaller(ctx, caller)
		}
		return ctx, caller, nil
	}
	vkeyHex := r.Header.Get(HeaderVKey)
	sigHex := r.Header.Get(HeaderSignature)
	if vkeyHex == "" && sigHex == "" {
		return ctx, caller, nil
	}
	vkey, err := hex.DecodeString(vkeyHex)
	if err != nil {
		return ctx, caller, fmt.Errorf("decode %s: %w", HeaderVKey, err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return ctx, caller, fmt.Errorf("decode %s: %w", HeaderSignature, err)
	}
	timestamp, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return ctx, caller, fmt.Errorf("parse %s: %w", HeaderTimestamp, err)
	}
	skew := s.engine.Clock().Now().Sub(time.Unix(timestamp, 0)).Abs()
	if skew > s.config.MaxClockSkew {
		return ctx, caller, ErrStaleCommand
	}
	ctx = identity.WithProof(ctx, identity.Proof{
		VKey:      vkey,
		Signature: sig,
		Message:   CommandMessage(op, timestamp, body),
	})
	return ctx, caller, nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")
	fn, ok := s.commandTable[op]
	if !ok {
		writeError(w, http.StatusNotFound, "UnknownCommand", string(governance.CategoryValidation), fmt.Sprintf("%s: %s", ErrUnknownCommand, op))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	ctx, caller, err := s.callerContext(r.Context(), r, op, body)
	if err != nil {
		if errors.Is(err, ErrStaleCommand) {
			writeError(w, http.StatusUnauthorized, "StaleCommand", string(governance.CategoryAuthorization), err.Error())
			return
		}
		writeBadRequest(w, err.Error())
		return
	}
	result, err := fn(ctx, caller, body)
	if err != nil {
		if errors.Is(err, ErrBadCommand) {
			writeBadRequest(w, err.Error())
			return
		}
		s.writeEngineError(w, r, err)
		return
	}
	s.logger.Debug(
		"command applied",
		"component", "api",
		"op", op,
		"caller", caller,
	)
	writeJSON(w, http.StatusOK, CommandResponse{Op: op, Result: result})
}
