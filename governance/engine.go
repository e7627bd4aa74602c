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

// Package governance implements the proposal, vote escrow, treasury and
// configuration state machine of the DAO
package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	dbtypes "github.com/blinklabs-io/vedao/database/types"
	"github.com/blinklabs-io/vedao/event"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/vedao/governance"

// Engine runs governance operations. Every mutating operation reads and
// writes its records in one store transaction. Ledger transfers go through
// the same transaction when the ledger lives in the record store; on an
// external ledger, transfers made by a failed operation are reversed
type Engine struct {
	db             *database.Database
	ledger         ledger.Ledger
	verifier       identity.Verifier
	clock          Clock
	eventBus       *event.EventBus
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	metrics        *engineMetrics
}

type EngineOptionFunc func(*Engine)

func WithLogger(logger *slog.Logger) EngineOptionFunc {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) EngineOptionFunc {
	return func(e *Engine) {
		e.promRegistry = registry
	}
}

func WithEventBus(eventBus *event.EventBus) EngineOptionFunc {
	return func(e *Engine) {
		e.eventBus = eventBus
	}
}

func WithClock(clock Clock) EngineOptionFunc {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithTracerProvider(tp trace.TracerProvider) EngineOptionFunc {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}

// NewEngine builds an engine over an open database and its collaborators
func NewEngine(
	db *database.Database,
	l ledger.Ledger,
	verifier identity.Verifier,
	opts ...EngineOptionFunc,
) (*Engine, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if verifier == nil {
		return nil, errors.New("identity verifier is required")
	}
	e := &Engine{
		db:       db,
		ledger:   l,
		verifier: verifier,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if e.clock == nil {
		e.clock = NewSystemClock()
	}
	if e.tracerProvider == nil {
		e.tracerProvider = otel.GetTracerProvider()
	}
	e.tracer = e.tracerProvider.Tracer(tracerName)
	if e.promRegistry != nil {
		e.metrics = &engineMetrics{}
		e.metrics.init(e.promRegistry)
		if err := e.refreshMetrics(context.Background()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Clock returns the engine time source
func (e *Engine) Clock() Clock {
	return e.clock
}

type appliedTransfer struct {
	from   string
	to     string
	amount uint64
}

// opState carries one operation through its store transaction
type opState struct {
	e           *Engine
	ctx         context.Context
	txn         *database.Txn
	config      *DaoConfig
	transfers   []appliedTransfer
	moved       bool
	events      []event.Event
	statusMoves []statusMove
	now         int64
}

type statusMove struct {
	from *ProposalStatus
	to   ProposalStatus
}

// mutate runs fn in a read-write transaction. Events are published and
// metrics updated only after a successful commit
func (e *Engine) mutate(
	ctx context.Context,
	op string,
	fn func(*opState) error,
) error {
	ctx, span := e.tracer.Start(ctx, "governance."+op)
	defer span.End()
	now := e.clock.Now()
	s := &opState{
		e:   e,
		ctx: ctx,
		now: now.Unix(),
	}
	err := e.db.Update(func(txn *database.Txn) error {
		s.txn = txn
		return fn(s)
	})
	if err != nil {
		if errors.Is(err, dbtypes.ErrTxnConflict) {
			err = fmt.Errorf("%s: %w", op, ErrConcurrentModification)
		}
		if compErr := s.compensate(); compErr != nil {
			e.logger.Error(
				"failed to reverse ledger transfers of a failed operation",
				"component", "governance",
				"op", op,
				"error", compErr,
			)
			err = errors.Join(err, compErr)
		}
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		span.SetAttributes(attribute.String("governance.error_kind", kind))
		if e.metrics != nil {
			e.metrics.operations.WithLabelValues(op, kind).Inc()
		}
		e.logger.Debug(
			"operation rejected",
			"component", "governance",
			"op", op,
			"kind", kind,
			"error", err,
		)
		return err
	}
	if e.metrics != nil {
		e.metrics.operations.WithLabelValues(op, "ok").Inc()
		for _, move := range s.statusMoves {
			if move.from != nil {
				e.metrics.proposals.WithLabelValues(move.from.String()).Dec()
			}
			e.metrics.proposals.WithLabelValues(move.to.String()).Inc()
		}
		if s.config != nil {
			e.metrics.pendingChange.Set(boolGauge(s.config.PendingConfigChange != nil))
			e.metrics.paused.Set(boolGauge(s.config.Paused))
			if s.moved {
				e.refreshBalances(ctx, s.config)
			}
		}
	}
	if e.eventBus != nil {
		for _, evt := range s.events {
			evt.Timestamp = now
			e.eventBus.Publish(evt.Type, evt)
		}
	}
	return nil
}

// view runs fn in a read-only transaction
func (e *Engine) view(
	ctx context.Context,
	op string,
	fn func(*opState) error,
) error {
	ctx, span := e.tracer.Start(ctx, "governance."+op)
	defer span.End()
	s := &opState{
		e:   e,
		ctx: ctx,
		now: e.clock.Now().Unix(),
	}
	err := e.db.View(func(txn *database.Txn) error {
		s.txn = txn
		return fn(s)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err))
	}
	return err
}

// compensate reverses applied transfers, newest first
func (s *opState) compensate() error {
	var err error
	for i := len(s.transfers) - 1; i >= 0; i-- {
		t := s.transfers[i]
		if tErr := ledger.Transfer(s.ctx, s.e.ledger, t.to, t.from, t.amount); tErr != nil {
			err = errors.Join(err, tErr)
		}
	}
	s.transfers = nil
	return err
}

// boundLedger returns the ledger to use inside the operation. A ledger kept
// in the record store is bound to the operation transaction, so its
// transfers commit or roll back with the records
func (s *opState) boundLedger() (ledger.Ledger, bool) {
	if tl, ok := s.e.ledger.(ledger.TxnLedger); ok {
		return tl.Bind(s.txn), true
	}
	return s.e.ledger, false
}

// transfer moves value. Transfers on an external ledger are applied at once
// and remembered for compensation. A shortfall on the source account is
// reported as shortfallErr
func (s *opState) transfer(from, to string, amount uint64, shortfallErr error) error {
	l, bound := s.boundLedger()
	if err := ledger.Transfer(s.ctx, l, from, to, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return fmt.Errorf("%w: %w", shortfallErr, err)
		}
		if errors.Is(err, ledger.ErrBalanceOverflow) {
			return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
		}
		return err
	}
	if !bound {
		s.transfers = append(s.transfers, appliedTransfer{from: from, to: to, amount: amount})
	}
	s.moved = true
	return nil
}

func (s *opState) emit(eventType event.EventType, data any) {
	s.events = append(s.events, event.Event{Type: eventType, Data: data})
}

func (s *opState) requireSigner(caller identity.Identity) error {
	if caller == "" || !s.e.verifier.IsSigner(s.ctx, caller) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *opState) loadConfig() (*DaoConfig, error) {
	if s.config != nil {
		return s.config, nil
	}
	cfg := &DaoConfig{}
	if err := s.txn.GetRecord(dbtypes.ConfigKey(), cfg); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	s.config = cfg
	return cfg, nil
}

// loadActiveConfig loads the config and fails while the DAO is paused
func (s *opState) loadActiveConfig() (*DaoConfig, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrDaoPaused
	}
	return cfg, nil
}

func (s *opState) saveConfig(cfg *DaoConfig) error {
	s.config = cfg
	return s.txn.SetRecord(dbtypes.ConfigKey(), cfg)
}

func (s *opState) loadProposal(proposalId uint64) (*Proposal, error) {
	p := &Proposal{}
	if err := s.txn.GetRecord(dbtypes.ProposalKey(proposalId), p); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, proposalId)
		}
		return nil, err
	}
	return p, nil
}

// saveProposal writes the proposal and stages its index row. prevStatus is
// nil for a new proposal
func (s *opState) saveProposal(p *Proposal, prevStatus *ProposalStatus) error {
	if err := s.txn.SetRecord(dbtypes.ProposalKey(p.ProposalId), p); err != nil {
		return err
	}
	row := p.model()
	s.txn.Index(func(w metadata.IndexWriter) error {
		return w.SetProposal(row)
	})
	if prevStatus == nil || *prevStatus != p.Status {
		s.statusMoves = append(s.statusMoves, statusMove{from: prevStatus, to: p.Status})
	}
	return nil
}

// loadEscrow returns the escrow of voter, or an empty one when none exists
func (s *opState) loadEscrow(proposalId uint64, voter identity.Identity) (*VoteEscrow, bool, error) {
	esc := &VoteEscrow{}
	err := s.txn.GetRecord(dbtypes.VoteEscrowKey(proposalId, string(voter)), esc)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return &VoteEscrow{ProposalId: proposalId, Voter: voter}, false, nil
		}
		return nil, false, err
	}
	return esc, true, nil
}

func (s *opState) saveEscrow(esc *VoteEscrow) error {
	return s.txn.SetRecord(dbtypes.VoteEscrowKey(esc.ProposalId, string(esc.Voter)), esc)
}

func (s *opState) loadVoteRecord(proposalId uint64, voter identity.Identity) (*VoteRecord, error) {
	rec := &VoteRecord{}
	if err := s.txn.GetRecord(dbtypes.VoteRecordKey(proposalId, string(voter)), rec); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrVoteRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *opState) saveVoteRecord(rec *VoteRecord) error {
	if err := s.txn.SetRecord(dbtypes.VoteRecordKey(rec.ProposalId, string(rec.Voter)), rec); err != nil {
		return err
	}
	row := rec.model()
	s.txn.Index(func(w metadata.IndexWriter) error {
		return w.SetVote(row)
	})
	return nil
}

func (s *opState) deleteVoteRecord(proposalId uint64, voter identity.Identity) error {
	if err := s.txn.Delete(dbtypes.VoteRecordKey(proposalId, string(voter))); err != nil {
		return err
	}
	s.txn.Index(func(w metadata.IndexWriter) error {
		return w.DeleteVote(proposalId, string(voter))
	})
	return nil
}

func (e *Engine) refreshBalances(ctx context.Context, cfg *DaoConfig) {
	if e.metrics == nil {
		return
	}
	if bal, err := e.ledger.BalanceOf(ctx, cfg.TreasuryAccount); err == nil {
		e.metrics.treasuryBalance.Set(float64(bal))
	}
	if bal, err := e.ledger.BalanceOf(ctx, cfg.VoteVaultAccount); err == nil {
		e.metrics.escrowedTotal.Set(float64(bal))
	}
}

// refreshMetrics loads gauge values from the index and the ledger
func (e *Engine) refreshMetrics(ctx context.Context) error {
	if e.metrics == nil {
		return nil
	}
	for _, status := range proposalStatuses {
		count, err := e.CountProposals(ctx, ProposalFilter{Status: &status})
		if err != nil {
			return fmt.Errorf("count proposals: %w", err)
		}
		e.metrics.proposals.WithLabelValues(status.String()).Set(float64(count))
	}
	cfg, err := e.GetConfig(ctx)
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return nil
		}
		return err
	}
	e.metrics.pendingChange.Set(boolGauge(cfg.PendingConfigChange != nil))
	e.metrics.paused.Set(boolGauge(cfg.Paused))
	e.refreshBalances(ctx, cfg)
	return nil
}

func unixPtr(v int64) *int64 {
	return &v
}

func timeOf(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}
