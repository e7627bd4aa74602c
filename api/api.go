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

// Package api serves the governance queries and signed commands over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultListenAddress = ":8650"
	// DefaultMaxClockSkew bounds how far a command timestamp may be from
	// the engine clock
	DefaultMaxClockSkew = 5 * time.Minute
	maxBodySize         = 64 * 1024
)

// Governance is the engine surface used by the API
type Governance interface {
	Clock() governance.Clock
	GetConfig(ctx context.Context) (*governance.DaoConfig, error)
	GetProposal(ctx context.Context, proposalId uint64) (*governance.Proposal, error)
	GetProposals(ctx context.Context, filter governance.ProposalFilter) ([]governance.Proposal, error)
	CountProposals(ctx context.Context, filter governance.ProposalFilter) (int64, error)
	GetVoteEscrow(ctx context.Context, proposalId uint64, voter identity.Identity) (*governance.VoteEscrow, error)
	GetVoteRecord(ctx context.Context, proposalId uint64, voter identity.Identity) (*governance.VoteRecord, error)
	GetVotes(ctx context.Context, proposalId uint64) ([]governance.VoteRecord, error)
	GetTreasuryBalance(ctx context.Context) (uint64, error)

	Initialize(ctx context.Context, caller identity.Identity, params governance.InitParams) (*governance.DaoConfig, error)
	QueueConfigUpdate(ctx context.Context, caller identity.Identity, change governance.ConfigChange) (*governance.PendingConfigChange, error)
	ExecuteConfigUpdate(ctx context.Context, caller identity.Identity) (*governance.DaoConfig, error)
	CancelConfigUpdate(ctx context.Context, caller identity.Identity) error
	SetPaused(ctx context.Context, caller identity.Identity, paused bool) error
	CreateProposal(ctx context.Context, caller identity.Identity, params governance.CreateProposalParams) (*governance.Proposal, error)
	FinalizeProposal(ctx context.Context, proposalId uint64) (*governance.Proposal, error)
	ExecuteProposal(ctx context.Context, proposalId uint64, recipient string) (*governance.Proposal, error)
	CancelProposal(ctx context.Context, caller identity.Identity, proposalId uint64) (*governance.Proposal, error)
	RefundBond(ctx context.Context, proposalId uint64) (*governance.Proposal, error)
	AppealProposal(ctx context.Context, caller identity.Identity, originalId uint64) (*governance.Proposal, error)
	DepositVoteTokens(ctx context.Context, caller identity.Identity, proposalId uint64, amount uint64) (*governance.VoteEscrow, error)
	CastVote(ctx context.Context, caller identity.Identity, proposalId uint64, choice governance.VoteChoice) (*governance.VoteRecord, error)
	RetractVote(ctx context.Context, caller identity.Identity, proposalId uint64) error
	WithdrawVoteTokens(ctx context.Context, caller identity.Identity, proposalId uint64) (*governance.VoteEscrow, error)
	DepositToTreasury(ctx context.Context, caller identity.Identity, amount uint64) (uint64, error)
}

type Config struct {
	// PromRegistry receives the API request metrics
	PromRegistry prometheus.Registerer
	// PromGatherer, when set, is served on /metrics
	PromGatherer  prometheus.Gatherer
	ListenAddress string
	MaxClockSkew  time.Duration
	// TrustCallerHeader takes X-Vedao-Identity as already authenticated.
	// Only enable behind a proxy that authenticates callers
	TrustCallerHeader bool
}

// Server is the governance HTTP API
type Server struct {
	config       Config
	logger       *slog.Logger
	engine       Governance
	commandTable map[string]commandFunc
	metrics      *apiMetrics
	httpServer   *http.Server
	doneCh       chan struct{}
	mu           sync.Mutex
}

func New(cfg Config, engine Governance, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = DefaultMaxClockSkew
	}
	s := &Server{
		config: cfg,
		logger: logger,
		engine: engine,
	}
	s.commandTable = s.commands()
	if cfg.PromRegistry != nil {
		s.metrics = &apiMetrics{}
		s.metrics.init(cfg.PromRegistry)
	}
	return s
}

// Handler returns the routes of the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /health", s.handleHealth)
	s.route(mux, "GET /api/v1/config", s.handleConfig)
	s.route(mux, "GET /api/v1/treasury", s.handleTreasury)
	s.route(mux, "GET /api/v1/proposals", s.handleProposals)
	s.route(mux, "GET /api/v1/proposals/{id}", s.handleProposal)
	s.route(mux, "GET /api/v1/proposals/{id}/votes", s.handleVotes)
	s.route(mux, "GET /api/v1/proposals/{id}/votes/{voter}", s.handleVote)
	s.route(mux, "GET /api/v1/proposals/{id}/escrows/{voter}", s.handleEscrow)
	s.route(mux, "POST /api/v1/commands/{op}", s.handleCommand)
	if s.config.PromGatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.PromGatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// route registers handler and counts its responses under pattern
func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	if s.metrics == nil {
		mux.HandleFunc(pattern, handler)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		handler(rec, r)
		s.metrics.observe(pattern, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start binds the listener and serves in the background until ctx is done
// or Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	doneCh := make(chan struct{})
	s.doneCh = doneCh
	s.mu.Unlock()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.doneCh = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "component", "api", "error", err)
		}
	}()
	s.logger.Info(
		"API listener started",
		"component", "api",
		"address", ln.Addr().String(),
	)

	go func() {
		select {
		case <-ctx.Done():
		case <-doneCh:
			return
		}
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		//nolint:contextcheck
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"component", "api",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	if s.doneCh != nil {
		close(s.doneCh)
		s.doneCh = nil
	}
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server", "component", "api")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
