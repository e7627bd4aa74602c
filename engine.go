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

// Package vedao runs a vote-escrow governance engine over a persistent
// record store and serves it over HTTP
package vedao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/vedao/api"
	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/event"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"go.opentelemetry.io/otel/trace"
)

const genesisMessage = "vedao-genesis"

type Engine struct {
	config        Config
	eventBus      *event.EventBus
	db            *database.Database
	ledger        ledger.Ledger
	governance    *governance.Engine
	apiServer     *api.Server
	shutdownFuncs []func(context.Context) error
	ready         chan struct{}
	done          chan struct{}
	mu            sync.Mutex
	readyOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.verifier == nil {
		if cfg.apiTrustCallerHeader {
			cfg.verifier = identity.StaticVerifier{}
		} else {
			cfg.verifier = identity.NewEd25519Verifier(cfg.logger)
		}
	}
	e := &Engine{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	return e, nil
}

// Ready is closed once Run has started every component
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// EventBus returns the bus the governance engine publishes domain events on
func (e *Engine) EventBus() *event.EventBus {
	return e.eventBus
}

// Governance returns the governance engine, or nil before Run has built it
func (e *Engine) Governance() *governance.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.governance
}

// Ledger returns the token ledger in use, or nil before Run has built it
func (e *Engine) Ledger() ledger.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger
}

// Run starts every component and blocks until ctx is done or Stop is called
func (e *Engine) Run(ctx context.Context) error {
	if err := e.start(ctx); err != nil {
		if stopErr := e.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return err
	}
	e.readyOnce.Do(func() { close(e.ready) })
	select {
	case <-ctx.Done():
		return e.Stop()
	case <-e.done:
		return nil
	}
}

func (e *Engine) start(ctx context.Context) error {
	logger := e.config.logger
	// Configure tracing
	var tracerProvider trace.TracerProvider
	if e.config.tracing {
		tp, err := e.setupTracing()
		if err != nil {
			return err
		}
		tracerProvider = tp
	}
	// Load database
	dbNeedsRecovery := false
	db, err := database.New(&database.Config{
		DataDir:        e.config.dataDir,
		InMemory:       e.config.dataDir == "",
		BlobPlugin:     e.config.blobPlugin,
		MetadataPlugin: e.config.metadataPlugin,
		Logger:         logger,
		PromRegistry:   e.config.promRegistry,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	e.mu.Lock()
	e.db = db
	e.mu.Unlock()
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Warn(
			"database initialization error, needs recovery",
			"error", err,
		)
		dbNeedsRecovery = true
	}
	// Load ledger
	l := e.config.ledger
	if l == nil {
		asset := DefaultLedgerAsset
		if e.config.genesis != nil {
			asset = e.config.genesis.Params.GovernanceAsset
		}
		l = ledger.NewStoreLedger(
			db,
			asset,
			ledger.WithLogger(logger),
			ledger.WithPromRegistry(e.config.promRegistry),
		)
	}
	// Load governance engine
	opts := []governance.EngineOptionFunc{
		governance.WithLogger(logger),
		governance.WithEventBus(e.eventBus),
		governance.WithPromRegistry(e.config.promRegistry),
	}
	if e.config.clock != nil {
		opts = append(opts, governance.WithClock(e.config.clock))
	}
	if tracerProvider != nil {
		opts = append(opts, governance.WithTracerProvider(tracerProvider))
	}
	gov, err := governance.NewEngine(db, l, e.config.verifier, opts...)
	if err != nil {
		return fmt.Errorf("failed to load governance engine: %w", err)
	}
	e.mu.Lock()
	e.ledger = l
	e.governance = gov
	e.mu.Unlock()
	if err := e.mintGenesisBalances(ctx, gov, l); err != nil {
		return err
	}
	// Run index recovery if needed
	if dbNeedsRecovery || db.IndexStale() {
		logger.Info("rebuilding governance index", "component", "vedao")
		if err := gov.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	if err := e.initGenesis(ctx, gov); err != nil {
		return err
	}
	// Start API
	if e.config.apiListenAddress != "" {
		apiServer := api.New(
			api.Config{
				PromRegistry:      e.config.promRegistry,
				PromGatherer:      e.config.promGatherer,
				ListenAddress:     e.config.apiListenAddress,
				MaxClockSkew:      e.config.apiMaxClockSkew,
				TrustCallerHeader: e.config.apiTrustCallerHeader,
			},
			gov,
			logger,
		)
		if err := apiServer.Start(ctx); err != nil {
			return err
		}
		e.mu.Lock()
		e.apiServer = apiServer
		e.mu.Unlock()
	}
	return nil
}

// mintGenesisBalances mints the genesis balances into a fresh store. A
// ledger kept in the record store records the mint and never repeats it.
// Other ledgers are only minted before the DAO is initialized
func (e *Engine) mintGenesisBalances(
	ctx context.Context,
	gov *governance.Engine,
	l ledger.Ledger,
) error {
	if e.config.genesis == nil || len(e.config.genesis.Balances) == 0 {
		return nil
	}
	balances := e.config.genesis.Balances
	if genesisMinter, ok := l.(interface {
		MintGenesis(balances map[string]uint64) (bool, error)
	}); ok {
		minted, err := genesisMinter.MintGenesis(balances)
		if err != nil {
			return fmt.Errorf("failed to mint genesis balances: %w", err)
		}
		if !minted {
			e.config.logger.Debug(
				"genesis balances already minted",
				"component", "vedao",
			)
		}
		return nil
	}
	minter, ok := l.(interface {
		Mint(account string, amount uint64) error
	})
	if !ok {
		e.config.logger.Warn(
			"ledger does not support minting, ignoring genesis balances",
			"component", "vedao",
		)
		return nil
	}
	if _, err := gov.GetConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, governance.ErrNotInitialized) {
		return fmt.Errorf("failed to load DAO config: %w", err)
	}
	for account, amount := range balances {
		if err := minter.Mint(account, amount); err != nil {
			return fmt.Errorf("failed to mint genesis balance for %s: %w", account, err)
		}
	}
	return nil
}

// initGenesis initializes the DAO when a genesis is configured and the
// store has no config yet
func (e *Engine) initGenesis(ctx context.Context, gov *governance.Engine) error {
	genesis := e.config.genesis
	if genesis == nil {
		return nil
	}
	if _, err := gov.GetConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, governance.ErrNotInitialized) {
		return fmt.Errorf("failed to load DAO config: %w", err)
	}
	authority := genesis.authority()
	initCtx := identity.WithCaller(ctx, authority)
	if genesis.AuthorityKey != nil {
		initCtx = identity.WithProof(
			initCtx,
			identity.Sign(genesis.AuthorityKey, []byte(genesisMessage)),
		)
	}
	cfg, err := gov.Initialize(initCtx, authority, genesis.Params)
	if err != nil {
		return fmt.Errorf("failed to initialize DAO from genesis: %w", err)
	}
	e.config.logger.Info(
		"initialized DAO from genesis",
		"component", "vedao",
		"authority", cfg.Authority,
		"asset", cfg.GovernanceAsset,
	)
	return nil
}

func (e *Engine) Stop() error {
	var err error
	e.shutdownOnce.Do(func() {
		err = e.shutdown()
	})
	return err
}

func (e *Engine) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.ShutdownTimeout())
	defer cancel()

	logger := e.config.logger
	e.mu.Lock()
	apiServer := e.apiServer
	db := e.db
	e.mu.Unlock()

	var err error

	logger.Debug("starting graceful shutdown", "component", "vedao")

	// Phase 1: Stop accepting new work
	logger.Debug("shutdown phase 1: stopping new work", "component", "vedao")
	if apiServer != nil {
		if stopErr := apiServer.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("API shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain event delivery
	logger.Debug("shutdown phase 2: draining events", "component", "vedao")
	if e.eventBus != nil {
		e.eventBus.Stop()
	}

	// Phase 3: Close database
	logger.Debug("shutdown phase 3: closing database", "component", "vedao")
	if db != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	logger.Debug("shutdown phase 4: cleanup resources", "component", "vedao")
	for _, fn := range e.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	e.shutdownFuncs = nil

	logger.Debug("graceful shutdown complete", "component", "vedao")
	close(e.done)
	return err
}
