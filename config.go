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

package vedao

import (
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultLedgerAsset names the asset of the record store ledger when no
	// genesis is configured
	DefaultLedgerAsset = "GOV"
)

type Config struct {
	promRegistry         prometheus.Registerer
	promGatherer         prometheus.Gatherer
	logger               *slog.Logger
	ledger               ledger.Ledger
	verifier             identity.Verifier
	clock                governance.Clock
	genesis              *Genesis
	dataDir              string
	blobPlugin           string
	metadataPlugin       string
	apiListenAddress     string
	apiTrustCallerHeader bool
	apiMaxClockSkew      time.Duration
	tracing              bool
	tracingStdout        bool
	shutdownTimeout      time.Duration
}

// Genesis describes the DAO created on an empty store
type Genesis struct {
	Params governance.InitParams
	// Authority signs the initialization. It is derived from AuthorityKey
	// when that is set
	Authority    identity.Identity
	AuthorityKey ed25519.PrivateKey
	// Balances are minted once into a fresh store when the ledger supports
	// minting
	Balances map[string]uint64
}

func (g *Genesis) authority() identity.Identity {
	if g.AuthorityKey != nil {
		return identity.KeyHash(g.AuthorityKey.Public().(ed25519.PublicKey))
	}
	return g.Authority
}

func (c *Config) validate() error {
	if c.shutdownTimeout < 0 {
		return errors.New("shutdown timeout must not be negative")
	}
	if c.apiMaxClockSkew < 0 {
		return errors.New("API clock skew must not be negative")
	}
	if c.apiTrustCallerHeader && c.apiListenAddress == "" {
		return errors.New("trusted caller header requires an API listen address")
	}
	if c.genesis != nil {
		if c.genesis.authority() == "" {
			return errors.New("genesis requires an authority or authority key")
		}
		if c.genesis.Params.GovernanceAsset == "" {
			return errors.New("genesis requires a governance asset")
		}
		if l, ok := c.ledger.(interface{ Asset() string }); ok &&
			l.Asset() != c.genesis.Params.GovernanceAsset {
			return errors.New("genesis governance asset does not match the ledger asset")
		}
	}
	return nil
}

// ShutdownTimeout returns the effective graceful shutdown timeout
func (c Config) ShutdownTimeout() time.Duration {
	if c.shutdownTimeout > 0 {
		return c.shutdownTimeout
	}
	return DefaultShutdownTimeout
}

// ConfigOptionFunc is a type that represents functions that modify the engine config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new vedao config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithPrometheusGatherer exposes the gatherer on the API server's /metrics route
func WithPrometheusGatherer(gatherer prometheus.Gatherer) ConfigOptionFunc {
	return func(c *Config) {
		c.promGatherer = gatherer
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithLedger specifies the token ledger. The default keeps balances of the genesis asset in the record store
func WithLedger(l ledger.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.ledger = l
	}
}

// WithIdentity specifies the verifier used to authenticate callers. The default checks ed25519 proofs
func WithIdentity(verifier identity.Verifier) ConfigOptionFunc {
	return func(c *Config) {
		c.verifier = verifier
	}
}

// WithClock specifies the governance time source. The default is the system clock
func WithClock(clock governance.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithApiListenAddress specifies the listen address for the HTTP API. An empty string disables the server
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithApiTrustCallerHeader makes the API accept the caller identity header without a signature.
// Callers are then verified with identity.StaticVerifier unless WithIdentity says otherwise
func WithApiTrustCallerHeader(trust bool) ConfigOptionFunc {
	return func(c *Config) {
		c.apiTrustCallerHeader = trust
	}
}

// WithApiMaxClockSkew bounds the age of signed API commands. The default is 5 minutes
func WithApiMaxClockSkew(skew time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.apiMaxClockSkew = skew
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithGenesis initializes the DAO from genesis when the store is empty
func WithGenesis(genesis *Genesis) ConfigOptionFunc {
	return func(c *Config) {
		c.genesis = genesis
	}
}
