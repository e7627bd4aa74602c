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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/vedao"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options converts the process config into engine options
func Options(
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
) ([]vedao.ConfigOptionFunc, error) {
	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	maxClockSkew, err := time.ParseDuration(cfg.MaxClockSkew)
	if err != nil {
		return nil, fmt.Errorf("invalid max clock skew: %w", err)
	}
	opts := []vedao.ConfigOptionFunc{
		vedao.WithLogger(logger),
		vedao.WithDatabasePath(cfg.DatabasePath),
		vedao.WithBlobPlugin(cfg.BlobPlugin),
		vedao.WithMetadataPlugin(cfg.MetadataPlugin),
		vedao.WithPrometheusRegistry(registry),
		vedao.WithTracing(cfg.Tracing),
		vedao.WithTracingStdout(cfg.TracingStdout),
		vedao.WithShutdownTimeout(shutdownTimeout),
		vedao.WithApiMaxClockSkew(maxClockSkew),
		vedao.WithApiTrustCallerHeader(cfg.TrustCallerHeader),
	}
	if cfg.ApiPort > 0 {
		opts = append(
			opts,
			vedao.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
		)
	}
	if cfg.Genesis.Enabled() {
		genesis, err := loadGenesis(cfg.Genesis)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vedao.WithGenesis(genesis))
	}
	return opts, nil
}

func loadGenesis(cfg config.GenesisConfig) (*vedao.Genesis, error) {
	params, err := cfg.InitParams()
	if err != nil {
		return nil, err
	}
	genesis := &vedao.Genesis{
		Params:    params,
		Authority: identity.Identity(cfg.Authority),
		Balances:  cfg.Balances,
	}
	if cfg.AuthorityKeyFile != "" {
		skey, err := identity.LoadSigningKey(cfg.AuthorityKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load genesis authority key: %w", err)
		}
		genesis.AuthorityKey = skey
	}
	return genesis, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := Options(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	vcfg := vedao.NewConfig(opts...)
	v, err := vedao.New(vcfg)
	if err != nil {
		return err
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	}
	shutdownMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			vcfg.ShutdownTimeout(),
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	defer shutdownMetrics()

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run engine in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- v.Run(signalCtx)
	}()

	select {
	case <-v.Ready():
		logger.Info("governance engine started", "component", "node")
	case err := <-errChan:
		logger.Error("engine error", "error", err)
		if stopErr := v.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error", stopErr,
			)
		}
		return err
	}

	// Run stops the engine itself once the signal context is done
	err = <-errChan
	if err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
