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

package ledger

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerOptions struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
}

type LedgerOptionFunc func(*ledgerOptions)

func WithLogger(logger *slog.Logger) LedgerOptionFunc {
	return func(o *ledgerOptions) {
		o.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) LedgerOptionFunc {
	return func(o *ledgerOptions) {
		o.promRegistry = registry
	}
}

func newOptions(opts []LedgerOptionFunc) ledgerOptions {
	var o ledgerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return o
}

func (o ledgerOptions) metrics() *ledgerMetrics {
	if o.promRegistry == nil {
		return nil
	}
	return newLedgerMetrics(o.promRegistry)
}
