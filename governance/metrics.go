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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	operations      *prometheus.CounterVec
	proposals       *prometheus.GaugeVec
	treasuryBalance prometheus.Gauge
	escrowedTotal   prometheus.Gauge
	pendingChange   prometheus.Gauge
	paused          prometheus.Gauge
}

func (m *engineMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.operations = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vedao_governance_operations_total",
			Help: "governance operations by operation and result kind",
		},
		[]string{"op", "result"},
	)
	m.proposals = promautoFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vedao_governance_proposals",
			Help: "proposals by status",
		},
		[]string{"status"},
	)
	m.treasuryBalance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "vedao_governance_treasury_balance",
		Help: "treasury account balance",
	})
	m.escrowedTotal = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "vedao_governance_escrowed_total",
		Help: "balance held in the vote vault",
	})
	m.pendingChange = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "vedao_governance_pending_config_change",
		Help: "whether a config change is queued (0 or 1)",
	})
	m.paused = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "vedao_governance_paused",
		Help: "whether the DAO is paused (0 or 1)",
	})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
