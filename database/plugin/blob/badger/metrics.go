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

package badger

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const badgerMetricNamePrefix = "database_blob_"

type blobMetrics struct {
	reads     prometheus.Counter
	writes    prometheus.Counter
	commits   prometheus.Counter
	conflicts prometheus.Counter
}

// initMetrics always creates the counters so call sites never check for a
// registry. They are only exported when one is configured
func (d *BlobStoreBadger) initMetrics() error {
	d.metrics.reads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "reads_total",
			Help: "Total number of blob key reads",
		},
	)
	d.metrics.writes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "writes_total",
			Help: "Total number of blob key writes and deletes",
		},
	)
	d.metrics.commits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "commits_total",
			Help: "Total number of committed read-write blob transactions",
		},
	)
	d.metrics.conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "conflicts_total",
			Help: "Total number of blob transactions rejected by conflict detection",
		},
	)
	if d.promRegistry == nil {
		return nil
	}
	lsmSize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "lsm_size_bytes",
			Help: "Size of the badger LSM tree",
		},
		func() float64 {
			lsm, _ := d.db.Size()
			return float64(lsm)
		},
	)
	vlogSize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "vlog_size_bytes",
			Help: "Size of the badger value log",
		},
		func() float64 {
			_, vlog := d.db.Size()
			return float64(vlog)
		},
	)
	for _, collector := range []prometheus.Collector{
		d.metrics.reads,
		d.metrics.writes,
		d.metrics.commits,
		d.metrics.conflicts,
		lsmSize,
		vlogSize,
	} {
		if err := d.promRegistry.Register(collector); err != nil {
			return fmt.Errorf("failed to register blob metrics: %w", err)
		}
	}
	return nil
}
