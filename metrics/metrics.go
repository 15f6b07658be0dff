// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics collects Prometheus metrics of query runs and exports them
// in the text file format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stockparfait/errors"

	"github.com/stockparfait/chainquery/query"
)

// Metrics of query runs in their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	runsTotal      prometheus.Counter
	failedTotal    prometheus.Counter
	pagesFetched   prometheus.Counter
	pagesDropped   prometheus.Counter
	rowsTotal      prometheus.Counter
	truncatedTotal prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	runDurationMs  prometheus.Histogram
}

// New creates and registers all the metrics.
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainquery_" + name,
			Help: help,
		})
	}
	m := &Metrics{
		Registry:       prometheus.NewRegistry(),
		runsTotal:      counter("runs_total", "Total number of query runs."),
		failedTotal:    counter("failed_runs_total", "Total number of failed query runs."),
		pagesFetched:   counter("pages_fetched_total", "Total number of fetched result pages."),
		pagesDropped:   counter("pages_dropped_total", "Total number of pages dropped due to conflicting columns."),
		rowsTotal:      counter("rows_total", "Total number of assembled result rows."),
		truncatedTotal: counter("truncated_runs_total", "Total number of runs stopped at the page limit."),
		cacheHits:      counter("cache_hits_total", "Total number of results served from the cache."),
		cacheMisses:    counter("cache_misses_total", "Total number of results not found in the cache."),
		runDurationMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainquery_run_duration_ms",
			Help:    "Query run latency in milliseconds, including polling for results.",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000, 1200000},
		}),
	}
	m.Registry.MustRegister(
		m.runsTotal,
		m.failedTotal,
		m.pagesFetched,
		m.pagesDropped,
		m.rowsTotal,
		m.truncatedTotal,
		m.cacheHits,
		m.cacheMisses,
		m.runDurationMs,
	)
	return m
}

// ObserveRun records a successful run. Cached results count only as cache
// hits.
func (m *Metrics) ObserveRun(res *query.Result, elapsed time.Duration) {
	if res.Cached {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
	m.runsTotal.Inc()
	m.pagesFetched.Add(float64(res.Stats.PagesFetched))
	m.pagesDropped.Add(float64(res.Stats.PagesDropped))
	m.rowsTotal.Add(float64(res.Stats.Rows))
	if res.Stats.Truncated {
		m.truncatedTotal.Inc()
	}
	m.runDurationMs.Observe(float64(elapsed.Milliseconds()))
}

// ObserveFailure records a failed run.
func (m *Metrics) ObserveFailure(elapsed time.Duration) {
	m.cacheMisses.Inc()
	m.runsTotal.Inc()
	m.failedTotal.Inc()
	m.runDurationMs.Observe(float64(elapsed.Milliseconds()))
}

// WriteFile exports all the metrics to a file in the Prometheus text format,
// e.g. for the node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.Annotate(err, "failed to write metrics to '%s'", path)
	}
	return nil
}
