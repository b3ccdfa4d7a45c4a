// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics holds bitidx's optional observability surface: the
// counters and latency samples an Index reports when Options.Metrics is
// set. It generalizes the plain-struct-of-counters shape of pebble's own
// top-level metrics.go into Prometheus collectors, plus an HdrHistogram
// latency recorder for percentile queries the Prometheus client's own
// histogram type doesn't give you cheaply.
package metrics

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a set of counters and latency recorders for one Index. The
// zero value is not ready for use; call New.
type Metrics struct {
	InsertsTotal       prometheus.Counter
	QueriesTotal       prometheus.Counter
	ChunksFlushedTotal prometheus.Counter
	FormatErrorsTotal  prometheus.Counter
	StorageErrorsTotal prometheus.Counter

	mu            sync.Mutex
	pushValueHist *hdrhistogram.Histogram
	queryHist     *hdrhistogram.Histogram
}

// New returns a Metrics with freshly constructed, unregistered Prometheus
// collectors and latency histograms tracking 1ns..10s at 3 significant
// figures, the same span pebble's own benchmarking harness uses
// HdrHistogram-go for.
func New() *Metrics {
	return &Metrics{
		InsertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitidx_inserts_total",
			Help: "Number of values successfully pushed into the index.",
		}),
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitidx_queries_total",
			Help: "Number of equality queries run against the index.",
		}),
		ChunksFlushedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitidx_chunks_flushed_total",
			Help: "Number of chunks flushed to storage.",
		}),
		FormatErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitidx_format_errors_total",
			Help: "Number of corrupt-chunk/bitmap format errors encountered.",
		}),
		StorageErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitidx_storage_errors_total",
			Help: "Number of underlying I/O failures encountered.",
		}),
		pushValueHist: hdrhistogram.New(1, 10_000_000_000, 3),
		queryHist:     hdrhistogram.New(1, 10_000_000_000, 3),
	}
}

// Collectors returns every Prometheus collector so callers can register
// them with a registry in one call: registry.MustRegister(m.Collectors()...).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.InsertsTotal, m.QueriesTotal, m.ChunksFlushedTotal,
		m.FormatErrorsTotal, m.StorageErrorsTotal,
	}
}

// RecordPushValue records how long one PushValue call took, in
// nanoseconds.
func (m *Metrics) RecordPushValue(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.pushValueHist.RecordValue(nanos)
}

// RecordQuery records how long one Query call took, in nanoseconds.
func (m *Metrics) RecordQuery(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.queryHist.RecordValue(nanos)
}

// PushValueLatencyPercentile returns the requested percentile (0-100) of
// recorded PushValue latencies, in nanoseconds.
func (m *Metrics) PushValueLatencyPercentile(p float64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushValueHist.ValueAtQuantile(p)
}

// QueryLatencyPercentile returns the requested percentile (0-100) of
// recorded Query latencies, in nanoseconds.
func (m *Metrics) QueryLatencyPercentile(p float64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryHist.ValueAtQuantile(p)
}
