// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bpowers/crudfile/internal/record"
)

const (
	opWrite  = "write"
	opRead   = "read"
	opUpdate = "update"
	opDelete = "delete"

	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

type storeMetrics struct {
	reg        prometheus.Registerer
	collectors []prometheus.Collector

	ops     *prometheus.CounterVec
	hops    prometheus.Histogram
	visited prometheus.Histogram
	live    prometheus.Gauge
	bytes   prometheus.Counter
}

func newStoreMetrics(reg prometheus.Registerer) (*storeMetrics, error) {
	m := &storeMetrics{
		reg: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crudfile_operations_total",
			Help: "Store operations by kind and result",
		}, []string{"op", "result"}),
		hops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crudfile_resolve_hops",
			Help:    "Superseded records followed to reach the current version of an id",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		visited: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crudfile_resolve_headers_visited",
			Help:    "Record headers decoded per lookup",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crudfile_live_records",
			Help: "Records that are neither superseded nor deleted",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crudfile_appended_bytes_total",
			Help: "Bytes appended to the store file, headers included",
		}),
	}

	for _, c := range []prometheus.Collector{m.ops, m.hops, m.visited, m.live, m.bytes} {
		if err := reg.Register(c); err != nil {
			m.unregister()
			return nil, err
		}
		m.collectors = append(m.collectors, c)
	}

	return m, nil
}

func (m *storeMetrics) unregister() {
	for _, c := range m.collectors {
		m.reg.Unregister(c)
	}
	m.collectors = nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	default:
		return resultError
	}
}

// The observe helpers are no-ops on a DB opened without WithRegisterer.

func (db *DB) observeOp(op string, err error) {
	if db.metrics == nil {
		return
	}
	db.metrics.ops.WithLabelValues(op, resultOf(err)).Inc()
}

func (db *DB) observeResolve(hops, visited int) {
	if db.metrics == nil {
		return
	}
	db.metrics.hops.Observe(float64(hops))
	db.metrics.visited.Observe(float64(visited))
}

func (db *DB) observeAppend(payloadLen int) {
	if db.metrics == nil {
		return
	}
	db.metrics.bytes.Add(float64(record.HeaderSize + payloadLen))
}

func (db *DB) observeLive(n uint32) {
	if db.metrics == nil {
		return
	}
	db.metrics.live.Set(float64(n))
}
