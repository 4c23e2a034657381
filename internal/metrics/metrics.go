// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes the engine's internal counters and gauges as
// Prometheus collectors, per spec section 6's observability surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a registered set of collectors tracking compaction, cache, and
// WAL activity. The zero value is not usable; construct with New.
type Metrics struct {
	CompactionsTotal       prometheus.Counter
	CompactionsActive      prometheus.Gauge
	CompactionBytesRead    prometheus.Counter
	CompactionBytesWritten prometheus.Counter
	FlushesTotal           prometheus.Counter

	BlockCacheHits   prometheus.Counter
	BlockCacheMisses prometheus.Counter

	WALSyncsTotal   prometheus.Counter
	WALBytesWritten prometheus.Counter

	TableCacheOpens prometheus.Counter
}

// New creates and registers a Metrics against reg. A nil reg uses
// prometheus.NewRegistry, so callers who never look at the registry still
// get working, independently-scoped collectors (tests opening many
// databases in one process would otherwise collide on the default global
// registry).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		CompactionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "compaction", Name: "total",
			Help: "Number of table compactions run (memtable flushes are counted separately).",
		}),
		CompactionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ldb", Subsystem: "compaction", Name: "active",
			Help: "Number of compactions currently running (0 or 1).",
		}),
		CompactionBytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "compaction", Name: "bytes_read",
			Help: "Bytes read from input tables during compaction.",
		}),
		CompactionBytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "compaction", Name: "bytes_written",
			Help: "Bytes written to output tables during compaction.",
		}),
		FlushesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "memtable", Name: "flushes_total",
			Help: "Number of immutable memtables flushed to level 0.",
		}),
		BlockCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "block_cache", Name: "hits_total",
			Help: "Block cache lookups served from cache.",
		}),
		BlockCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "block_cache", Name: "misses_total",
			Help: "Block cache lookups that required a disk read.",
		}),
		WALSyncsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "wal", Name: "syncs_total",
			Help: "Number of fsync calls issued against the write-ahead log.",
		}),
		WALBytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "wal", Name: "bytes_written_total",
			Help: "Bytes appended to the write-ahead log.",
		}),
		TableCacheOpens: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ldb", Subsystem: "table_cache", Name: "opens_total",
			Help: "Table files opened because they were not already cached.",
		}),
	}
}
