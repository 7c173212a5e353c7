// Package metrics exposes the process's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts finished sync ticks by result ("ok" or "error").
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbsync_ticks_total",
		Help: "Finished sync ticks by result.",
	}, []string{"result"})

	// TickDuration observes the wall time of one sync tick.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kbsync_tick_duration_seconds",
		Help:    "Wall time of one sync tick.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// ArticlesHarvested tracks how many articles the last harvest returned.
	ArticlesHarvested = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kbsync_articles_harvested",
		Help: "Articles returned by the most recent harvest.",
	})

	// ArticlesSynced counts articles dispatched to the artifact store,
	// labeled by operation ("create", "replace" or "delete").
	ArticlesSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbsync_articles_synced_total",
		Help: "Articles dispatched to the artifact store by operation.",
	}, []string{"op"})

	// UploadFailures counts per-file upload failures. Failed files are
	// retried on the next tick.
	UploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbsync_upload_failures_total",
		Help: "Per-file upload failures.",
	})

	// LockEntries tracks the size of the last committed content lock.
	LockEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kbsync_lock_entries",
		Help: "Entries in the most recently committed content lock.",
	})
)
