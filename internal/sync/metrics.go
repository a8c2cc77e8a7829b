package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_batches_total",
			Help: "Index sync batches by entity kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	syncDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_documents_total",
			Help: "Documents written to the search index by entity kind.",
		},
		[]string{"kind"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchsync_duration_seconds",
			Help:    "Duration of one orchestrator invocation.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"kind", "result"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_compensations_total",
			Help: "Batch rollbacks by entity kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	rebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_rebuilds_total",
			Help: "Full index rebuilds by outcome.",
		},
		[]string{"result"},
	)

	reconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchsync_reconcile_runs_total",
			Help: "Reconciliation job runs by outcome.",
		},
		[]string{"result"},
	)
)
