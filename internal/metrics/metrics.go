// Package metrics exposes Prometheus instrumentation for the risk service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScoresTotal counts scored months by bucket
	ScoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cashflow",
		Name:      "scores_total",
		Help:      "Scored feature rows by risk bucket.",
	}, []string{"bucket"})

	// SchemaErrorsTotal counts scoring requests rejected for missing features
	SchemaErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cashflow",
		Name:      "schema_errors_total",
		Help:      "Scoring requests rejected for missing features.",
	})

	// TrainingRunsTotal counts training runs by result
	TrainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cashflow",
		Name:      "training_runs_total",
		Help:      "Model training runs by result.",
	}, []string{"result"})

	// LabelPatchesTotal counts training runs whose labels were forced to two classes
	LabelPatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cashflow",
		Name:      "label_patches_total",
		Help:      "Training runs where single-class labels were patched.",
	})

	// DroppedTransactionsTotal counts ingested records dropped during coercion
	DroppedTransactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cashflow",
		Name:      "dropped_transactions_total",
		Help:      "Ingested transactions dropped for unparseable date or amount.",
	})

	// RequestDuration observes HTTP handler latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cashflow",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Handler serves the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
