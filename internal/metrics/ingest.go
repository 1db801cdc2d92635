package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "ingest_items_total",
			Help:      "Total images processed by the ingestion pipeline",
		},
		[]string{"namespace", "status"}, // status: embedded / failed
	)

	IngestBatchesFlushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "ingest_batches_flushed_total",
			Help:      "Total record batches upserted into the vector index",
		},
		[]string{"namespace"},
	)

	IngestBatchFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardex",
			Name:      "ingest_batch_flush_duration_seconds",
			Help:      "Duration of one batch upsert into the vector index",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"namespace"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestItemsTotal)
	prometheus.MustRegister(IngestBatchesFlushedTotal)
	prometheus.MustRegister(IngestBatchFlushDuration)
	ingestMetricsRegistered = true
}
