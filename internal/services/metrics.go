package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the export pipeline.
type Metrics struct {
	ExportsTotal     *prometheus.CounterVec
	ImagesEmbedded   prometheus.Counter
	ImagesAbsent     prometheus.Counter
	ExportDuration   prometheus.Histogram
	RecordsPerExport prometheus.Histogram
}

// NewMetrics registers the export metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptexport",
			Name:      "exports_total",
			Help:      "Number of export requests by outcome.",
		}, []string{"outcome"}),
		ImagesEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "receiptexport",
			Name:      "images_embedded_total",
			Help:      "Number of receipt images embedded into exports.",
		}),
		ImagesAbsent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "receiptexport",
			Name:      "images_absent_total",
			Help:      "Number of declared receipt images that could not be fetched.",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "receiptexport",
			Name:      "export_duration_seconds",
			Help:      "Time spent generating one export document.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		RecordsPerExport: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "receiptexport",
			Name:      "records_per_export",
			Help:      "Batch sizes of accepted export requests.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}
}
