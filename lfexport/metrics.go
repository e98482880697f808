package lfexport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the export chain's own instrumentation. A nil registry
// yields working but uncollected instruments, so callers never have
// to nil-check.
type Metrics struct {
	ExportBatches   prometheus.Counter
	ExportFailures  prometheus.Counter
	FallbackBatches prometheus.Counter
	DroppedRecords  prometheus.Counter
	QueueLength     prometheus.Gauge
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	var factory promauto.Factory
	if reg != nil {
		factory = promauto.With(reg)
	} else {
		factory = promauto.With(nil)
	}
	return &Metrics{
		ExportBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "logfire_export_batches_total",
			Help: "Batches delivered to the backend.",
		}),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "logfire_export_failures_total",
			Help: "Batches the primary exporter failed to deliver.",
		}),
		FallbackBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "logfire_fallback_batches_total",
			Help: "Batches written to the fallback store.",
		}),
		DroppedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "logfire_dropped_records_total",
			Help: "Records lost to queue overflow, post-shutdown emission, or fallback write failure.",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logfire_queue_length",
			Help: "Finished records waiting in the batch queue.",
		}),
	}
}
