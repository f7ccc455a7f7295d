package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher loop outcomes.
type OutboxMetrics struct {
	published    prometheus.Counter
	failed       prometheus.Counter
	deadLettered prometheus.Counter
	batchSeconds prometheus.Histogram
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published to Pub/Sub.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed.",
	})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_dead_lettered_total",
		Help: "Outbox events moved to the DLQ.",
	})
	batchSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(published, failed, deadLettered, batchSeconds)
	return &OutboxMetrics{
		published:    published,
		failed:       failed,
		deadLettered: deadLettered,
		batchSeconds: batchSeconds,
	}
}

// IncPublished increments the published event counter.
func (m *OutboxMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncFailed increments the failed publish counter.
func (m *OutboxMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// IncDeadLettered increments the DLQ counter.
func (m *OutboxMetrics) IncDeadLettered() {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.Inc()
}

// ObserveBatch records the duration of a publish batch.
func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batchSeconds == nil {
		return
	}
	m.batchSeconds.Observe(duration.Seconds())
}
