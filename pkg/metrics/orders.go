package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order workflow outcomes.
type OrderMetrics struct {
	created           prometheus.Counter
	decided           *prometheus.CounterVec
	createDuration    prometheus.Histogram
	insufficientStock prometheus.Counter
	idempotentReplays prometheus.Counter
}

// NewOrderMetrics registers the order workflow metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created in pending state.",
	})
	decided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_decided_total",
		Help: "Order decisions by terminal status.",
	}, []string{"status"})
	createDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_create_duration_seconds",
		Help:    "Duration of order creation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	insufficientStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_insufficient_stock_total",
		Help: "Order creations rejected for insufficient stock.",
	})
	idempotentReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_idempotent_replays_total",
		Help: "Order creations answered from a prior idempotency outcome.",
	})
	reg.MustRegister(created, decided, createDuration, insufficientStock, idempotentReplays)
	return &OrderMetrics{
		created:           created,
		decided:           decided,
		createDuration:    createDuration,
		insufficientStock: insufficientStock,
		idempotentReplays: idempotentReplays,
	}
}

// IncCreated increments the created order counter.
func (m *OrderMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// IncDecided increments the decision counter for the given terminal status.
func (m *OrderMetrics) IncDecided(status string) {
	if m == nil || m.decided == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.decided.WithLabelValues(status).Inc()
}

// ObserveCreateDuration records how long order creation took.
func (m *OrderMetrics) ObserveCreateDuration(duration time.Duration) {
	if m == nil || m.createDuration == nil {
		return
	}
	m.createDuration.Observe(duration.Seconds())
}

// IncInsufficientStock increments the insufficient stock counter.
func (m *OrderMetrics) IncInsufficientStock() {
	if m == nil || m.insufficientStock == nil {
		return
	}
	m.insufficientStock.Inc()
}

// IncIdempotentReplay increments the replayed outcome counter.
func (m *OrderMetrics) IncIdempotentReplay() {
	if m == nil || m.idempotentReplays == nil {
		return
	}
	m.idempotentReplays.Inc()
}
