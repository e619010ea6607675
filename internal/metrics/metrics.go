package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery-related Prometheus metrics. These are defined in a standalone
// package to avoid import cycles between the outbox worker and the admin
// HTTP server.

var (
	SendAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_send_attempts_total",
		Help: "Delivery attempts by provider and outcome",
	}, []string{"provider", "status"})

	SendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_send_duration_ms",
		Help:    "Provider send latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"provider"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_breaker_state",
		Help: "Circuit breaker state by provider (0=closed, 1=half-open, 2=open)",
	}, []string{"provider"})

	QuotaUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_quota_used",
		Help: "Recipients counted against the provider quota window",
	}, []string{"provider", "window"})

	OutboxDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_outbox_depth",
		Help: "Outbox queue depth by status",
	}, []string{"status"})

	OutboxProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_outbox_processed_total",
		Help: "Outbox messages processed by outcome (sent, retried, failed)",
	}, []string{"outcome"})
)

// Register registers the delivery metrics on the given registry (or the
// default if nil). Re-registration is tolerated so tests can call it freely.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		SendAttempts,
		SendDuration,
		BreakerState,
		QuotaUsed,
		OutboxDepth,
		OutboxProcessed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
