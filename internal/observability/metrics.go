// Package observability wires tracing and the relay's business metrics.
//
// This file exposes Prometheus collectors for the relay pipeline itself,
// complementing the generic HTTP metrics emitted by the middleware layer:
// webhook resolution outcomes, callback delivery outcomes, and the number
// of dispatches still waiting for their webhook.
package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeMatched labels webhooks that resolved a pending dispatch.
	OutcomeMatched = "matched"
	// OutcomeUnmatched labels webhooks for channels with no pending entry.
	OutcomeUnmatched = "unmatched"
	// OutcomeDelivered labels callback deliveries accepted downstream.
	OutcomeDelivered = "delivered"
	// OutcomeFailed labels callback deliveries that errored out.
	OutcomeFailed = "failed"
)

var (
	// WebhooksTotal counts verified webhooks by resolution outcome.
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhooks_total",
			Help: "Total number of verified provider webhooks by resolution outcome.",
		},
		[]string{"outcome"},
	)

	// ForwardsTotal counts callback forwarding attempts by outcome.
	ForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_forwards_total",
			Help: "Total number of downstream callback deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	// pendingLenFn backs the relay_pending_requests gauge. Stored atomically
	// so the gauge can be registered once at init while the source is wired
	// later during router setup (and re-wired by tests).
	pendingLenFn atomic.Value
)

func init() {
	pendingLenFn.Store(func() float64 { return 0 })
	prometheus.MustRegister(WebhooksTotal, ForwardsTotal)
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_pending_requests",
			Help: "Number of dispatched requests still waiting for their webhook.",
		},
		func() float64 { return pendingLenFn.Load().(func() float64)() },
	))
}

// RegisterPendingGauge points relay_pending_requests at fn, typically the
// correlation store's Len.
func RegisterPendingGauge(fn func() float64) {
	pendingLenFn.Store(fn)
}
