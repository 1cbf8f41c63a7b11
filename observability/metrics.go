package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Tollgate, backed by any go-utils
// MetricFactory.
type Metrics struct {
	RequestsForwardedTotal gu.Counter
	ForwardLatency         gu.Histogram
	PaymentChallengesTotal gu.Counter
	PaymentsSettledTotal   gu.Counter
	PaymentRejectionsTotal gu.Counter
	RateLimitedTotal       gu.Counter
}

// NewMetrics creates Tollgate metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		RequestsForwardedTotal: factory.Counter("tollgate_requests_forwarded_total"),
		ForwardLatency:         factory.Histogram("tollgate_forward_latency_seconds"),
		PaymentChallengesTotal: factory.Counter("tollgate_payment_challenges_total"),
		PaymentsSettledTotal:   factory.Counter("tollgate_payments_settled_total"),
		PaymentRejectionsTotal: factory.Counter("tollgate_payment_rejections_total"),
		RateLimitedTotal:       factory.Counter("tollgate_rate_limited_total"),
	}
}

// RecordForward records one proxied request with its outcome and latency.
func (m *Metrics) RecordForward(status string, latencySeconds float64) {
	m.RequestsForwardedTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.ForwardLatency.Observe(latencySeconds)
}
