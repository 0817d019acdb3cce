package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentVerifyRequests,
		PaymentVerifyDuration,
		PaymentCancelRequests,
		PaymentCancelDuration,
		ForcedCancelTotal,
		TierDowngradeTotal,
	)
}

var (
	// Count of verify calls grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): unauthorized|bad_request|config|gateway|unknown
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of /api/v1/payment/verify calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of verify handler grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of /api/v1/payment/verify handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Count of cancel calls grouped by result and bounded reason.
	// reason (fail only): unauthorized|bad_request|config|gateway|ledger|unknown
	PaymentCancelRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_cancel_requests_total",
			Help: "Count of /api/v1/payment/cancel calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	PaymentCancelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_cancel_duration_seconds",
			Help:    "Duration of /api/v1/payment/cancel handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Forced cancellations that synthesized success after a gateway failure,
	// grouped by what failed upstream: gateway|no_identifier.
	ForcedCancelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_forced_cancel_total",
			Help: "Forced cancellations that proceeded despite gateway outcome.",
		},
		[]string{"cause"},
	)

	// Entitlement downgrades applied, grouped by origin: request|reconciler.
	TierDowngradeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_tier_downgrade_total",
			Help: "Profile tier downgrades to free after last active subscription ended.",
		},
		[]string{"origin"},
	)
)
