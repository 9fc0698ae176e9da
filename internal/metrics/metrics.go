package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// VendorCalls counts voucher API calls by operation and outcome (ok, retryable, fatal).
	VendorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_vendor_calls_total",
			Help: "Voucher vendor API calls",
		},
		[]string{"operation", "outcome"},
	)

	VendorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_vendor_call_duration_seconds",
			Help:    "Duration of voucher vendor API attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DispatchRecipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_dispatch_recipients_total",
			Help: "Recipients processed by dispatch, by result",
		},
		[]string{"result"},
	)

	// ReconcileUpdates counts reconciler outcomes per pass (carrier, vendor).
	ReconcileUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_reconcile_items_total",
			Help: "Items seen by the status reconciler",
		},
		[]string{"pass", "result"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_scheduler_runs_total",
			Help: "Periodic job executions",
		},
		[]string{"job", "status"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCount,
			RequestDuration,
			VendorCalls,
			VendorCallDuration,
			DispatchRecipients,
			ReconcileUpdates,
			JobRuns,
		)
	})
}
