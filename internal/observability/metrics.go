// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Swap metrics
	SwapsSubmitted  *prometheus.CounterVec
	SwapsConfirmed  *prometheus.CounterVec
	SwapsFailed     *prometheus.CounterVec
	SwapDuration    *prometheus.HistogramVec
	ApprovalsIssued prometheus.Counter

	// Session metrics
	TokensIssued    prometheus.Counter
	TokensRefreshed prometheus.Counter
	AuthorizeFailed prometheus.Counter

	// Chain metrics
	RPCCallLatency   *prometheus.HistogramVec
	RPCCallErrors    *prometheus.CounterVec
	ConfirmationWait prometheus.Histogram

	// HTTP metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swap_custodian"
	}

	return &Metrics{
		// Swap metrics
		SwapsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swaps_submitted_total",
			Help:      "Total number of swap transactions submitted by type",
		}, []string{"swap_type"}),
		SwapsConfirmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swaps_confirmed_total",
			Help:      "Total number of swaps confirmed and recorded by type",
		}, []string{"swap_type"}),
		SwapsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swaps_failed_total",
			Help:      "Total number of failed swaps by type and stage",
		}, []string{"swap_type", "stage"}),
		SwapDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swap_duration_seconds",
			Help:      "End-to-end swap duration from quote to confirmation",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"swap_type"}),
		ApprovalsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "approvals_issued_total",
			Help:      "Total number of allowance approval transactions submitted",
		}),

		// Session metrics
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tokens_issued_total",
			Help:      "Total number of token pairs issued",
		}),
		TokensRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tokens_refreshed_total",
			Help:      "Total number of token pairs minted via refresh",
		}),
		AuthorizeFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "authorize_failed_total",
			Help:      "Total number of rejected access token verifications",
		}),

		// Chain metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of JSON-RPC call errors by method",
		}, []string{"method"}),
		ConfirmationWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for transaction inclusion",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by operation",
		}, []string{"operation"}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSwapSubmitted increments the submitted counter for a swap type.
func RecordSwapSubmitted(swapType string) {
	DefaultMetrics.SwapsSubmitted.WithLabelValues(swapType).Inc()
}

// RecordSwapConfirmed records a confirmed, recorded swap and its duration.
func RecordSwapConfirmed(swapType string, durationSeconds float64) {
	DefaultMetrics.SwapsConfirmed.WithLabelValues(swapType).Inc()
	DefaultMetrics.SwapDuration.WithLabelValues(swapType).Observe(durationSeconds)
}

// RecordSwapFailed records a failed swap with the stage it failed at.
func RecordSwapFailed(swapType, stage string) {
	DefaultMetrics.SwapsFailed.WithLabelValues(swapType, stage).Inc()
}

// RecordApprovalIssued increments the approval transaction counter.
func RecordApprovalIssued() {
	DefaultMetrics.ApprovalsIssued.Inc()
}

// RecordTokensIssued increments the issued token pair counter.
func RecordTokensIssued() {
	DefaultMetrics.TokensIssued.Inc()
}

// RecordTokensRefreshed increments the refreshed token pair counter.
func RecordTokensRefreshed() {
	DefaultMetrics.TokensRefreshed.Inc()
}

// RecordAuthorizeFailed increments the rejected authorization counter.
func RecordAuthorizeFailed() {
	DefaultMetrics.AuthorizeFailed.Inc()
}

// RecordRPCCall records a JSON-RPC call's latency and outcome.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordConfirmationWait records time spent waiting for inclusion.
func RecordConfirmationWait(seconds float64) {
	DefaultMetrics.ConfirmationWait.Observe(seconds)
}

// RecordHTTPRequest records a handled HTTP request.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
	DefaultMetrics.HTTPRequestLatency.WithLabelValues(route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
