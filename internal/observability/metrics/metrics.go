// Package metrics provides Prometheus instrumentation for sourceproof.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification domain metrics
	verificationTotal    *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec

	// Ledger client metrics
	ledgerRequestsTotal *prometheus.CounterVec
	ledgerDuration      *prometheus.HistogramVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Verification request counter, labelled by operation and outcome
	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_request_total",
			Help: "Total number of verification requests",
		},
		[]string{"operation", "result"},
	)

	// Verification latency includes all ledger round trips
	verificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_duration_seconds",
			Help:    "Verification latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Ledger RPC counter
	ledgerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total number of ledger RPC calls",
		},
		[]string{"method", "status"},
	)

	// Ledger RPC duration histogram
	ledgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_request_duration_seconds",
			Help:    "Ledger RPC latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
