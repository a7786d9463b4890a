// Package metrics provides Prometheus instrumentation for sourceproof.
package metrics

import "time"

// VerificationRequest records a verification request and its latency.
func VerificationRequest(operation, result string, duration time.Duration) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(operation, result).Inc()
	verificationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// LedgerRequest records a ledger RPC call and its latency.
func LedgerRequest(method, status string, duration time.Duration) {
	if !enabled {
		return
	}
	ledgerRequestsTotal.WithLabelValues(method, status).Inc()
	ledgerDuration.WithLabelValues(method).Observe(duration.Seconds())
}
