// Package metrics provides Prometheus instrumentation for sourceproof.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()

			// Normalize path to avoid high cardinality from IDs
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath converts dynamic path segments to placeholders to avoid
// high cardinality metrics. For example:
//
//	/api/v1/verifications/5a1e...c3 -> /api/v1/verifications/{id}
func normalizePath(path string) string {
	// Health check endpoints - keep as-is
	if path == "/health" || path == "/healthz" || path == "/readyz" {
		return path
	}
	// Metrics endpoint - keep as-is
	if path == "/metrics" {
		return path
	}

	if strings.HasPrefix(path, "/api/v1/") {
		parts := strings.Split(path[8:], "/")
		var normalized []string
		normalized = append(normalized, "/api/v1")

		for _, part := range parts {
			if part == "" {
				continue
			}
			if isLikelyID(part) {
				normalized = append(normalized, "{id}")
			} else {
				normalized = append(normalized, part)
			}
		}
		return strings.Join(normalized, "/")
	}
	return path
}

// isLikelyID returns true if segment looks like an identifier
func isLikelyID(segment string) bool {
	// Hex addresses, with or without a 0x prefix
	s := strings.TrimPrefix(segment, "0x")
	if len(s) >= 16 && isHex(s) {
		return true
	}
	// UUIDs with dashes
	if strings.Count(segment, "-") >= 4 {
		return true
	}
	return false
}

// isHex returns true if string is hexadecimal (supports both upper and lowercase)
func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return len(s) > 0
}
