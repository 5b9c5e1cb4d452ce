// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Handshake outcomes
const (
	OutcomeStarted       = "started"
	OutcomeAuthenticated = "authenticated"
	OutcomeStoreFailure  = "store_failure"
)

// Metrics is constructed once at startup and registered on a single registry
type Metrics struct {
	handshakes     *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	corsRejections prometheus.Counter
	rateLimited    *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_handshakes_total",
			Help: "Login handshakes by provider and outcome.",
		}, []string{"provider", "outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_session_store_errors_total",
			Help: "Session store failures by operation.",
		}, []string{"op"}),
		corsRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_cors_rejections_total",
			Help: "Requests rejected for a disallowed Origin.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests refused by a rate limiter.",
		}, []string{"limiter"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_sessions_swept_total",
			Help: "Expired sessions removed by the janitor.",
		}),
	}

	reg.MustRegister(m.handshakes, m.storeErrors, m.corsRejections, m.rateLimited, m.sessionsSwept)
	return m
}

// Handshake counts a handshake transition. outcome is one of the Outcome constants
// or an auth failure code.
func (m *Metrics) Handshake(provider, outcome string) {
	m.handshakes.WithLabelValues(provider, outcome).Inc()
}

// StoreError implements session.StoreErrorRecorder
func (m *Metrics) StoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// CORSRejected counts a rejected origin
func (m *Metrics) CORSRejected() {
	m.corsRejections.Inc()
}

// RateLimited counts a refused request
func (m *Metrics) RateLimited(limiter string) {
	m.rateLimited.WithLabelValues(limiter).Inc()
}

// SessionsSwept adds to the janitor's removal count
func (m *Metrics) SessionsSwept(n int64) {
	if n > 0 {
		m.sessionsSwept.Add(float64(n))
	}
}
