// Package metrics exposes Prometheus counters for session flows and the HTTP endpoint that
// serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Flow labels.
const (
	FlowRegister = "register"
	FlowLogin    = "login"
	FlowRefresh  = "refresh"
	FlowLogout   = "logout"
	FlowValidate = "validate"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	SessionsCreated *prometheus.CounterVec
	SessionsRevoked *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
}

// New creates the session counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_sessions_created_total",
				Help: "Total number of sessions created by flow",
			},
			[]string{"flow"},
		),
		SessionsRevoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_sessions_revoked_total",
				Help: "Total number of sessions revoked by reason",
			},
			[]string{"reason"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_failures_total",
				Help: "Total number of rejected authentication attempts by flow and reason",
			},
			[]string{"flow", "reason"},
		),
	}
	reg.MustRegister(m.SessionsCreated, m.SessionsRevoked, m.AuthFailures)
	return m
}

// SessionCreated counts one session issued by flow.
func (m *Metrics) SessionCreated(flow string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(flow).Inc()
}

// SessionRevoked counts one session revoked for reason.
func (m *Metrics) SessionRevoked(reason string) {
	if m == nil {
		return
	}
	m.SessionsRevoked.WithLabelValues(reason).Inc()
}

// AuthFailure counts one rejected attempt.
func (m *Metrics) AuthFailure(flow, reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(flow, reason).Inc()
}
