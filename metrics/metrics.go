// Package metrics exposes Prometheus counters for the auth flows. A nil
// *Metrics is valid and counts nothing, so the core never branches on
// whether metrics are wired.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registerSuccess  prometheus.Counter
	registerConflict prometheus.Counter
	loginSuccess     prometheus.Counter
	loginFailure     prometheus.Counter
	refreshSuccess   prometheus.Counter
	refreshFailure   prometheus.Counter
	refreshReuse     prometheus.Counter
	logout           prometheus.Counter
	rateLimited      prometheus.Counter

	registry *prometheus.Registry
}

// New registers the counter set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		registerSuccess:  counter("register_success_total", "Successful registrations."),
		registerConflict: counter("register_conflict_total", "Registrations rejected for duplicate email."),
		loginSuccess:     counter("login_success_total", "Successful logins."),
		loginFailure:     counter("login_failure_total", "Logins rejected for bad credentials."),
		refreshSuccess:   counter("refresh_success_total", "Successful token refreshes."),
		refreshFailure:   counter("refresh_failure_total", "Refreshes rejected for invalid tokens or failures."),
		refreshReuse:     counter("refresh_reuse_total", "Refresh tokens presented after consumption."),
		logout:           counter("logout_total", "Logouts that blacklisted a token."),
		rateLimited:      counter("rate_limited_total", "Requests rejected by rate limiting."),
		registry:         reg,
	}
}

// Handler serves the /metrics scrape endpoint for this counter set.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncRegisterSuccess() {
	if m != nil {
		m.registerSuccess.Inc()
	}
}

func (m *Metrics) IncRegisterConflict() {
	if m != nil {
		m.registerConflict.Inc()
	}
}

func (m *Metrics) IncLoginSuccess() {
	if m != nil {
		m.loginSuccess.Inc()
	}
}

func (m *Metrics) IncLoginFailure() {
	if m != nil {
		m.loginFailure.Inc()
	}
}

func (m *Metrics) IncRefreshSuccess() {
	if m != nil {
		m.refreshSuccess.Inc()
	}
}

func (m *Metrics) IncRefreshFailure() {
	if m != nil {
		m.refreshFailure.Inc()
	}
}

func (m *Metrics) IncRefreshReuse() {
	if m != nil {
		m.refreshReuse.Inc()
	}
}

func (m *Metrics) IncLogout() {
	if m != nil {
		m.logout.Inc()
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}
