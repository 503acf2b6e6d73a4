package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oauth_provider"

// Metrics holds the provider's Prometheus collectors.
type Metrics struct {
	registry      *prometheus.Registry
	exchanges     *prometheus.CounterVec
	revocations   *prometheus.CounterVec
	clientChanges *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

// New registers collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Token endpoint requests by grant type and outcome.",
		}, []string{"grant_type", "outcome"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Tokens destroyed through the revocation endpoints.",
		}, []string{"actor"}),
		clientChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_changes_total",
			Help:      "Client registry mutations.",
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		m.exchanges,
		m.revocations,
		m.clientChanges,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Exchange counts a token endpoint outcome. outcome is "ok" or an error code.
func (m *Metrics) Exchange(grantType, outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(grantType, outcome).Inc()
}

// Revoked counts n destroyed tokens for actor ("user" or "admin").
func (m *Metrics) Revoked(actor string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.WithLabelValues(actor).Add(float64(n))
}

// ClientChanged counts a registry mutation.
func (m *Metrics) ClientChanged(operation string) {
	if m == nil {
		return
	}
	m.clientChanges.WithLabelValues(operation).Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
