package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Exchange("authorization-code", "ok")
	m.Exchange("authorization-code", "ok")
	m.Exchange("refresh-token", "invalid-grant")
	m.Revoked("admin", 3)
	m.Revoked("user", 0)
	m.ClientChanged("create")
	m.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exchanges.WithLabelValues("authorization-code", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("refresh-token", "invalid-grant")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.revocations.WithLabelValues("admin")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.revocations.WithLabelValues("user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clientChanges.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Exchange("authorization-code", "ok")
		m.Revoked("admin", 1)
		m.ClientChanged("destroy")
		m.RateLimited()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Exchange("refresh-token", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `oauth_provider_token_exchanges_total{grant_type="refresh-token",outcome="ok"} 1`)
}
