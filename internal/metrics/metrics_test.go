package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRecord(t *testing.T) {
	m := New()

	m.Recompute("quote")
	m.Recompute("quote")
	m.PromocodeRejected("expired")
	m.PromocodeRejected("")
	m.OrderWritten("create")
	m.PromocodeRedeemed()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recomputes.WithLabelValues("quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promocodeRejections.WithLabelValues("expired")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.promocodeRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redemptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Recompute("quote")
		m.PromocodeRejected("expired")
		m.OrderWritten("create")
		m.PromocodeRedeemed()
		m.CacheLookup(true)
		m.ObserveHTTP(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/orders/quote", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "pricing_http_request_duration_seconds"))
	assert.True(t, strings.Contains(body, `route="/api/v1/orders/quote"`))
}
