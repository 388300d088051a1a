package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry            *prometheus.Registry
	recomputes          *prometheus.CounterVec
	promocodeRejections *prometheus.CounterVec
	orders              *prometheus.CounterVec
	redemptions         prometheus.Counter
	cacheLookups        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "recomputes_total",
			Help:      "Order recomputations by caller operation.",
		}, []string{"operation"}),
		promocodeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "promocode_rejections_total",
			Help:      "Promo codes that were requested but not applied, by reason.",
		}, []string{"reason"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "orders_total",
			Help:      "Orders written, by action.",
		}, []string{"action"}),
		redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "promocode_redemptions_total",
			Help:      "Promo code uses consumed by order submission.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "catalog_cache_lookups_total",
			Help:      "Active promotion cache lookups by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricing",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recomputes,
		m.promocodeRejections,
		m.orders,
		m.redemptions,
		m.cacheLookups,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The recorder methods accept a nil receiver so callers can run without metrics.

func (m *Metrics) Recompute(operation string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(operation).Inc()
}

func (m *Metrics) PromocodeRejected(reason string) {
	if m == nil || reason == "" {
		return
	}
	m.promocodeRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) OrderWritten(action string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(action).Inc()
}

func (m *Metrics) PromocodeRedeemed() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
