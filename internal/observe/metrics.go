package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "scout"

// Collector holds the Prometheus metrics for one process. Each collector owns
// its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	GatewayCalls    *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	Extractions     *prometheus.CounterVec
	Components      *prometheus.CounterVec
	Replies         *prometheus.CounterVec
	Sessions        prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewCollector creates and registers the scout metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gateway_calls_total",
			Help:      "Completion gateway calls by outcome.",
		}, []string{"outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Completion gateway call latency, including throttle wait.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"outcome"}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extractions_total",
			Help:      "Extraction calls by the tier that produced the result.",
		}, []string{"source"}),
		Components: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extracted_components_total",
			Help:      "Components extracted, by tier.",
		}, []string{"source"}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dialogue_replies_total",
			Help:      "Dialogue replies by model; fallback replies use model=fallback.",
		}, []string{"model", "fallback"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.GatewayCalls, c.GatewayDuration,
		c.Extractions, c.Components,
		c.Replies, c.Sessions,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveGatewayCall records one outbound completion call.
func (c *Collector) ObserveGatewayCall(outcome string, elapsed time.Duration) {
	c.GatewayCalls.WithLabelValues(outcome).Inc()
	c.GatewayDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveExtraction records the tier used by one extraction.
func (c *Collector) ObserveExtraction(source string, components int) {
	c.Extractions.WithLabelValues(source).Inc()
	c.Components.WithLabelValues(source).Add(float64(components))
}

// ObserveReply records one dialogue reply.
func (c *Collector) ObserveReply(model string, fallback bool) {
	c.Replies.WithLabelValues(model, strconv.FormatBool(fallback)).Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (c *Collector) SessionOpened() { c.Sessions.Inc() }
func (c *Collector) SessionClosed() { c.Sessions.Dec() }

// HTTPMiddleware counts requests by their chi route pattern.
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
