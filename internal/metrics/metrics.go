package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	resolveDuration     prometheus.Histogram
	resolveFailures     prometheus.Counter
	mapItems            *prometheus.CounterVec
	staleResponses      prometheus.Counter
}

// New creates a fresh Metrics registry with HTTP and map resolver metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	resolveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventmap",
		Name:      "map_resolve_duration_seconds",
		Help:      "Duration of spatial resolution including the store query",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	resolveFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventmap",
		Name:      "map_resolve_failures_total",
		Help:      "Total number of spatial resolutions that failed",
	})

	mapItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventmap",
		Name:      "map_items_total",
		Help:      "Map items returned by the resolver, by kind",
	}, []string{"kind"})

	staleResponses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventmap",
		Name:      "viewport_stale_responses_total",
		Help:      "Map query responses discarded because a newer query was issued",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		resolveDuration,
		resolveFailures,
		mapItems,
		staleResponses,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		resolveDuration:     resolveDuration,
		resolveFailures:     resolveFailures,
		mapItems:            mapItems,
		staleResponses:      staleResponses,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveResolve records one resolver call and the items it produced.
func (m *Metrics) ObserveResolve(duration time.Duration, points, clusters int) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(duration.Seconds())
	m.mapItems.WithLabelValues("point").Add(float64(points))
	m.mapItems.WithLabelValues("cluster").Add(float64(clusters))
}

// IncResolveFailure increments the resolver failure counter.
func (m *Metrics) IncResolveFailure() {
	if m == nil {
		return
	}
	m.resolveFailures.Inc()
}

// IncStaleResponse counts a superseded viewport query response.
func (m *Metrics) IncStaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
