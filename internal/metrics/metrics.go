package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botsat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botsat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botsat_catalog_refreshes_total",
			Help: "Catalog refresh attempts by group and result.",
		},
		[]string{"group", "result"},
	)

	catalogAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botsat_catalog_age_seconds",
			Help: "Seconds since the current catalog snapshot was fetched.",
		},
		[]string{"group"},
	)

	catalogSatellites = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botsat_catalog_satellites",
			Help: "Number of element sets in the current catalog snapshot.",
		},
		[]string{"group"},
	)

	passSearchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "botsat_pass_search_duration_seconds",
			Help:    "Wall time of a multi-satellite pass prediction.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	propagationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botsat_propagation_errors_total",
			Help: "Propagation failures by kind.",
		},
		[]string{"kind"},
	)

	horizonExceededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "botsat_propagation_horizon_exceeded_total",
			Help: "Satellites propagated further from epoch than the advisory horizon.",
		},
	)

	passCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botsat_pass_cache_requests_total",
			Help: "Pass cache lookups by result (hit, miss, outdated).",
		},
		[]string{"result"},
	)

	passCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botsat_pass_cache_entries",
			Help: "Number of cached pass predictions.",
		},
	)

	passCacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "botsat_pass_cache_evictions_total",
			Help: "Cached pass predictions removed by expiry or size limit.",
		},
	)

	streamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "botsat_stream_connections",
			Help: "Open pass stream connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(catalogRefreshesTotal)
	prometheus.MustRegister(catalogAgeSeconds)
	prometheus.MustRegister(catalogSatellites)
	prometheus.MustRegister(passSearchSeconds)
	prometheus.MustRegister(propagationErrorsTotal)
	prometheus.MustRegister(horizonExceededTotal)
	prometheus.MustRegister(passCacheRequestsTotal)
	prometheus.MustRegister(passCacheEntries)
	prometheus.MustRegister(passCacheEvictionsTotal)
	prometheus.MustRegister(streamConnections)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRefresh counts one catalog refresh outcome ("ok", "fetch_error", "parse_error", "empty").
func ObserveRefresh(group, result string) {
	catalogRefreshesTotal.WithLabelValues(group, result).Inc()
}

// SetCatalog records the age and size of a group's current snapshot.
func SetCatalog(group string, age time.Duration, satellites int) {
	catalogAgeSeconds.WithLabelValues(group).Set(age.Seconds())
	catalogSatellites.WithLabelValues(group).Set(float64(satellites))
}

// ObservePassSearch records the duration of one pass prediction.
func ObservePassSearch(d time.Duration) {
	passSearchSeconds.Observe(d.Seconds())
}

// IncPropagationError counts a propagation failure of the given kind.
func IncPropagationError(kind string) {
	propagationErrorsTotal.WithLabelValues(kind).Inc()
}

// IncHorizonExceeded counts a satellite first seen beyond the advisory horizon.
func IncHorizonExceeded() {
	horizonExceededTotal.Inc()
}

// IncPassCache counts one pass cache lookup.
func IncPassCache(result string) {
	passCacheRequestsTotal.WithLabelValues(result).Inc()
}

func SetPassCacheEntries(n int) {
	passCacheEntries.Set(float64(n))
}

func AddPassCacheEvictions(n int) {
	passCacheEvictionsTotal.Add(float64(n))
}

// StreamOpened and StreamClosed track open SSE connections.
func StreamOpened() { streamConnections.Inc() }

func StreamClosed() { streamConnections.Dec() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var exactRoutes = map[string]bool{
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/api/v1/catalogs": true,
	"/api/v1/passes":   true,
	"/api/v1/visible":  true,
}

// normalizeRoute collapses path parameters so the path label stays bounded.
// Anything that is not an API route becomes "other".
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return "other"
	}
	rest := parts[2:]

	switch rest[0] {
	case "catalogs":
		switch {
		case len(rest) == 2:
			return "/api/v1/catalogs/{group}"
		case len(rest) == 3 && rest[2] == "refresh":
			return "/api/v1/catalogs/{group}/refresh"
		}
	case "satellites":
		switch {
		case len(rest) == 4 && rest[3] == "passes":
			return "/api/v1/satellites/{group}/{name}/passes"
		case len(rest) == 4 && rest[3] == "look":
			return "/api/v1/satellites/{group}/{name}/look"
		case len(rest) == 5 && rest[3] == "passes" && rest[4] == "stream":
			return "/api/v1/satellites/{group}/{name}/passes/stream"
		}
	case "users":
		if len(rest) == 3 && (rest[2] == "location" || rest[2] == "passes") {
			return "/api/v1/users/{user_id}/" + rest[2]
		}
	}
	return "other"
}
