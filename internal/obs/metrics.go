package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-wide metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Authentication flow metrics.
var (
	loginsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_started_total",
		Help: "Login attempts initiated.",
	})

	callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_callbacks_total",
			Help: "Callback handling outcomes.",
		},
		[]string{"result"},
	)

	tokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Session token verification outcomes.",
		},
		[]string{"result"},
	)
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Lazyauth API build information.",
		},
		[]string{"version"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginsStarted, callbacks, tokenVerifications,
	)
}

// InitBuildInfo registers the build_info gauge once and sets its value.
func InitBuildInfo(version string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncLoginStarted counts an initiated login attempt.
func IncLoginStarted() {
	loginsStarted.Inc()
}

// IncCallback counts a callback outcome; result is one of success,
// invalid_state, exchange_failed, profile_failed, error.
func IncCallback(result string) {
	callbacks.WithLabelValues(result).Inc()
}

// IncTokenVerification counts a session credential check.
func IncTokenVerification(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	tokenVerifications.WithLabelValues(result).Inc()
}

// knownPaths bounds metric label cardinality: every route the service
// serves maps to itself, everything else collapses to "other".
var knownPaths = map[string]struct{}{
	"/":              {},
	"/healthz":       {},
	"/metrics":       {},
	"/auth/login":    {},
	"/auth/callback": {},
	"/auth/me":       {},
	"/auth/logout":   {},
	"/auth/status":   {},
	"/protected":     {},
}

// CanonicalPath normalizes a request path for metric labels.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

// Instrument wraps a handler with in-flight, count and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
