package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	codeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_code_requests_total",
			Help: "Passcode issuance requests by outcome.",
		},
		[]string{"outcome"},
	)

	codeValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_code_validations_total",
			Help: "Passcode validation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, codeRequestsTotal, codeValidationsTotal)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountCodeRequest records one passcode issuance outcome. Expected failures
// (rate limited, denied) are counted here instead of logged as errors.
func CountCodeRequest(outcome string) {
	codeRequestsTotal.WithLabelValues(outcome).Inc()
}

// CountCodeValidation records one passcode validation outcome.
func CountCodeValidation(outcome string) {
	codeValidationsTotal.WithLabelValues(outcome).Inc()
}

// Instrument measures request counts and latencies.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
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
