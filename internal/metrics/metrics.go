// Package metrics exposes Prometheus HTTP and domain counters.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadclaw_whatsapp_messages_total",
			Help: "Inbound WhatsApp webhook deliveries by pipeline outcome.",
		},
		[]string{"outcome", "reason"},
	)

	leadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadclaw_leads_imported_total",
			Help: "Leads processed from Meta by path and result.",
		},
		[]string{"path", "result"},
	)

	oauthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadclaw_meta_oauth_total",
			Help: "Meta OAuth callbacks by result.",
		},
		[]string{"result"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadclaw_ai_generation_seconds",
			Help:    "AI reply generation latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider", "status"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			messagesTotal, leadsTotal, oauthTotal, generationDuration)
	})
}

// Handler serves /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records in-flight, count and latency per matched route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(sw.Code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// StatusWriter captures the response code for logging and metrics.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Code = code
	w.ResponseWriter.WriteHeader(code)
}

// ObserveMessage counts one inbound webhook outcome.
func ObserveMessage(outcome, reason string) {
	messagesTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveLeads adds created/skipped/failed counts for an import path ("backfill", "realtime").
func ObserveLeads(path string, created, skipped, failed int) {
	leadsTotal.WithLabelValues(path, "created").Add(float64(created))
	leadsTotal.WithLabelValues(path, "skipped").Add(float64(skipped))
	leadsTotal.WithLabelValues(path, "failed").Add(float64(failed))
}

// ObserveOAuth counts one OAuth callback result ("success" or a meta_error reason).
func ObserveOAuth(result string) {
	oauthTotal.WithLabelValues(result).Inc()
}

// ObserveGeneration records one AI call.
func ObserveGeneration(provider string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	generationDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}
