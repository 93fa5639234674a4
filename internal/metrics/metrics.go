// Package metrics defines the Prometheus metrics of the same-origin server.
// Everything registers with the default registry at init through promauto.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "photostockage"

// UploadsTotal counts upload attempts.
// Label:
//   - result: "stored", "rejected" or "failed"
var UploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Total number of upload requests, by result.",
	},
	[]string{"result"},
)

// UploadBytes observes the size of stored files.
var UploadBytes = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_bytes",
		Help:      "Size of stored uploads in bytes.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7), // 16KiB .. 64MiB
	},
)

// UploadsReclaimedTotal counts compensating deletes.
var UploadsReclaimedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_reclaimed_total",
		Help:      "Total number of stored files removed after a failed record write.",
	},
)

// EmailsTotal counts contact form deliveries.
// Label:
//   - result: "sent" or "failed"
var EmailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contact_emails_total",
		Help:      "Total number of contact form messages, by result.",
	},
	[]string{"result"},
)

// SessionSignalsTotal counts session change signals fanned out to
// websocket listeners.
var SessionSignalsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_signals_total",
		Help:      "Total number of session change signals broadcast.",
	},
)

// SessionListeners is the number of connected websocket listeners.
var SessionListeners = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_listeners",
		Help:      "Current number of websocket session listeners.",
	},
)

// HTTPRequestDuration measures handler latency.
// Labels:
//   - route: the chi route pattern (e.g. "/api/upload/{name}")
//   - method
//   - status
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by route, method and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "method", "status"},
)

// Instrument records HTTPRequestDuration for every request. It must run
// inside a chi router so the route pattern is known.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
