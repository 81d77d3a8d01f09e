package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	complaintsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_created_total",
			Help: "Total number of complaints created",
		},
		[]string{"category", "anonymous"},
	)

	complaintStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_status_changes_total",
			Help: "Total number of complaint status changes",
		},
		[]string{"from_status", "to_status"},
	)

	complaintsEscalated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_escalated_total",
			Help: "Total number of complaints escalated to L2",
		},
		[]string{"rule"},
	)

	escalationSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalation_sweeps_total",
			Help: "Total number of escalation sweep invocations",
		},
		[]string{"result"},
	)

	escalationSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "escalation_sweep_duration_seconds",
			Help:    "Escalation sweep duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 60},
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of status-change notifications attempted",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordComplaintCreated records a complaint creation
func RecordComplaintCreated(category string, anonymous bool) {
	complaintsCreated.WithLabelValues(category, strconv.FormatBool(anonymous)).Inc()
}

// RecordStatusChange records a complaint status change
func RecordStatusChange(fromStatus, toStatus string) {
	complaintStatusChanges.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordEscalation records an escalation, labeled by the sweep rule
// ("stale_unassigned", "overdue_assigned" or "manual")
func RecordEscalation(rule string) {
	complaintsEscalated.WithLabelValues(rule).Inc()
}

// RecordSweep records a sweep invocation outcome
// ("completed", "skipped_no_l2", "skipped_overlap")
func RecordSweep(result string, duration time.Duration) {
	escalationSweeps.WithLabelValues(result).Inc()
	if result == "completed" {
		escalationSweepDuration.Observe(duration.Seconds())
	}
}

// RecordNotification records a notification attempt outcome
// ("sent", "skipped", "failed")
func RecordNotification(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}
