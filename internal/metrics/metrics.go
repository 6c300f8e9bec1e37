// Package metrics exposes Prometheus instrumentation for the API.
//
// Collectors are registered on the default registry at init through promauto
// and served by promhttp on /metrics. Record* helpers keep label handling in
// one place.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marquee_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Marketplace Metrics
	TicketsSold = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_tickets_sold_total",
			Help: "Total number of tickets sold",
		},
		[]string{"category"},
	)

	TicketRevenue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_ticket_revenue_total",
			Help: "Total ticket revenue in the configured currency",
		},
		[]string{"category"},
	)

	TicketsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_tickets_released_total",
			Help: "Tickets cancelled or refunded after purchase",
		},
		[]string{"status"},
	)

	PurchaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_purchase_failures_total",
			Help: "Failed ticket purchases by reason",
		},
		[]string{"reason"}, // "sold_out", "not_on_sale", "payment", "other"
	)

	EventsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_events_deleted_total",
			Help: "Events deleted together with their tickets",
		},
	)

	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_image_uploads_total",
			Help: "Image uploads by outcome",
		},
		[]string{"result"}, // "stored", "rejected", "failed"
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_emails_sent_total",
			Help: "Transactional emails by outcome",
		},
		[]string{"result"},
	)

	// Background Job Metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_job_runs_total",
			Help: "Background job runs by outcome",
		},
		[]string{"job", "result"},
	)

	JobAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_job_records_affected_total",
			Help: "Records changed by background jobs",
		},
		[]string{"job"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marquee_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTicketSale records a completed purchase
func RecordTicketSale(category string, quantity int, amount float64) {
	TicketsSold.WithLabelValues(category).Add(float64(quantity))
	TicketRevenue.WithLabelValues(category).Add(amount)
}

// RecordPurchaseFailure records a rejected purchase
func RecordPurchaseFailure(reason string) {
	PurchaseFailures.WithLabelValues(reason).Inc()
}

// RecordJobRun records one background job execution
func RecordJobRun(job string, affected int, err error) {
	if err != nil {
		JobRuns.WithLabelValues(job, "error").Inc()
		return
	}
	JobRuns.WithLabelValues(job, "success").Inc()
	JobAffected.WithLabelValues(job).Add(float64(affected))
}

// RecordBreakerTransition records a gobreaker state change
func RecordBreakerTransition(name string, from, to gobreaker.State) {
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Middleware records request counts and latency by route pattern.
// It must wrap the ServeMux directly so the matched pattern is visible.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		APIActiveRequests.Inc()
		defer APIActiveRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RecordAPIRequest(r.Method, endpoint, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
