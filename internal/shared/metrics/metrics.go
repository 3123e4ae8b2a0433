package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	intakeResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_results_total",
		Help: "Intake results by producing stage",
	}, []string{"source"})

	providerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_provider_failures_total",
		Help: "AI provider failures during intake",
	}, []string{"provider"})

	bookings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	documentSummaries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_summaries_total",
		Help: "Document summary attempts by outcome",
	}, []string{"outcome"})

	ocrFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_ocr_fallback_total",
		Help: "Documents that needed OCR after structural extraction",
	})

	documentJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_jobs_total",
		Help: "Queued document jobs by worker outcome",
	}, []string{"outcome"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter by group",
	}, []string{"group"})

	bookingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_duration_ms",
		Help:    "Booking duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
)

func init() {
	registry.MustRegister(
		intakeResults,
		providerFailures,
		bookings,
		documentSummaries,
		ocrFallbacks,
		documentJobs,
		rateLimited,
		bookingDuration,
		collectors.NewGoCollector(),
	)
}

// IncRateLimited counts a request rejected for group.
func IncRateLimited(group string) {
	rateLimited.WithLabelValues(group).Inc()
}

// IncIntakeResult counts an intake result for the stage that produced it.
func IncIntakeResult(source string) {
	intakeResults.WithLabelValues(source).Inc()
}

// IncProviderFailure counts a failed provider attempt.
func IncProviderFailure(provider string) {
	providerFailures.WithLabelValues(provider).Inc()
}

// IncBooking counts a booking attempt outcome (booked, conflict, invalid, error).
func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

// IncDocumentSummary counts a document summary outcome (summarized, empty, unavailable).
func IncDocumentSummary(outcome string) {
	documentSummaries.WithLabelValues(outcome).Inc()
}

// IncOCRFallback counts a document that went to OCR.
func IncOCRFallback() {
	ocrFallbacks.Inc()
}

// IncDocumentJob counts a worker outcome (received, completed, failed, deleted_unrecoverable).
func IncDocumentJob(outcome string) {
	documentJobs.WithLabelValues(outcome).Inc()
}

// ObserveBookingDurationMs records a booking duration in milliseconds.
func ObserveBookingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	bookingDuration.Observe(value)
}

// SinceMillis returns the elapsed milliseconds since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// Registry exposes the registry backing Handler.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
