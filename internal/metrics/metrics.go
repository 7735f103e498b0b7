// Package metrics exposes Prometheus instrumentation for the stage board service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rolliki"

var (
	// httpRequests counts served requests.
	// Labels: method, route (mux pattern), status
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests served",
	}, []string{"method", "route", "status"})

	// httpLatency measures handler latency.
	// Labels: method, route
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	// stageCompletions counts completion attempts by outcome
	// (completed, forbidden, already_completed, not_available, not_found, error).
	stageCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stages",
		Name:      "completions_total",
		Help:      "Stage completion attempts by outcome",
	}, []string{"outcome"})

	stagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stages",
		Name:      "created_total",
		Help:      "Stages created",
	})

	attachmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attachments",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes of stage deliverables written to object storage",
	})
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordCompletion counts a stage completion attempt.
func RecordCompletion(outcome string) {
	stageCompletions.WithLabelValues(outcome).Inc()
}

// RecordStageCreated counts a created stage.
func RecordStageCreated() {
	stagesCreated.Inc()
}

// RecordAttachmentBytes adds to the uploaded byte counter.
func RecordAttachmentBytes(n int64) {
	if n > 0 {
		attachmentBytes.Add(float64(n))
	}
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
