package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Grounding lookup outcomes.
const (
	GroundingHit   = "cache_hit"
	GroundingMiss  = "lookup"
	GroundingError = "error"
)

// Recorder owns a private registry and the dialogue collectors.  A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	turns               *prometheus.CounterVec
	classifierFallbacks prometheus.Counter
	bookings            prometheus.Counter
	cancellations       prometheus.Counter
	grounding           *prometheus.CounterVec
	storeSaves          *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_turns_total",
				Help: "Dialogue turns processed, by dispatched intent",
			},
			[]string{"intent"},
		),
		classifierFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_classifier_fallbacks_total",
			Help: "Turns where the classifier produced nothing usable",
		}),
		bookings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_bookings_committed_total",
			Help: "Appointments committed by the booking flow",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_cancellations_total",
			Help: "Appointments canceled",
		}),
		grounding: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_grounding_requests_total",
				Help: "Symptom grounding requests by outcome",
			},
			[]string{"result"}, // "cache_hit", "lookup", "error"
		),
		storeSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_store_saves_total",
				Help: "Patient store saves by result",
			},
			[]string{"result"}, // "ok", "error"
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
	r.registry.MustRegister(
		r.turns,
		r.classifierFallbacks,
		r.bookings,
		r.cancellations,
		r.grounding,
		r.storeSaves,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Turn(intent string) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(intent).Inc()
}

func (r *Recorder) ClassifierFallback() {
	if r == nil {
		return
	}
	r.classifierFallbacks.Inc()
}

func (r *Recorder) BookingCommitted() {
	if r == nil {
		return
	}
	r.bookings.Inc()
}

func (r *Recorder) Cancellation() {
	if r == nil {
		return
	}
	r.cancellations.Inc()
}

// Grounding records one grounding request; result is one of the Grounding*
// constants.
func (r *Recorder) Grounding(result string) {
	if r == nil {
		return
	}
	r.grounding.WithLabelValues(result).Inc()
}

// StoreSave records one patient store save and whether it failed.
func (r *Recorder) StoreSave(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.storeSaves.WithLabelValues(result).Inc()
}

// HTTPRequest records metrics for an HTTP request.
func (r *Recorder) HTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, endpoint, http.StatusText(statusCode)).Inc()
	r.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
