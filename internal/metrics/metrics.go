package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestSeconds     *prometheus.HistogramVec
	APIErrors          *prometheus.CounterVec
	Superseded         *prometheus.CounterVec
	Geolocations       *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aerodrome_backend_request_duration_seconds",
			Help:    "Duration of requests to the airport backend API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		APIErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aerodrome_backend_errors_total",
			Help: "Total number of failed requests to the airport backend API.",
		}, []string{"endpoint"}),
		Superseded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aerodrome_superseded_responses_total",
			Help: "Total number of responses discarded because a newer request was issued for the same slot.",
		}, []string{"slot"}),
		Geolocations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aerodrome_geolocation_resolutions_total",
			Help: "Total number of location resolutions by source (device or fallback).",
		}, []string{"source"}),
		SessionTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aerodrome_session_transitions_total",
			Help: "Total number of session state transitions by target state.",
		}, []string{"state"}),
	}
}
