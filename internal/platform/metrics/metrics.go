package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	Registrations prometheus.Counter
	Renewals      prometheus.Counter
	RecordUpdates prometheus.Counter
	Transfers     prometheus.Counter
	ParamsUpdates prometheus.Counter

	// Rejections counts failed operations by discriminated reason code.
	Rejections *prometheus.CounterVec

	// CounterSaturations counts ownership-counter decrements that hit the
	// zero floor. Non-zero values mean the best-effort NamesCount has
	// drifted, which is expected under register-after-expiry overwrites.
	CounterSaturations prometheus.Counter

	// HTTPRequestDuration observes handler latency by route and status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_registrations_total",
			Help: "Total successful name registrations",
		}),
		Renewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_renewals_total",
			Help: "Total successful renewals",
		}),
		RecordUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_record_updates_total",
			Help: "Total successful record updates",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_transfers_total",
			Help: "Total successful name transfers",
		}),
		ParamsUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_params_updates_total",
			Help: "Total successful parameter updates",
		}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "namereg_rejections_total",
			Help: "Rejected operations by reason code",
		}, []string{"reason"}),
		CounterSaturations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "namereg_counter_saturations_total",
			Help: "Ownership counter decrements saturated at zero",
		}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "namereg_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
