// Package metrics provides Prometheus metrics collection for Texlify.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for Texlify.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Admission metrics
	AdmissionDecisions *prometheus.CounterVec
	LimiterDenials     *prometheus.CounterVec

	// Conversion metrics
	ConversionDuration *prometheus.HistogramVec
	ConversionErrors   *prometheus.CounterVec
	ConversionTokens   *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "texlify",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "texlify",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AdmissionDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "admission_decisions_total",
				Help:      "Total admission decisions by outcome and deny reason",
			},
			[]string{"outcome", "reason", "tier"},
		),
		LimiterDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "limiter_denials_total",
				Help:      "Total rate limiter denials by limiter name",
			},
			[]string{"limiter"},
		),
		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "texlify",
				Name:      "conversion_duration_seconds",
				Help:      "Conversion duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		ConversionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "conversion_errors_total",
				Help:      "Total conversion failures by tool",
			},
			[]string{"tool"},
		),
		ConversionTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "conversion_tokens_total",
				Help:      "Total model tokens consumed by direction",
			},
			[]string{"tool", "direction"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "texlify",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "texlify",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
