// Package metrics implements the kernel's prometheus exposition: accept
// counts at the listener, dial counts/latency at the connector, limit
// policy state, and retry-budget consumption.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the kernel itself emits, constructed
// against a private prometheus.Registry so embedding applications can
// compose it with their own metrics without global-registry collisions.
type Registry struct {
	reg *prometheus.Registry

	AcceptsTotal        *prometheus.CounterVec
	AcceptErrorsTotal   prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	DialsTotal          *prometheus.CounterVec
	DialDuration        *prometheus.HistogramVec
	LimitState          *prometheus.GaugeVec
	RetryAttemptsTotal  *prometheus.CounterVec
	RetryBudgetExhausted prometheus.Counter
}

// New constructs a Registry with every metric registered under namespace.
func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		AcceptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "listener_accepts_total",
			Help: "Total connections accepted by the listener.",
		}, []string{"listener"}),
		AcceptErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "listener_accept_errors_total",
			Help: "Total non-fatal accept errors encountered.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "listener_connections_active",
			Help: "Currently active accepted connections.",
		}),
		DialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connector_dials_total",
			Help: "Total outbound dial attempts by the connector, labeled by outcome.",
		}, []string{"outcome"}),
		DialDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "connector_dial_duration_seconds",
			Help:    "Outbound dial latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		LimitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "middleware_limit_state",
			Help: "Current middleware.LimitState per named policy (0=Available,1=AtCapacity,2=Draining).",
		}, []string{"policy"}),
		RetryAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "middleware_retry_attempts_total",
			Help: "Total retry attempts, labeled by outcome.",
		}, []string{"outcome"}),
		RetryBudgetExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "middleware_retry_budget_exhausted_total",
			Help: "Total requests that gave up retrying because the Budget was exhausted.",
		}),
	}
}

// Handler exposes the registry in the Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
