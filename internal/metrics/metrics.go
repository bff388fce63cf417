// Package metrics exposes navigation counters and handler latencies to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"navkit/internal/model"
)

// Metrics holds the navigator's collectors. A nil *Metrics records nothing.
type Metrics struct {
	events          *prometheus.CounterVec
	stale           prometheus.Counter
	handlerDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// events counts every navigation action by type
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "navkit_navigation_events_total",
			Help: "Navigation actions seen by the navigator, by action type",
		}, []string{"event"}),

		stale: factory.NewCounter(prometheus.CounterOpts{
			Name: "navkit_stale_requests_total",
			Help: "Navigation requests dropped because a newer request superseded them",
		}),

		handlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navkit_handler_duration_seconds",
			Help:    "Lifecycle handler duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}, []string{"stage"}),

		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "navkit_handler_errors_total",
			Help: "Lifecycle handler failures by stage",
		}, []string{"stage"}),
	}
}

// Event counts one navigation action.
func (m *Metrics) Event(actionType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(actionType).Inc()
}

// Stale counts one superseded request.
func (m *Metrics) Stale() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

// ObserveHandler records a handler run.
func (m *Metrics) ObserveHandler(stage model.Stage, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if err != nil {
		m.handlerErrors.WithLabelValues(string(stage)).Inc()
	}
}
