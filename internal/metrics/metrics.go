package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors shared by the services. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg                 *prometheus.Registry
	sagaOutcomes        *prometheus.CounterVec
	lowStockAlerts      prometheus.Counter
	collaboratorRetries *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		sagaOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_outcomes_total",
			Help: "Order fulfillment outcomes by resolved state.",
		}, []string{"outcome"}),
		lowStockAlerts: f.NewCounter(prometheus.CounterOpts{
			Name: "low_stock_alerts_total",
			Help: "Low-stock alerts raised by inventory mutations.",
		}),
		collaboratorRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "collaborator_retries_total",
			Help: "Retried calls to remote collaborators.",
		}, []string{"collaborator"}),
	}
}

func (m *Metrics) SagaOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sagaOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LowStockAlert() {
	if m == nil {
		return
	}
	m.lowStockAlerts.Inc()
}

func (m *Metrics) CollaboratorRetry(name string) {
	if m == nil {
		return
	}
	m.collaboratorRetries.WithLabelValues(name).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
