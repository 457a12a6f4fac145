package metricsvc

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ttr"

// Metrics holds the counters of the sync-safety layer.
type Metrics struct {
	GuardChecks           *prometheus.CounterVec
	OverrideRequests      prometheus.Counter
	OverrideConfirmations *prometheus.CounterVec
	Restores              *prometheus.CounterVec
}

// NewPrometheusMetrics creates the counters and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		GuardChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_checks_total",
			Help:      "Offline write guard decisions by result.",
		}, []string{"result"}),
		OverrideRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_requests_total",
			Help:      "Device override requests issued.",
		}),
		OverrideConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_confirmations_total",
			Help:      "Device override confirmations by outcome.",
		}, []string{"outcome"}),
		Restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_restores_total",
			Help:      "Ledger restore attempts by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.GuardChecks, m.OverrideRequests, m.OverrideConfirmations, m.Restores} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering collector")
		}
	}
	return m, nil
}

func (m *Metrics) RecordGuardCheck(result string) {
	m.GuardChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordOverrideRequest() {
	m.OverrideRequests.Inc()
}

func (m *Metrics) RecordOverrideConfirmation(outcome string) {
	m.OverrideConfirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRestore(outcome string) {
	m.Restores.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
