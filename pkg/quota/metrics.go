package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quota"

// Metrics exposes engine activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	decisions        *prometheus.CounterVec
	consumption      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	resets           *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	spoolDepth       prometheus.Gauge
}

// NewMetrics registers the engine metrics with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Authorization decisions by resource and outcome",
		}, []string{"resource", "outcome"}),
		consumption: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "consumption_units_total",
			Help:      "Units of metered consumption recorded",
		}, []string{"resource"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Threshold notifications emitted",
		}, []string{"resource", "period", "tier"}),
		dispatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_failures_total",
			Help:      "Notification events that could not be delivered",
		}, []string{"reason"}),
		resets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "counter_resets_total",
			Help:      "Counters rolled over by the reset scheduler",
		}, []string{"period"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "store_errors_total",
			Help:      "Failed store operations",
		}, []string{"op"}),
		spoolDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "spool_pending",
			Help:      "Consumption records waiting to be written",
		}),
	}
}

func (m *Metrics) decision(res Resource, d Decision) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	m.decisions.WithLabelValues(string(res), outcome).Inc()
}

func (m *Metrics) consumed(res Resource, n int64) {
	if m == nil {
		return
	}
	m.consumption.WithLabelValues(string(res)).Add(float64(n))
}

func (m *Metrics) notified(e Event) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(e.Resource), string(e.Period), e.Tier.String()).Inc()
}

func (m *Metrics) dispatchFailed(reason string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) reset(p Period, n int) {
	if m == nil || n == 0 {
		return
	}
	m.resets.WithLabelValues(string(p)).Add(float64(n))
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) spoolSize(n int) {
	if m == nil {
		return
	}
	m.spoolDepth.Set(float64(n))
}
