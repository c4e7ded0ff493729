package datasync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments loads and the push channel. A nil *Metrics records
// nothing.
type Metrics struct {
	Fetches           *prometheus.CounterVec
	Pushes            *prometheus.CounterVec
	LiveSubscriptions prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topoview_fetch_total",
				Help: "Diagram and payload loads by kind and outcome",
			},
			[]string{"kind", "outcome"}, // kind: svg, payload
		),
		Pushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topoview_push_messages_total",
				Help: "Push messages received, by whether they were applied",
			},
			[]string{"result"}, // applied, stale, invalid
		),
		LiveSubscriptions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "topoview_live_subscriptions",
				Help: "Subscription handles currently held (0 or 1 per controller)",
			},
		),
	}
}

func (m *Metrics) fetch(kind string, k OutcomeKind) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(kind, k.String()).Inc()
}

func (m *Metrics) push(result string) {
	if m == nil {
		return
	}
	m.Pushes.WithLabelValues(result).Inc()
}

func (m *Metrics) live(delta float64) {
	if m == nil {
		return
	}
	m.LiveSubscriptions.Add(delta)
}
