package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the preview server's collectors.
type Metrics struct {
	Clients  prometheus.Gauge
	Events   prometheus.Counter
	Requests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Name: "topoview_preview_clients",
			Help: "Authenticated push channel connections.",
		}),
		Events: f.NewCounter(prometheus.CounterOpts{
			Name: "topoview_preview_events_total",
			Help: "Payload events delivered to subscribers.",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topoview_preview_fixture_requests_total",
			Help: "Fixture requests by kind and result.",
		}, []string{"kind", "result"}),
	}
}
