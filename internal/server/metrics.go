package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Download outcomes used as the status label
const (
	statusOK            = "ok"
	statusBadRequest    = "bad_request"
	statusUpstreamError = "upstream_error"
	statusError         = "error"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	Downloads *prometheus.CounterVec
	Samples   *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_downloads_total",
			Help: "Download requests by outcome.",
		}, []string{"status"}),
		Samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_samples_total",
			Help: "Samples processed by downloads, by outcome.",
		}, []string{"outcome"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_download_duration_seconds",
			Help:    "Time to fetch, aggregate and archive one download.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
