package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_starts_total",
		Help: "Recordings started",
	})

	metricTooShort = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_too_short_total",
		Help: "Finalized payloads rejected for being below the minimum size",
	})

	metricDeviceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_device_errors_total",
		Help: "Capture device failures",
	})

	metricPayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_payload_bytes",
		Help:    "Size of finalized audio payloads",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
	})
)
