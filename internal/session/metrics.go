package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAutoRearms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_auto_rearms_total",
		Help: "Recordings re-armed by the hands-free loop",
	})

	metricFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_turn_failures_total",
		Help: "Submitted turns that failed and were surfaced to the user",
	})
)
