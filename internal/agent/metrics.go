package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_submits_total",
		Help: "Turn submissions by mode and outcome (success, partial, fallback)",
	}, []string{"mode", "outcome"})

	metricSubmitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_submit_errors_total",
		Help: "Turn submissions that failed at transport or HTTP level",
	}, []string{"mode"})

	metricSubmitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_submit_seconds",
		Help:    "Turn submission round-trip latency",
		Buckets: prometheus.ExponentialBuckets(0.25, 1.8, 10),
	}, []string{"mode"})
)
