package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels insight calls that returned 200.
	OutcomeSuccess = "success"
	// OutcomeAPIError labels insight calls answered with a non-200 status.
	OutcomeAPIError = "api_error"
	// OutcomeTransport labels insight calls that never got a usable response.
	OutcomeTransport = "transport_error"
)

var (
	datasetsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edaloom",
			Name:      "datasets_ingested_total",
			Help:      "Datasets loaded, partitioned by source (cli, upload).",
		},
		[]string{"source"},
	)

	cellsImputedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edaloom",
			Name:      "cells_imputed_total",
			Help:      "Missing cells filled, partitioned by column kind.",
		},
		[]string{"kind"},
	)

	insightsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edaloom",
			Name:      "insights_requests_total",
			Help:      "Remote insight requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	insightsRequestSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "edaloom",
			Name:      "insights_request_seconds",
			Help:      "Remote insight request latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		},
	)
)

// Register attaches edaloom collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		datasetsIngestedTotal,
		cellsImputedTotal,
		insightsRequestsTotal,
		insightsRequestSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngest counts one loaded dataset.
func ObserveIngest(source string) {
	datasetsIngestedTotal.WithLabelValues(source).Inc()
}

// ObserveImputed adds n filled cells for the given column kind.
func ObserveImputed(kind string, n int) {
	if n <= 0 {
		return
	}
	cellsImputedTotal.WithLabelValues(kind).Add(float64(n))
}

// ObserveInsights records an insight call duration and outcome label.
func ObserveInsights(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeAPIError:
	default:
		outcome = OutcomeTransport
	}
	insightsRequestsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	insightsRequestSeconds.Observe(duration.Seconds())
}
