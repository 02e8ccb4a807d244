package provisioner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingCreations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "spawner",
			Subsystem: "provisioner",
			Name:      "pending_creations",
			Help:      "Number of node creations in flight",
		},
		[]string{"driver"},
	)

	creationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spawner",
			Subsystem: "provisioner",
			Name:      "creations_total",
			Help:      "Total number of node creations by result",
		},
		[]string{"driver", "result"},
	)

	creationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spawner",
			Subsystem: "provisioner",
			Name:      "creation_duration_seconds",
			Help:      "Time from submission to a ready node or a failure",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
		},
		[]string{"driver"},
	)

	destroysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spawner",
			Subsystem: "provisioner",
			Name:      "destroys_total",
			Help:      "Total number of node destructions by result",
		},
		[]string{"driver", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		pendingCreations,
		creationsTotal,
		creationDuration,
		destroysTotal,
	)
}

func recordCreation(driver, result string, seconds float64) {
	creationsTotal.WithLabelValues(driver, result).Inc()
	creationDuration.WithLabelValues(driver).Observe(seconds)
}

func recordDestroy(driver, result string) {
	destroysTotal.WithLabelValues(driver, result).Inc()
}
