package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestLatency measures HTTP handler latency.
	// Labels: route (gin full path), status (HTTP status code)
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tactline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	// tactsTotal counts processed tacts.
	// Labels: outcome (committed, aborted)
	tactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tactline",
		Subsystem: "solver",
		Name:      "tacts_total",
		Help:      "Total tacts processed, by outcome",
	}, []string{"outcome"})

	// signifiedFacts tracks how many temporal facts each tact published.
	signifiedFacts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tactline",
		Subsystem: "solver",
		Name:      "signified_facts",
		Help:      "Temporal facts published per committed tact",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	// sessionsActive is the number of live sessions.
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tactline",
		Subsystem: "session",
		Name:      "active",
		Help:      "Number of live solver sessions",
	})
)
