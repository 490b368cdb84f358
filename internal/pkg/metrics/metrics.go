package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiwatch_events_ingested_total",
		Help: "The total number of reported events processed, by outcome",
	}, []string{"outcome"})

	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiwatch_gate_rejections_total",
		Help: "Total policy gate rejections, by check",
	}, []string{"reason"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apiwatch_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apiwatch_track_batch_size",
		Help:    "Number of events per track call",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
)

// Outcome labels for EventsIngested.
const (
	OutcomePersisted = "persisted"
	OutcomeConsole   = "console"
	OutcomeHeartbeat = "heartbeat"
	OutcomeRejected  = "rejected"
	OutcomeSkipped   = "skipped"
)
