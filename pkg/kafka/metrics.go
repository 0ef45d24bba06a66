package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded in kafka_producer_events_total.
const (
	resultOK      = "ok"
	resultError   = "error"
	resultDropped = "dropped"
)

var (
	producerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_events_total",
			Help: "Events handed to the producer, by topic and result (ok, error, dropped).",
		},
		[]string{"topic", "result"},
	)

	producerWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_write_duration_seconds",
			Help:    "Time spent writing one event to the brokers.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"topic"},
	)
)
