// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoMatch = "no_match"
)

var (
	// BatchMessages counts consumed messages by consumer (country_PE, status, ...) and outcome.
	BatchMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_batch_messages_total",
		Help: "Messages handled by the batch consumers",
	}, []string{"consumer", "outcome"})

	// BatchDuration measures how long a whole batch takes.
	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appointment_batch_duration_seconds",
		Help:    "Duration of batch processing in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})

	// Published counts fan-out and processed-event publications.
	Published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_messages_published_total",
		Help: "Messages handed to the transport",
	}, []string{"kind", "country", "outcome"})

	// Transitions counts completion attempts: success, no_match or failure.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_status_transitions_total",
		Help: "pending->completed transition attempts by outcome",
	}, []string{"outcome"})

	// HTTPRequests counts intake API responses.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appointment_http_requests_total",
		Help: "Intake API requests by route and status code",
	}, []string{"route", "status"})
)
