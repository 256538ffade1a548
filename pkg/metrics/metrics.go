// Package metrics provides Prometheus metrics for the VoTales service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal tracks vote attempts by outcome (counted, duplicate)
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votales",
			Subsystem: "votes",
			Name:      "total",
			Help:      "Total number of vote attempts by outcome",
		},
		[]string{"outcome"},
	)

	// BranchesCreatedTotal tracks branch creations
	BranchesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "votales",
			Subsystem: "tales",
			Name:      "branches_created_total",
			Help:      "Total number of branch tales created",
		},
	)

	// RootsCreatedTotal tracks root tale creations
	RootsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "votales",
			Subsystem: "tales",
			Name:      "roots_created_total",
			Help:      "Total number of root tales created",
		},
	)

	// ConsistencyPartialWrites tracks cross-store writes that completed the
	// ledger insert but failed a downstream propagation step
	ConsistencyPartialWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votales",
			Subsystem: "consistency",
			Name:      "partial_writes_total",
			Help:      "Total number of cross-store writes that only partially propagated",
		},
		[]string{"operation", "step"},
	)

	// TrendingRecomputeDuration tracks trending job run duration
	TrendingRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "votales",
			Subsystem: "trending",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of trending score recomputation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votales",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordVote records a vote attempt outcome
func RecordVote(outcome string) {
	VotesTotal.WithLabelValues(outcome).Inc()
}

// RecordPartialWrite records a cross-store write that stopped short
func RecordPartialWrite(operation, step string) {
	ConsistencyPartialWrites.WithLabelValues(operation, step).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
