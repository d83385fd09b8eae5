package services

import "github.com/prometheus/client_golang/prometheus"

// Same prefix as the HTTP metrics.
const metricsNamespace = "mentor_match"

// Domain counters. Labels are limited to bounded enums.
var (
	swipesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "swipes_recorded_total",
			Help:      "Swipe decisions persisted, by direction.",
		},
		[]string{"direction"},
	)

	matchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "matches_created_total",
			Help:      "Matches written for the first time.",
		},
	)

	matchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "match_persistence_failures_total",
			Help:      "Mutual right swipes whose match could not be written.",
		},
	)

	bootstrapFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conversation_bootstrap_failures_total",
			Help:      "Matches left without a conversation or intro message.",
		},
	)

	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Messages appended to conversations.",
		},
	)
)

func init() {
	prometheus.MustRegister(swipesRecorded, matchesCreated, matchFailures, bootstrapFailures, messagesSent)
}
