package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SchedulerCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_call_latency_ms",
			Help:    "Scheduler service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	ScoreRecalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consistency_score_recalculations_total",
			Help: "Total number of consistency score recalculations",
		},
		[]string{"reason"},
	)

	ProgressionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_decisions_total",
			Help: "Total number of progression decisions by outcome",
		},
		[]string{"outcome"}, // outcome: increased, decreased, maintained, at_target, deferred
	)

	TriggersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_triggers_created_total",
			Help: "Total number of triggers created at the scheduler",
		},
		[]string{"type", "status"}, // status: success, failed
	)
)

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func RecordSchedulerCallLatency(endpoint, status string, duration time.Duration) {
	SchedulerCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func IncrementScoreRecalculation(reason string) {
	ScoreRecalculations.WithLabelValues(reason).Inc()
}

func IncrementProgressionDecision(outcome string) {
	ProgressionDecisions.WithLabelValues(outcome).Inc()
}

func IncrementTriggerCreated(triggerType, status string) {
	TriggersCreated.WithLabelValues(triggerType, status).Inc()
}
