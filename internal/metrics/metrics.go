package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks vault operations by type and outcome.
	VaultOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Total number of vault operations processed (by operation and result).",
		},
		[]string{"operation", "result"}, // result = "ok" | "error"
	)

	// Measures duration of vault operations end to end.
	VaultOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "Duration of vault operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms → ~1.6s
		},
		[]string{"operation"},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks cache hits and misses for the API key resolver.
	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_errors_total",
			Help: "Count of service-level errors by component and reason.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the number of products currently registered.
	ProductsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vault_products_registered",
			Help: "Number of products currently held in the registry.",
		},
	)

	// Tracks AMQP quote commands consumed by queue and result.
	AMQPMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amqp_messages_total",
			Help: "Total number of AMQP messages consumed.",
		},
		[]string{"queue", "result"}, // result = "ok" | "rejected" | "error"
	)

	// Gauges currently connected event feed clients.
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_clients_connected",
			Help: "Number of websocket clients currently attached to the event feed.",
		},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncVaultOp(operation, result string) {
	VaultOpsTotal.WithLabelValues(operation, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncAMQPMessage(queue, result string) {
	AMQPMessageCount.WithLabelValues(queue, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
