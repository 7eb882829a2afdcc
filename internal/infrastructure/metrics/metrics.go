package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay service
type Metrics struct {
	// Session metrics
	ActiveSessions        prometheus.Gauge
	SessionStartsTotal    prometheus.Counter
	SessionStartErrors    prometheus.Counter
	SessionStopsTotal     prometheus.Counter
	WatchdogDisconnects   prometheus.Counter
	WatchdogReconnects    prometheus.Counter
	UnauthorizedSessions  prometheus.Counter
	MessagesObserved      prometheus.Counter
	MessagesFiltered      prometheus.Counter
	ThreadContinuations   prometheus.Counter

	// Registration metrics
	RegistrationsStarted   prometheus.Counter
	RegistrationsCompleted prometheus.Counter
	RegistrationErrors     *prometheus.CounterVec

	// Batch pipeline metrics
	BatchesFlushed     *prometheus.CounterVec
	BatchSizeObserved  prometheus.Histogram
	BatchFlushErrors   prometheus.Counter
	ActiveCollectors   prometheus.Gauge
	ReplyTasksEmitted  prometheus.Counter
	MessagesDiscarded  prometheus.Counter
	TopicCacheHits     prometheus.Counter
	TopicCacheMisses   prometheus.Counter

	// Kafka metrics
	KafkaMessagesProduced prometheus.Counter
	KafkaProduceErrors    *prometheus.CounterVec
	KafkaMessagesConsumed *prometheus.CounterVec
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

// NewMetrics creates a new Metrics instance with all counters and gauges
func NewMetrics() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Number of live Telegram sessions in the registry",
		}),
		SessionStartsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_session_starts_total",
			Help: "Total number of session start attempts",
		}),
		SessionStartErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_session_start_errors_total",
			Help: "Total number of failed session starts",
		}),
		SessionStopsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_session_stops_total",
			Help: "Total number of session stops",
		}),
		WatchdogDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_watchdog_disconnects_total",
			Help: "Total number of connected to disconnected transitions observed",
		}),
		WatchdogReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_watchdog_reconnects_total",
			Help: "Total number of disconnected to connected transitions observed",
		}),
		UnauthorizedSessions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_unauthorized_sessions_total",
			Help: "Total number of sessions rejected due to revoked authorization",
		}),
		MessagesObserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_observed_total",
			Help: "Total number of inbound messages seen by sessions",
		}),
		MessagesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_filtered_total",
			Help: "Total number of inbound messages dropped by allow-list filtering",
		}),
		ThreadContinuations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_thread_continuations_total",
			Help: "Total number of messages routed to an existing reply thread",
		}),
		RegistrationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_registrations_started_total",
			Help: "Total number of registration handshakes started",
		}),
		RegistrationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_registrations_completed_total",
			Help: "Total number of registrations completed",
		}),
		RegistrationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_registration_errors_total",
			Help: "Total number of registration failures by error code",
		}, []string{"code"}),
		BatchesFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_batches_flushed_total",
			Help: "Total number of batch flushes by trigger (size or time)",
		}, []string{"trigger"}),
		BatchSizeObserved: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_batch_size",
			Help:    "Distribution of flushed batch sizes",
			Buckets: prometheus.LinearBuckets(1, 5, 10),
		}),
		BatchFlushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_batch_flush_errors_total",
			Help: "Total number of batch flushes that failed downstream",
		}),
		ActiveCollectors: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_active_collectors",
			Help: "Number of open batch collectors",
		}),
		ReplyTasksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_reply_tasks_emitted_total",
			Help: "Total number of reply tasks published",
		}),
		MessagesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_messages_discarded_total",
			Help: "Total number of messages below the similarity threshold",
		}),
		TopicCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_topic_cache_hits_total",
			Help: "Total number of topic vector cache hits",
		}),
		TopicCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_topic_cache_misses_total",
			Help: "Total number of topic vector cache misses",
		}),
		KafkaMessagesProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total number of messages queued to Kafka",
		}),
		KafkaProduceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_produce_errors_total",
			Help: "Total number of Kafka produce failures by topic",
		}, []string{"topic"}),
		KafkaMessagesConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total number of Kafka messages consumed by topic",
		}, []string{"topic"}),
	}
}
