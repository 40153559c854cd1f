package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hoa_ledger"

// Ledger holds every collector the service exports.
type Ledger struct {
	VotesCast       *prometheus.CounterVec
	VoteRejections  *prometheus.CounterVec
	IntegrityFaults prometheus.Counter
	LockWait        prometheus.Histogram
	AppendLatency   prometheus.Histogram

	ReceiptLookups *prometheus.CounterVec
	Audits         *prometheus.CounterVec
	BrokenLinks    prometheus.Counter

	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter
	LiveClients     prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers the ledger collectors with reg.
func New(reg prometheus.Registerer) *Ledger {
	factory := promauto.With(reg)
	return &Ledger{
		VotesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "votes appended to a poll chain",
		}, []string{"kind"}),
		VoteRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_rejections_total",
			Help:      "cast attempts rejected, by reason code",
		}, []string{"reason"}),
		IntegrityFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_faults_total",
			Help:      "inserts refused by a ledger uniqueness constraint",
		}),
		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_lock_wait_seconds",
			Help:      "time spent waiting for the per-poll append lock",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "time spent inside the append critical section",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		ReceiptLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_lookups_total",
			Help:      "receipt verifications, by result",
		}, []string{"result"}),
		Audits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_audits_total",
			Help:      "chain validations, by result",
		}, []string{"result"}),
		BrokenLinks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broken_links_total",
			Help:      "anomalies reported by chain validations",
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "outbox events published to redis",
		}),
		OutboxFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failed_total",
			Help:      "outbox publish attempts that failed",
		}),
		LiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "connected chain-head websocket clients",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "http requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "http request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewUnregistered returns collectors bound to a private registry. Handy in
// tests and tools that never expose /metrics.
func NewUnregistered() *Ledger {
	return New(prometheus.NewRegistry())
}
