package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the fact store, projection and publication
// pipeline. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ledger writes by fact type and kind (konstant/periodisert)
	FactsAppended *prometheus.CounterVec
	AppendLatency prometheus.Histogram

	// Projection
	ProjectionLatency   prometheus.Histogram
	InvariantViolations prometheus.Counter
	SnapshotCache       *prometheus.CounterVec // result: hit, miss, error

	// Dispatcher
	QueueDepth       prometheus.Gauge
	Published        *prometheus.CounterVec // event_kind
	PublishFailures  prometheus.Counter
	DispatcherState  *prometheus.GaugeVec // state
	NotifyRejections prometheus.Counter

	// Outbox relay
	OutboxRelayed      prometheus.Counter
	OutboxRetried      prometheus.Counter
	OutboxDeadLettered prometheus.Counter

	// Ingestion
	IngestedBatches *prometheus.CounterVec // result: applied, duplicate, rejected, failed
}

// New creates a Metrics instance registered against reg. A nil reg creates
// unregistered collectors, which keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FactsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grunnlag_facts_appended_total",
			Help: "Total facts appended to the ledger by fact type and kind",
		}, []string{"fact_type", "kind"}),

		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "grunnlag_append_duration_seconds",
			Help:    "Duration of an aggregate append batch including commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ProjectionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "grunnlag_projection_duration_seconds",
			Help:    "Duration of loading and projecting a case",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_invariant_violations_total",
			Help: "Projections aborted because a fact group mixed constant and periodized events",
		}),

		SnapshotCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grunnlag_snapshot_cache_total",
			Help: "Projection snapshot cache lookups by result",
		}, []string{"result"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "grunnlag_dispatcher_queue_depth",
			Help: "Notifications waiting to be republished",
		}),

		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grunnlag_published_total",
			Help: "Projections published to the bus by event kind",
		}, []string{"event_kind"}),

		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_publish_failures_total",
			Help: "Failed publications",
		}),

		DispatcherState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grunnlag_dispatcher_state",
			Help: "1 for the dispatcher's current lifecycle state",
		}, []string{"state"}),

		NotifyRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_notify_rejections_total",
			Help: "Notifications rejected because the dispatcher was full or stopped",
		}),

		OutboxRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_outbox_relayed_total",
			Help: "Outbox rows republished and marked processed",
		}),

		OutboxRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_outbox_retried_total",
			Help: "Outbox rows scheduled for another attempt",
		}),

		OutboxDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "grunnlag_outbox_dead_lettered_total",
			Help: "Outbox rows that exhausted their attempts",
		}),

		IngestedBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grunnlag_ingested_batches_total",
			Help: "Inbound fact batches by result",
		}, []string{"result"}),
	}
}

// IncFactsAppended records one appended fact.
func (m *Metrics) IncFactsAppended(factType, kind string) {
	if m != nil {
		m.FactsAppended.WithLabelValues(factType, kind).Inc()
	}
}

// ObserveAppendLatency records an append batch duration.
func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m != nil {
		m.AppendLatency.Observe(d.Seconds())
	}
}

// ObserveProjectionLatency records a projection duration.
func (m *Metrics) ObserveProjectionLatency(d time.Duration) {
	if m != nil {
		m.ProjectionLatency.Observe(d.Seconds())
	}
}

// IncInvariantViolations records an aborted projection.
func (m *Metrics) IncInvariantViolations() {
	if m != nil {
		m.InvariantViolations.Inc()
	}
}

// IncSnapshotCache records a cache lookup result.
func (m *Metrics) IncSnapshotCache(result string) {
	if m != nil {
		m.SnapshotCache.WithLabelValues(result).Inc()
	}
}

// SetQueueDepth records the dispatcher backlog.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// IncPublished records a successful publication.
func (m *Metrics) IncPublished(kind string) {
	if m != nil {
		m.Published.WithLabelValues(kind).Inc()
	}
}

// IncPublishFailures records a failed publication.
func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// SetDispatcherState marks state as current and clears the others.
func (m *Metrics) SetDispatcherState(state string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.DispatcherState.WithLabelValues(s).Set(0)
	}
	m.DispatcherState.WithLabelValues(state).Set(1)
}

// IncNotifyRejections records a rejected notification.
func (m *Metrics) IncNotifyRejections() {
	if m != nil {
		m.NotifyRejections.Inc()
	}
}

// IncOutboxRelayed records a relayed outbox row.
func (m *Metrics) IncOutboxRelayed() {
	if m != nil {
		m.OutboxRelayed.Inc()
	}
}

// IncOutboxRetried records a rescheduled outbox row.
func (m *Metrics) IncOutboxRetried() {
	if m != nil {
		m.OutboxRetried.Inc()
	}
}

// IncOutboxDeadLettered records an exhausted outbox row.
func (m *Metrics) IncOutboxDeadLettered() {
	if m != nil {
		m.OutboxDeadLettered.Inc()
	}
}

// IncIngested records one inbound batch outcome.
func (m *Metrics) IncIngested(result string) {
	if m != nil {
		m.IngestedBatches.WithLabelValues(result).Inc()
	}
}
