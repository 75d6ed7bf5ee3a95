package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records flush and submission outcomes for the sync engine.
type SyncMetrics struct {
	flushDuration *prometheus.HistogramVec
	synced        *prometheus.CounterVec
	failed        *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
}

// NewSyncMetrics registers the sync engine metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	flushDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flush_duration_seconds",
		Help:    "Duration of queue flush passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	synced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "records_synced",
		Help: "Quote records confirmed by the remote service.",
	}, []string{"trigger"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "records_failed",
		Help: "Quote records terminally rejected by the remote service.",
	}, []string{"trigger"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submit_attempts",
		Help: "Individual submission attempts, including retries.",
	}, []string{"outcome"})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Records in the local queue by status.",
	}, []string{"status"})
	reg.MustRegister(flushDuration, synced, failed, attempts, queueDepth)
	return &SyncMetrics{
		flushDuration: flushDuration,
		synced:        synced,
		failed:        failed,
		attempts:      attempts,
		queueDepth:    queueDepth,
	}
}

// ObserveFlushDuration records the duration of one flush pass.
func (s *SyncMetrics) ObserveFlushDuration(trigger string, duration time.Duration) {
	if s == nil || s.flushDuration == nil {
		return
	}
	s.flushDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncSynced increments the synced record counter.
func (s *SyncMetrics) IncSynced(trigger string) {
	if s == nil || s.synced == nil {
		return
	}
	s.synced.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncFailed increments the terminally failed record counter.
func (s *SyncMetrics) IncFailed(trigger string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncAttempt counts one submission attempt with its outcome.
func (s *SyncMetrics) IncAttempt(outcome string) {
	if s == nil || s.attempts == nil {
		return
	}
	s.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetQueueDepth reports the number of records currently in a status.
func (s *SyncMetrics) SetQueueDepth(status string, depth int) {
	if s == nil || s.queueDepth == nil {
		return
	}
	s.queueDepth.WithLabelValues(normalizeLabel(status)).Set(float64(depth))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
