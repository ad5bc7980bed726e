// Package services provides external service integrations and technical concerns like advisory scoring and tokens
package services

import (
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdvisoryOperationStats aggregates recorded events for one operation over a
// time window.
type AdvisoryOperationStats struct {
	Successes           int64         `json:"successes"`
	Errors              int64         `json:"errors"`
	Timeouts            int64         `json:"timeouts"`
	CacheHits           int64         `json:"cache_hits"`
	CacheMisses         int64         `json:"cache_misses"`
	BreakerOpenSkips    int64         `json:"breaker_open_skips"`
	Fallbacks           int64         `json:"fallbacks"`
	AverageResponseTime time.Duration `json:"average_response_time"`
}

// AdvisoryMetrics records call outcomes of the advisory gateway and answers
// windowed per-operation statistics queries.
type AdvisoryMetrics interface {
	RecordSuccess(operation string)
	RecordError(operation, kind string)
	RecordTimeout(operation string)
	RecordResponseTime(operation string, duration time.Duration, fromCache bool)
	RecordCacheHit(operation string)
	RecordCacheMiss(operation string)
	RecordCircuitBreakerOpen(operation string)
	RecordFallbackUsed(operation, reason string)
	StatsFor(operation string, window time.Duration) AdvisoryOperationStats
}

type advisoryEventKind int

const (
	eventSuccess advisoryEventKind = iota
	eventError
	eventTimeout
	eventCacheHit
	eventCacheMiss
	eventBreakerOpen
	eventFallback
	eventResponseTime
)

type advisoryEvent struct {
	kind     advisoryEventKind
	at       time.Time
	duration time.Duration
}

// retention bounds how far back StatsFor can look
const metricsRetention = time.Hour

// advisoryRecorder is the windowed in-memory event store shared by every
// AdvisoryMetrics implementation.
type advisoryRecorder struct {
	mu     sync.Mutex
	events map[string][]advisoryEvent
	clock  utils.Clock
}

func newAdvisoryRecorder(clock utils.Clock) *advisoryRecorder {
	if clock == nil {
		clock = utils.UTCNow
	}
	return &advisoryRecorder{
		events: make(map[string][]advisoryEvent),
		clock:  clock,
	}
}

func (r *advisoryRecorder) record(operation string, kind advisoryEventKind, duration time.Duration) {
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[operation], advisoryEvent{kind: kind, at: now, duration: duration})

	// Drop events past retention so the store stays bounded.
	cutoff := now.Add(-metricsRetention)
	for len(events) > 0 && events[0].at.Before(cutoff) {
		events = events[1:]
	}
	r.events[operation] = events
}

func (r *advisoryRecorder) statsFor(operation string, window time.Duration) AdvisoryOperationStats {
	if window <= 0 || window > metricsRetention {
		window = metricsRetention
	}
	cutoff := r.clock().Add(-window)

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := AdvisoryOperationStats{}
	var totalDuration time.Duration
	var timed int64

	for _, event := range r.events[operation] {
		if event.at.Before(cutoff) {
			continue
		}
		switch event.kind {
		case eventSuccess:
			stats.Successes++
		case eventError:
			stats.Errors++
		case eventTimeout:
			stats.Timeouts++
		case eventCacheHit:
			stats.CacheHits++
		case eventCacheMiss:
			stats.CacheMisses++
		case eventBreakerOpen:
			stats.BreakerOpenSkips++
		case eventFallback:
			stats.Fallbacks++
		case eventResponseTime:
			totalDuration += event.duration
			timed++
		}
	}

	if timed > 0 {
		stats.AverageResponseTime = totalDuration / time.Duration(timed)
	}
	return stats
}

var (
	advisoryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_calls_total",
			Help: "Total advisory gateway call outcomes",
		},
		[]string{"operation", "outcome"},
	)

	advisoryResponseSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_response_seconds",
			Help:    "Advisory call latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "from_cache"},
	)

	advisoryCacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_cache_events_total",
			Help: "Advisory response cache hits and misses",
		},
		[]string{"operation", "event"},
	)

	advisoryFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_fallbacks_total",
			Help: "Advisory fallback invocations by reason",
		},
		[]string{"operation", "reason"},
	)

	advisoryBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_breaker_open_total",
			Help: "Advisory calls skipped because the circuit breaker was open",
		},
		[]string{"operation"},
	)
)

// PrometheusAdvisoryMetrics exports gateway metrics to Prometheus and keeps a
// bounded in-memory window for StatsFor queries.
type PrometheusAdvisoryMetrics struct {
	recorder *advisoryRecorder
}

// NewPrometheusAdvisoryMetrics creates the production metrics recorder.
func NewPrometheusAdvisoryMetrics(clock utils.Clock) *PrometheusAdvisoryMetrics {
	return &PrometheusAdvisoryMetrics{recorder: newAdvisoryRecorder(clock)}
}

func (m *PrometheusAdvisoryMetrics) RecordSuccess(operation string) {
	advisoryCallsTotal.WithLabelValues(operation, "success").Inc()
	m.recorder.record(operation, eventSuccess, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordError(operation, kind string) {
	advisoryCallsTotal.WithLabelValues(operation, kind).Inc()
	m.recorder.record(operation, eventError, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordTimeout(operation string) {
	advisoryCallsTotal.WithLabelValues(operation, "timeout").Inc()
	m.recorder.record(operation, eventTimeout, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordResponseTime(operation string, duration time.Duration, fromCache bool) {
	fromCacheLabel := "false"
	if fromCache {
		fromCacheLabel = "true"
	}
	advisoryResponseSeconds.WithLabelValues(operation, fromCacheLabel).Observe(duration.Seconds())
	m.recorder.record(operation, eventResponseTime, duration)
}

func (m *PrometheusAdvisoryMetrics) RecordCacheHit(operation string) {
	advisoryCacheEventsTotal.WithLabelValues(operation, "hit").Inc()
	m.recorder.record(operation, eventCacheHit, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordCacheMiss(operation string) {
	advisoryCacheEventsTotal.WithLabelValues(operation, "miss").Inc()
	m.recorder.record(operation, eventCacheMiss, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordCircuitBreakerOpen(operation string) {
	advisoryBreakerOpenTotal.WithLabelValues(operation).Inc()
	m.recorder.record(operation, eventBreakerOpen, 0)
}

func (m *PrometheusAdvisoryMetrics) RecordFallbackUsed(operation, reason string) {
	advisoryFallbacksTotal.WithLabelValues(operation, reason).Inc()
	m.recorder.record(operation, eventFallback, 0)
}

func (m *PrometheusAdvisoryMetrics) StatsFor(operation string, window time.Duration) AdvisoryOperationStats {
	return m.recorder.statsFor(operation, window)
}

// InMemoryAdvisoryMetrics records events without exporting them anywhere.
// Used in tests and when metrics are disabled.
type InMemoryAdvisoryMetrics struct {
	recorder *advisoryRecorder
}

// NewInMemoryAdvisoryMetrics creates a recorder-only metrics implementation.
func NewInMemoryAdvisoryMetrics(clock utils.Clock) *InMemoryAdvisoryMetrics {
	return &InMemoryAdvisoryMetrics{recorder: newAdvisoryRecorder(clock)}
}

func (m *InMemoryAdvisoryMetrics) RecordSuccess(operation string) {
	m.recorder.record(operation, eventSuccess, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordError(operation, kind string) {
	m.recorder.record(operation, eventError, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordTimeout(operation string) {
	m.recorder.record(operation, eventTimeout, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordResponseTime(operation string, duration time.Duration, fromCache bool) {
	m.recorder.record(operation, eventResponseTime, duration)
}

func (m *InMemoryAdvisoryMetrics) RecordCacheHit(operation string) {
	m.recorder.record(operation, eventCacheHit, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordCacheMiss(operation string) {
	m.recorder.record(operation, eventCacheMiss, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordCircuitBreakerOpen(operation string) {
	m.recorder.record(operation, eventBreakerOpen, 0)
}

func (m *InMemoryAdvisoryMetrics) RecordFallbackUsed(operation, reason string) {
	m.recorder.record(operation, eventFallback, 0)
}

func (m *InMemoryAdvisoryMetrics) StatsFor(operation string, window time.Duration) AdvisoryOperationStats {
	return m.recorder.statsFor(operation, window)
}
