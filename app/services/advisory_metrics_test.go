package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvisoryMetricsWindowedStats(t *testing.T) {
	clock := newFakeClock()
	metrics := NewInMemoryAdvisoryMetrics(clock.Now)

	metrics.RecordSuccess(OpRecommendDiscount)
	metrics.RecordError(OpRecommendDiscount, "error")
	metrics.RecordTimeout(OpRecommendDiscount)
	metrics.RecordCacheHit(OpRecommendDiscount)
	metrics.RecordCacheMiss(OpRecommendDiscount)
	metrics.RecordCircuitBreakerOpen(OpRecommendDiscount)
	metrics.RecordFallbackUsed(OpRecommendDiscount, "timeout")
	metrics.RecordResponseTime(OpRecommendDiscount, 100*time.Millisecond, false)
	metrics.RecordResponseTime(OpRecommendDiscount, 300*time.Millisecond, false)

	stats := metrics.StatsFor(OpRecommendDiscount, 15*time.Minute)
	assert.Equal(t, int64(1), stats.Successes)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.BreakerOpenSkips)
	assert.Equal(t, int64(1), stats.Fallbacks)
	assert.Equal(t, 200*time.Millisecond, stats.AverageResponseTime)
}

func TestAdvisoryMetricsWindowExcludesOldEvents(t *testing.T) {
	clock := newFakeClock()
	metrics := NewInMemoryAdvisoryMetrics(clock.Now)

	metrics.RecordSuccess(OpCalculateRisk)
	clock.Advance(20 * time.Minute)
	metrics.RecordSuccess(OpCalculateRisk)

	recent := metrics.StatsFor(OpCalculateRisk, 15*time.Minute)
	assert.Equal(t, int64(1), recent.Successes, "events older than the window must be excluded")

	full := metrics.StatsFor(OpCalculateRisk, time.Hour)
	assert.Equal(t, int64(2), full.Successes)
}

func TestAdvisoryMetricsOperationsAreIsolated(t *testing.T) {
	clock := newFakeClock()
	metrics := NewInMemoryAdvisoryMetrics(clock.Now)

	metrics.RecordSuccess(OpRecommendDiscount)
	metrics.RecordError(OpCalculateRisk, "error")

	assert.Equal(t, int64(1), metrics.StatsFor(OpRecommendDiscount, time.Hour).Successes)
	assert.Equal(t, int64(0), metrics.StatsFor(OpRecommendDiscount, time.Hour).Errors)
	assert.Equal(t, int64(1), metrics.StatsFor(OpCalculateRisk, time.Hour).Errors)
}
