package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, mock *MockAdvisoryService) (*ResilientAdvisoryService, *InMemoryAdvisoryMetrics, *CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	metrics := NewInMemoryAdvisoryMetrics(clock.Now)
	breaker := NewCircuitBreaker(5, 30*time.Second, clock.Now)
	cache := NewMemoryResponseCache(clock.Now)
	gateway := NewResilientAdvisoryService(mock, cache, breaker, metrics, clock.Now)
	return gateway, metrics, breaker, clock
}

func recommendationRequest() *DiscountRecommendationRequest {
	return &DiscountRecommendationRequest{
		TenantID:          1,
		RequestUUID:       uuid.MustParse("7e6a1a51-42a3-4f0c-9d0e-0c6f3b1f8a11"),
		CustomerID:        7,
		RequestedDiscount: 12,
		TotalAmount:       4800,
		Currency:          "USD",
		LineItemCount:     2,
	}
}

func TestGatewayRecommendDiscountCachesResponses(t *testing.T) {
	mock := NewMockAdvisoryService()
	gateway, metrics, _, _ := newTestGateway(t, mock)
	ctx := context.Background()

	first, err := gateway.RecommendDiscount(ctx, recommendationRequest())
	require.NoError(t, err)
	assert.Equal(t, AdvisorySourceModel, first.Source)
	assert.Equal(t, 1, mock.RecommendCalls)

	// Identical request again: served from cache, upstream untouched.
	second, err := gateway.RecommendDiscount(ctx, recommendationRequest())
	require.NoError(t, err)
	assert.Equal(t, first.RecommendedDiscount, second.RecommendedDiscount)
	assert.Equal(t, 1, mock.RecommendCalls)

	stats := metrics.StatsFor(OpRecommendDiscount, time.Hour)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.Successes)
}

func TestGatewayRecommendDiscountCacheExpires(t *testing.T) {
	mock := NewMockAdvisoryService()
	gateway, _, _, clock := newTestGateway(t, mock)
	ctx := context.Background()

	_, err := gateway.RecommendDiscount(ctx, recommendationRequest())
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)

	_, err = gateway.RecommendDiscount(ctx, recommendationRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.RecommendCalls, "expired cache entry must trigger a fresh upstream call")
}

func TestGatewayRecommendDiscountFallsBackOnError(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("upstream exploded")
	gateway, metrics, breaker, _ := newTestGateway(t, mock)

	rec, err := gateway.RecommendDiscount(context.Background(), recommendationRequest())
	require.NoError(t, err, "scoring operations never surface upstream errors")
	assert.Equal(t, AdvisorySourceFallback, rec.Source)
	assert.Equal(t, float64(5), rec.RecommendedDiscount)
	assert.Equal(t, float64(20), rec.ExpectedMargin)
	assert.Equal(t, 0.5, rec.Confidence)
	assert.Equal(t, 1, breaker.FailureCount())

	stats := metrics.StatsFor(OpRecommendDiscount, time.Hour)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Fallbacks)
}

func TestGatewayRecommendDiscountTimesOut(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.Delay = 3 * time.Second
	gateway, metrics, _, _ := newTestGateway(t, mock)

	start := time.Now()
	rec, err := gateway.RecommendDiscount(context.Background(), recommendationRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, AdvisorySourceFallback, rec.Source)
	assert.Less(t, elapsed, 3*time.Second, "the hard timeout must cut the call short")

	stats := metrics.StatsFor(OpRecommendDiscount, time.Hour)
	assert.Equal(t, int64(1), stats.Timeouts)
}

func TestGatewayShortCircuitsWhenBreakerOpen(t *testing.T) {
	mock := NewMockAdvisoryService()
	gateway, metrics, breaker, _ := newTestGateway(t, mock)

	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	require.True(t, breaker.IsOpen())

	rec, err := gateway.RecommendDiscount(context.Background(), recommendationRequest())
	require.NoError(t, err)
	assert.Equal(t, AdvisorySourceFallback, rec.Source)
	assert.Equal(t, 0, mock.RecommendCalls, "open breaker must skip the upstream entirely")

	stats := metrics.StatsFor(OpRecommendDiscount, time.Hour)
	assert.Equal(t, int64(1), stats.BreakerOpenSkips)
}

func TestGatewayBreakerRecoversAfterCooldown(t *testing.T) {
	mock := NewMockAdvisoryService()
	gateway, _, breaker, clock := newTestGateway(t, mock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	require.True(t, breaker.IsOpen())

	clock.Advance(31 * time.Second)

	_, err := gateway.RecommendDiscount(ctx, recommendationRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RecommendCalls, "closed breaker must let calls through again")
}

func TestGatewayRiskScoreFallbackDerivesFromDiscount(t *testing.T) {
	cases := []struct {
		name          string
		discount      float64
		expectedScore float64
		expectedLevel string
	}{
		{name: "small discount", discount: 5, expectedScore: 15, expectedLevel: "very-low"},
		{name: "moderate discount", discount: 15, expectedScore: 45, expectedLevel: "low"},
		{name: "large discount", discount: 25, expectedScore: 75, expectedLevel: "medium"},
		{name: "extreme discount clamps", discount: 60, expectedScore: 100, expectedLevel: "high"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := NewMockAdvisoryService()
			mock.FailWith = errors.New("down")
			gateway, _, _, _ := newTestGateway(t, mock)

			score, err := gateway.CalculateRiskScore(context.Background(), &AdvisoryRiskRequest{
				TenantID:          1,
				RequestedDiscount: tc.discount,
			})
			require.NoError(t, err)
			assert.Equal(t, AdvisorySourceFallback, score.Source)
			assert.Equal(t, tc.expectedScore, score.Score)
			assert.Equal(t, tc.expectedLevel, score.Level)
		})
	}
}

func TestGatewayExplanationFallback(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("down")
	gateway, _, _, _ := newTestGateway(t, mock)

	explanation, err := gateway.ExplainDecision(context.Background(), &DecisionExplanationRequest{
		TenantID:  1,
		Decision:  "auto-approved",
		RiskScore: 42.5,
	})
	require.NoError(t, err)
	assert.Equal(t, AdvisorySourceFallback, explanation.Source)
	assert.Contains(t, explanation.Summary, "auto-approved")
	assert.Contains(t, explanation.Summary, "42.5")
	assert.NotEmpty(t, explanation.Factors)
}

func TestGatewayTrainModelAbsorbsFailure(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("training backend down")
	gateway, _, breaker, _ := newTestGateway(t, mock)

	job, err := gateway.TrainModel(context.Background(), &ModelTrainingRequest{TenantID: 1, WindowDays: 90})
	require.NoError(t, err)
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, 1, breaker.FailureCount())
}

func TestGatewayAvailabilityProbeSurfacesErrors(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("unhealthy")
	gateway, _, breaker, _ := newTestGateway(t, mock)

	err := gateway.CheckAvailability(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, breaker.FailureCount(), "probes do not count against the breaker")
}

func TestGatewayGovernanceFallsBackToDisabled(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("down")
	gateway, _, _, _ := newTestGateway(t, mock)

	settings, err := gateway.GetGovernanceSettings(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), settings.TenantID)
	assert.False(t, settings.AIEnabled, "unreachable governance must disable advisory influence")
}

func TestGatewayGovernanceUpdateSurfacesErrors(t *testing.T) {
	mock := NewMockAdvisoryService()
	mock.FailWith = errors.New("down")
	gateway, _, _, _ := newTestGateway(t, mock)

	err := gateway.UpdateGovernanceSettings(context.Background(), &GovernanceSettings{TenantID: 1, AIEnabled: true})
	require.Error(t, err, "administrative updates must not silently fail")
}
