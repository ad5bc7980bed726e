// Package services provides external service integrations and technical concerns like advisory scoring and tokens
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
)

// Gateway operation names used for cache keys and metrics labels
const (
	OpRecommendDiscount = "recommend-discount"
	OpCalculateRisk     = "risk-score"
	OpExplainDecision   = "explain-decision"
	OpTrainModel        = "train-model"
	OpAvailability      = "availability"
	OpGovernance        = "governance"
)

// Cache TTLs per operation
const (
	recommendCacheTTL   = 5 * time.Minute
	riskScoreCacheTTL   = 5 * time.Minute
	explanationCacheTTL = 15 * time.Minute
)

// Hard call timeouts per operation, combined with the caller's own context.
const (
	scoringCallTimeout       = 2 * time.Second
	trainingCallTimeout      = 30 * time.Second
	availabilityProbeTimeout = 500 * time.Millisecond
	governanceCallTimeout    = 2 * time.Second
)

// ResilientAdvisoryService wraps an AdvisoryService with a response cache, a
// circuit breaker, and hard timeouts. No error from the wrapped service ever
// escapes a scoring operation; every failure path converges on a
// deterministic fallback or a hard-coded safe default.
type ResilientAdvisoryService struct {
	inner   AdvisoryService
	cache   ResponseCache
	breaker *CircuitBreaker
	metrics AdvisoryMetrics
	clock   utils.Clock
}

// NewResilientAdvisoryService creates the gateway. A nil clock falls back to
// UTC wall time.
func NewResilientAdvisoryService(inner AdvisoryService, cache ResponseCache, breaker *CircuitBreaker, metrics AdvisoryMetrics, clock utils.Clock) *ResilientAdvisoryService {
	if clock == nil {
		clock = utils.UTCNow
	}
	return &ResilientAdvisoryService{
		inner:   inner,
		cache:   cache,
		breaker: breaker,
		metrics: metrics,
		clock:   clock,
	}
}

// cacheKey derives a deterministic key from the operation name and the
// serialized request.
func cacheKey(operation string, req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return operation + ":" + hex.EncodeToString(sum[:]), nil
}

func (g *ResilientAdvisoryService) recordCallFailure(operation string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		g.metrics.RecordTimeout(operation)
		return
	}
	g.metrics.RecordError(operation, "error")
}

// RecommendDiscount returns a discount recommendation from cache, the
// advisory model, or the rule-based fallback, in that order of preference.
func (g *ResilientAdvisoryService) RecommendDiscount(ctx context.Context, req *DiscountRecommendationRequest) (*DiscountRecommendation, error) {
	key, keyErr := cacheKey(OpRecommendDiscount, req)
	if keyErr == nil {
		if raw, ok := g.cache.Get(ctx, key); ok {
			var cached DiscountRecommendation
			if json.Unmarshal(raw, &cached) == nil {
				g.metrics.RecordCacheHit(OpRecommendDiscount)
				g.metrics.RecordResponseTime(OpRecommendDiscount, 0, true)
				return &cached, nil
			}
		}
		g.metrics.RecordCacheMiss(OpRecommendDiscount)
	}

	if g.breaker.IsOpen() {
		g.metrics.RecordCircuitBreakerOpen(OpRecommendDiscount)
		return g.recommendationFallback("circuit breaker open"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, scoringCallTimeout)
	defer cancel()

	start := g.clock()
	recommendation, err := g.inner.RecommendDiscount(callCtx, req)
	if err != nil {
		g.breaker.RecordFailure()
		g.recordCallFailure(OpRecommendDiscount, err)
		return g.recommendationFallback(err.Error()), nil
	}

	g.breaker.RecordSuccess()
	g.metrics.RecordSuccess(OpRecommendDiscount)
	g.metrics.RecordResponseTime(OpRecommendDiscount, g.clock().Sub(start), false)

	if keyErr == nil {
		if raw, err := json.Marshal(recommendation); err == nil {
			_ = g.cache.SetWithTTL(ctx, key, raw, recommendCacheTTL)
		}
	}
	return recommendation, nil
}

// recommendationFallback is the deterministic rule-based recommendation. A
// panic inside it degrades to the safe default instead of escaping.
func (g *ResilientAdvisoryService) recommendationFallback(reason string) (rec *DiscountRecommendation) {
	defer func() {
		if r := recover(); r != nil {
			rec = &DiscountRecommendation{Source: AdvisorySourceDefault}
		}
	}()

	g.metrics.RecordFallbackUsed(OpRecommendDiscount, reason)
	return &DiscountRecommendation{
		RecommendedDiscount: 5,
		ExpectedMargin:      20,
		Confidence:          0.5,
		Rationale:           "conservative rule-based recommendation; advisory service unavailable",
		Source:              AdvisorySourceFallback,
	}
}

// CalculateRiskScore returns an advisory risk score from cache, the model, or
// the rule-based fallback.
func (g *ResilientAdvisoryService) CalculateRiskScore(ctx context.Context, req *AdvisoryRiskRequest) (*AdvisoryRiskScore, error) {
	key, keyErr := cacheKey(OpCalculateRisk, req)
	if keyErr == nil {
		if raw, ok := g.cache.Get(ctx, key); ok {
			var cached AdvisoryRiskScore
			if json.Unmarshal(raw, &cached) == nil {
				g.metrics.RecordCacheHit(OpCalculateRisk)
				g.metrics.RecordResponseTime(OpCalculateRisk, 0, true)
				return &cached, nil
			}
		}
		g.metrics.RecordCacheMiss(OpCalculateRisk)
	}

	if g.breaker.IsOpen() {
		g.metrics.RecordCircuitBreakerOpen(OpCalculateRisk)
		return g.riskScoreFallback(req, "circuit breaker open"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, scoringCallTimeout)
	defer cancel()

	start := g.clock()
	score, err := g.inner.CalculateRiskScore(callCtx, req)
	if err != nil {
		g.breaker.RecordFailure()
		g.recordCallFailure(OpCalculateRisk, err)
		return g.riskScoreFallback(req, err.Error()), nil
	}

	g.breaker.RecordSuccess()
	g.metrics.RecordSuccess(OpCalculateRisk)
	g.metrics.RecordResponseTime(OpCalculateRisk, g.clock().Sub(start), false)

	if keyErr == nil {
		if raw, err := json.Marshal(score); err == nil {
			_ = g.cache.SetWithTTL(ctx, key, raw, riskScoreCacheTTL)
		}
	}
	return score, nil
}

// riskScoreFallback derives risk purely from the requested discount. A panic
// inside it degrades to the maximum-risk safe default, forcing human review.
func (g *ResilientAdvisoryService) riskScoreFallback(req *AdvisoryRiskRequest, reason string) (score *AdvisoryRiskScore) {
	defer func() {
		if r := recover(); r != nil {
			score = &AdvisoryRiskScore{Score: 100, Level: "high", Source: AdvisorySourceDefault}
		}
	}()

	g.metrics.RecordFallbackUsed(OpCalculateRisk, reason)

	derived := utils.Clamp(req.RequestedDiscount*3, 0, 100)
	return &AdvisoryRiskScore{
		Score:      derived,
		Level:      riskLevelForScore(derived),
		Confidence: 0.5,
		Source:     AdvisorySourceFallback,
	}
}

func riskLevelForScore(score float64) string {
	switch {
	case score >= 85:
		return "high"
	case score >= 60:
		return "medium"
	case score >= 30:
		return "low"
	default:
		return "very-low"
	}
}

// ExplainDecision returns a decision explanation from cache, the model, or a
// generic rule-based summary.
func (g *ResilientAdvisoryService) ExplainDecision(ctx context.Context, req *DecisionExplanationRequest) (*DecisionExplanation, error) {
	key, keyErr := cacheKey(OpExplainDecision, req)
	if keyErr == nil {
		if raw, ok := g.cache.Get(ctx, key); ok {
			var cached DecisionExplanation
			if json.Unmarshal(raw, &cached) == nil {
				g.metrics.RecordCacheHit(OpExplainDecision)
				g.metrics.RecordResponseTime(OpExplainDecision, 0, true)
				return &cached, nil
			}
		}
		g.metrics.RecordCacheMiss(OpExplainDecision)
	}

	if g.breaker.IsOpen() {
		g.metrics.RecordCircuitBreakerOpen(OpExplainDecision)
		return g.explanationFallback(req, "circuit breaker open"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, scoringCallTimeout)
	defer cancel()

	start := g.clock()
	explanation, err := g.inner.ExplainDecision(callCtx, req)
	if err != nil {
		g.breaker.RecordFailure()
		g.recordCallFailure(OpExplainDecision, err)
		return g.explanationFallback(req, err.Error()), nil
	}

	g.breaker.RecordSuccess()
	g.metrics.RecordSuccess(OpExplainDecision)
	g.metrics.RecordResponseTime(OpExplainDecision, g.clock().Sub(start), false)

	if keyErr == nil {
		if raw, err := json.Marshal(explanation); err == nil {
			_ = g.cache.SetWithTTL(ctx, key, raw, explanationCacheTTL)
		}
	}
	return explanation, nil
}

// explanationFallback renders a generic rule-based summary. A panic inside it
// degrades to generic error text.
func (g *ResilientAdvisoryService) explanationFallback(req *DecisionExplanationRequest, reason string) (explanation *DecisionExplanation) {
	defer func() {
		if r := recover(); r != nil {
			explanation = &DecisionExplanation{
				Summary: "an explanation could not be generated for this decision",
				Source:  AdvisorySourceDefault,
			}
		}
	}()

	g.metrics.RecordFallbackUsed(OpExplainDecision, reason)
	return &DecisionExplanation{
		Summary: fmt.Sprintf("the request was %s based on its risk score of %.1f and the tenant's business rules", req.Decision, req.RiskScore),
		Factors: []string{
			"risk score computed from customer history, discount deviation, salesperson behavior, and margin impact",
			"active business rules of the tenant",
		},
		Source: AdvisorySourceFallback,
	}
}

// TrainModel submits a retraining run with a long timeout. Failures are
// absorbed into a failed job descriptor rather than propagated.
func (g *ResilientAdvisoryService) TrainModel(ctx context.Context, req *ModelTrainingRequest) (*ModelTrainingJob, error) {
	callCtx, cancel := context.WithTimeout(ctx, trainingCallTimeout)
	defer cancel()

	start := g.clock()
	job, err := g.inner.TrainModel(callCtx, req)
	if err != nil {
		g.breaker.RecordFailure()
		g.recordCallFailure(OpTrainModel, err)
		g.metrics.RecordFallbackUsed(OpTrainModel, err.Error())
		return &ModelTrainingJob{Status: "failed", SubmittedAt: g.clock()}, nil
	}

	g.breaker.RecordSuccess()
	g.metrics.RecordSuccess(OpTrainModel)
	g.metrics.RecordResponseTime(OpTrainModel, g.clock().Sub(start), false)
	return job, nil
}

// CheckAvailability probes the advisory service with a tight timeout. The
// returned error is the probe result and does not count against the breaker.
func (g *ResilientAdvisoryService) CheckAvailability(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, availabilityProbeTimeout)
	defer cancel()

	err := g.inner.CheckAvailability(callCtx)
	if err != nil {
		g.recordCallFailure(OpAvailability, err)
		return err
	}
	g.metrics.RecordSuccess(OpAvailability)
	return nil
}

// GetGovernanceSettings passes through with a short timeout. On failure the
// tenant is treated as having advisory disabled.
func (g *ResilientAdvisoryService) GetGovernanceSettings(ctx context.Context, tenantID uint) (*GovernanceSettings, error) {
	callCtx, cancel := context.WithTimeout(ctx, governanceCallTimeout)
	defer cancel()

	settings, err := g.inner.GetGovernanceSettings(callCtx, tenantID)
	if err != nil {
		g.recordCallFailure(OpGovernance, err)
		g.metrics.RecordFallbackUsed(OpGovernance, err.Error())
		return &GovernanceSettings{TenantID: tenantID, AIEnabled: false}, nil
	}
	g.metrics.RecordSuccess(OpGovernance)
	return settings, nil
}

// UpdateGovernanceSettings passes through with a short timeout. Updates are
// administrative, so failures are reported to the caller.
func (g *ResilientAdvisoryService) UpdateGovernanceSettings(ctx context.Context, settings *GovernanceSettings) error {
	callCtx, cancel := context.WithTimeout(ctx, governanceCallTimeout)
	defer cancel()

	if err := g.inner.UpdateGovernanceSettings(callCtx, settings); err != nil {
		g.recordCallFailure(OpGovernance, err)
		return fmt.Errorf("failed to update governance settings: %w", err)
	}
	g.metrics.RecordSuccess(OpGovernance)
	return nil
}
