// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/shopspring/decimal"
)

// AutoApprovalEvaluator composes guardrail validation, the risk score, and
// advisory confidence into a single approve/deny-with-reason verdict. It is
// state-free; every call is independent.
type AutoApprovalEvaluator interface {
	Evaluate(input *EvaluationInput, riskScore float64, advisoryConfidence *float64, advisoryEnabled bool) (*AutoApprovalEvaluation, error)
	CanOverrideAutoRejection(user *models.Salesperson, evaluation *AutoApprovalEvaluation) bool
}

// AutoApprovalEvaluatorImpl implements AutoApprovalEvaluator
type AutoApprovalEvaluatorImpl struct {
	guardrails GuardrailValidator
}

// NewAutoApprovalEvaluator creates a new auto-approval evaluator
func NewAutoApprovalEvaluator(guardrails GuardrailValidator) AutoApprovalEvaluator {
	return &AutoApprovalEvaluatorImpl{guardrails: guardrails}
}

// autoApprovalThresholds are the effective ceilings applied to one evaluation
type autoApprovalThresholds struct {
	maxRiskScore  float64
	minConfidence float64
	maxDiscount   float64
}

// resolveThresholds folds the most restrictive value across all active
// auto-approval rules: smallest risk ceiling, largest confidence floor,
// smallest discount ceiling. Defaults fill in whatever no rule supplies.
func (e *AutoApprovalEvaluatorImpl) resolveThresholds(rules []*models.BusinessRule) autoApprovalThresholds {
	thresholds := autoApprovalThresholds{
		maxRiskScore:  utils.DefaultMaxRiskScore,
		minConfidence: utils.DefaultMinAIConfidence,
		maxDiscount:   utils.DefaultMaxDiscountPercentage,
	}

	autoRules := activeRulesOfKind(rules, models.RuleKindAutoApproval)

	if v, _, ok := minThreshold(autoRules, func(p models.RuleParams) *float64 { return p.MaxRiskScore }); ok {
		thresholds.maxRiskScore = v
	}
	if v, _, ok := maxThreshold(autoRules, func(p models.RuleParams) *float64 { return p.MinAIConfidence }); ok {
		thresholds.minConfidence = v
	}
	if v, _, ok := minThreshold(autoRules, func(p models.RuleParams) *float64 { return p.MaxDiscountPercentage }); ok {
		thresholds.maxDiscount = v
	}

	return thresholds
}

// Evaluate runs the ordered auto-approval pipeline, short-circuiting on the
// first failing check.
func (e *AutoApprovalEvaluatorImpl) Evaluate(input *EvaluationInput, riskScore float64, advisoryConfidence *float64, advisoryEnabled bool) (*AutoApprovalEvaluation, error) {
	if err := input.Validate(); err != nil {
		return nil, NewBusinessError("AUTO_APPROVAL_INPUT_INVALID", "Auto-approval input is incomplete", err)
	}

	thresholds := e.resolveThresholds(input.Rules)
	evaluation := &AutoApprovalEvaluation{
		RequestUUID:          input.Request.UUID,
		RiskScore:            riskScore,
		AdvisoryConfidence:   advisoryConfidence,
		AppliedMaxRiskScore:  thresholds.maxRiskScore,
		AppliedMinConfidence: thresholds.minConfidence,
		AppliedMaxDiscount:   thresholds.maxDiscount,
		Safety:               SafetyCheckResult{Passed: true},
	}

	// 1. Guardrails. A hard-rule violation denies outright and is never
	// eligible for human override.
	guardrails, err := e.guardrails.ValidateDiscountRequest(input)
	if err != nil {
		return nil, err
	}
	evaluation.Guardrails = guardrails
	if !guardrails.IsValid() {
		evaluation.GuardrailViolation = true
		evaluation.Reason = "request violates guardrails"
		return evaluation, nil
	}

	// 2. Discount ceiling resolved from auto-approval rules.
	if input.Request.RequestedDiscountPercentage > thresholds.maxDiscount {
		evaluation.Reason = fmt.Sprintf(
			"requested discount %.2f%% exceeds the auto-approval ceiling of %.2f%%",
			input.Request.RequestedDiscountPercentage, thresholds.maxDiscount,
		)
		evaluation.RequiresHumanReview = true
		return evaluation, nil
	}

	// 3. Risk ceiling.
	if riskScore > thresholds.maxRiskScore {
		evaluation.Reason = fmt.Sprintf(
			"risk score %.1f exceeds the auto-approval ceiling of %.1f",
			riskScore, thresholds.maxRiskScore,
		)
		evaluation.RequiresHumanReview = true
		return evaluation, nil
	}

	// 4. Advisory confidence. An unknown confidence never auto-approves.
	if advisoryEnabled {
		if advisoryConfidence == nil {
			evaluation.Reason = "advisory confidence unavailable"
			evaluation.RequiresHumanReview = true
			return evaluation, nil
		}
		if *advisoryConfidence < thresholds.minConfidence {
			evaluation.Reason = fmt.Sprintf(
				"advisory confidence %.2f is below the %.2f floor",
				*advisoryConfidence, thresholds.minConfidence,
			)
			evaluation.RequiresHumanReview = true
			return evaluation, nil
		}
	}

	// 5. Fixed safety checks, independent of tenant configuration.
	if safety := e.safetyChecks(input); !safety.Passed {
		evaluation.Safety = safety
		evaluation.Reason = safety.Reason
		evaluation.RequiresHumanReview = true
		return evaluation, nil
	}

	evaluation.CanAutoApprove = true
	evaluation.Reason = "all auto-approval criteria met"
	return evaluation, nil
}

// safetyChecks are hard, tenant-independent limits on what may ever be
// approved without a human.
func (e *AutoApprovalEvaluatorImpl) safetyChecks(input *EvaluationInput) SafetyCheckResult {
	if !utils.IsTrue(input.Customer.IsActive) {
		return SafetyCheckResult{Reason: "customer is inactive"}
	}
	if !utils.IsTrue(input.Salesperson.IsActive) {
		return SafetyCheckResult{Reason: "salesperson is inactive"}
	}

	limit := decimal.NewFromFloat(utils.MaxAutoApprovalOrderValue)
	if input.Request.TotalBaseAmount().Amount.GreaterThan(limit) {
		return SafetyCheckResult{Reason: "order value exceeds auto-approval limit"}
	}

	if input.Request.EstimatedMargin != nil && *input.Request.EstimatedMargin < 0 {
		return SafetyCheckResult{Reason: "negative margin detected"}
	}

	if len(input.Request.LineItems) > utils.MaxAutoApprovalLineItems {
		return SafetyCheckResult{Reason: fmt.Sprintf("request exceeds %d line items", utils.MaxAutoApprovalLineItems)}
	}

	return SafetyCheckResult{Passed: true}
}

// CanOverrideAutoRejection reports whether the user may override a denied
// evaluation. Only managers and admins may, and never for guardrail failures.
func (e *AutoApprovalEvaluatorImpl) CanOverrideAutoRejection(user *models.Salesperson, evaluation *AutoApprovalEvaluation) bool {
	if user == nil || evaluation == nil {
		return false
	}
	if evaluation.CanAutoApprove {
		return false
	}
	if evaluation.GuardrailViolation {
		return false
	}
	return user.CanOverrideRejections()
}
