// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"fmt"
	"math"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
)

// Sub-score weights. They must sum to 1.
const (
	weightCustomerRisk          = 0.25
	weightDiscountDeviationRisk = 0.35
	weightSalespersonRisk       = 0.15
	weightMarginRisk            = 0.25
)

// Risk level boundaries
const (
	riskLevelLowBoundary    = 30.0
	riskLevelMediumBoundary = 60.0
	riskLevelHighBoundary   = 85.0
)

// RiskScoreCalculator combines four weighted sub-scores into one 0-100 risk
// score plus a coarse risk-level classification.
type RiskScoreCalculator interface {
	CalculateRiskScore(input *EvaluationInput) (float64, error)
	DetermineRiskLevel(score float64) RiskLevel
	RequiresHumanApproval(score float64) bool
	GetRiskAssessment(input *EvaluationInput) (*RiskAssessment, error)
}

// RiskScoreCalculatorImpl implements RiskScoreCalculator
type RiskScoreCalculatorImpl struct {
	marginCalc MarginCalculator
}

// NewRiskScoreCalculator creates a new risk score calculator
func NewRiskScoreCalculator(marginCalc MarginCalculator) RiskScoreCalculator {
	return &RiskScoreCalculatorImpl{marginCalc: marginCalc}
}

// CalculateRiskScore computes the weighted composite score, clamped to [0, 100].
func (c *RiskScoreCalculatorImpl) CalculateRiskScore(input *EvaluationInput) (float64, error) {
	if err := input.Validate(); err != nil {
		return 0, NewBusinessError("RISK_INPUT_INVALID", "Risk score input is incomplete", err)
	}

	customer := c.customerRisk(input.Customer, input.CustomerHistory)
	deviation := c.discountDeviationRisk(input.Request.RequestedDiscountPercentage, input.CustomerHistory)
	salesperson := c.salespersonRisk(input.SalespersonHistory)
	margin := c.marginRisk(input.Request, input.CostMap)

	total := weightCustomerRisk*customer +
		weightDiscountDeviationRisk*deviation +
		weightSalespersonRisk*salesperson +
		weightMarginRisk*margin

	return utils.Clamp(total, 0, 100), nil
}

// DetermineRiskLevel maps a score to its level with fixed 30/60/85 boundaries.
func (c *RiskScoreCalculatorImpl) DetermineRiskLevel(score float64) RiskLevel {
	switch {
	case score >= riskLevelHighBoundary:
		return RiskLevelHigh
	case score >= riskLevelMediumBoundary:
		return RiskLevelMedium
	case score >= riskLevelLowBoundary:
		return RiskLevelLow
	default:
		return RiskLevelVeryLow
	}
}

// RequiresHumanApproval reports whether the score mandates human review.
func (c *RiskScoreCalculatorImpl) RequiresHumanApproval(score float64) bool {
	return score >= riskLevelMediumBoundary
}

// customerRisk scores the customer's track record. A customer with no usable
// history is treated as new and scores a fixed 70.
func (c *RiskScoreCalculatorImpl) customerRisk(customer *models.Customer, history *models.CustomerHistory) float64 {
	if !history.HasData() {
		return 70
	}

	risk := 0.0

	// Highest rejection bracket wins; the brackets are mutually exclusive.
	switch {
	case history.RejectionRate > 0.5:
		risk += 40
	case history.RejectionRate > 0.3:
		risk += 25
	case history.RejectionRate > 0.15:
		risk += 10
	}

	if history.HasPaymentDelays {
		risk += 20
	}
	if history.HasDefaults {
		risk += 30
	}

	if customer.IsTopTier() {
		risk -= 10
	} else if customer.IsBottomTier() {
		risk += 10
	}

	if !customer.CanReceiveDiscounts() || !utils.IsTrue(customer.IsActive) {
		risk += 20
	}

	return utils.Clamp(risk, 0, 100)
}

// discountDeviationRisk scores how far the requested discount strays from the
// customer's approved history.
func (c *RiskScoreCalculatorImpl) discountDeviationRisk(requested float64, history *models.CustomerHistory) float64 {
	if !history.HasData() {
		switch {
		case requested > 30:
			return 90
		case requested > 20:
			return 70
		case requested > 10:
			return 50
		default:
			return 30
		}
	}

	average := history.AverageApprovedDiscount
	var deviation float64
	if average == 0 {
		deviation = requested * 10
	} else {
		deviation = math.Abs(requested-average) / average * 100
	}

	var risk float64
	switch {
	case deviation > 100:
		risk = 90
	case deviation > 75:
		risk = 75
	case deviation > 50:
		risk = 60
	case deviation > 25:
		risk = 40
	default:
		risk = 20
	}

	// Exceeding the historical maximum adds on top of the deviation bracket.
	if requested > history.MaxApprovedDiscount {
		excess := 100.0
		if history.MaxApprovedDiscount > 0 {
			excess = (requested - history.MaxApprovedDiscount) / history.MaxApprovedDiscount * 100
		}
		switch {
		case excess > 50:
			risk += 30
		case excess > 25:
			risk += 20
		default:
			risk += 10
		}
	}

	return utils.Clamp(risk, 0, 100)
}

// salespersonRisk scores the requesting salesperson's behavior. No history
// scores a fixed 50.
func (c *RiskScoreCalculatorImpl) salespersonRisk(history *models.SalespersonHistory) float64 {
	if !history.HasData() {
		return 50
	}

	risk := 0.0

	// Over-approval signal: a salesperson whose requests almost always pass
	// may be gaming thresholds.
	switch {
	case history.ApprovalRate > 0.95:
		risk += 30
	case history.ApprovalRate > 0.85:
		risk += 15
	}

	// Poor-judgment signal
	switch {
	case history.ApprovalRate < 0.50:
		risk += 35
	case history.ApprovalRate < 0.65:
		risk += 20
	}

	switch {
	case history.AverageRequestedDiscount > 25:
		risk += 25
	case history.AverageRequestedDiscount > 15:
		risk += 15
	}

	if history.WinRate < 0.60 {
		risk += 20
	} else if history.WinRate > 0.85 {
		risk -= 15
	}

	if history.RecentRejectionTrend > 0.40 {
		risk += 20
	}

	return utils.Clamp(risk, 0, 100)
}

// marginToRisk converts a margin percentage into a risk bracket.
func marginToRisk(marginPct float64) float64 {
	switch {
	case marginPct < 0:
		return 100
	case marginPct < 5:
		return 95
	case marginPct < 10:
		return 80
	case marginPct < 15:
		return 60
	case marginPct < 20:
		return 40
	case marginPct < 25:
		return 25
	case marginPct < 30:
		return 15
	default:
		return 5
	}
}

// marginRisk averages per-item margin risk across line items with known cost.
// Without any cost data it falls back to the request's estimated margin, and
// to a neutral 50 when that is absent too.
func (c *RiskScoreCalculatorImpl) marginRisk(request *models.DiscountRequest, costMap map[uint]models.Money) float64 {
	total := 0.0
	counted := 0

	for _, item := range request.LineItems {
		cost, ok := costMap[item.ProductID]
		if !ok {
			continue
		}
		margin, err := c.marginCalc.MarginPercentage(item.DiscountedAmount(request.Currency), cost.MulInt(int64(item.Quantity)))
		if err != nil {
			continue
		}
		total += marginToRisk(margin)
		counted++
	}

	if counted > 0 {
		return utils.Clamp(total/float64(counted), 0, 100)
	}
	if request.EstimatedMargin != nil {
		return marginToRisk(*request.EstimatedMargin)
	}
	return 50
}

// GetRiskAssessment computes the score and re-inspects the same inputs to
// produce human-readable contributing reasons. The reasons are explanatory
// text only; they never feed back into the score.
func (c *RiskScoreCalculatorImpl) GetRiskAssessment(input *EvaluationInput) (*RiskAssessment, error) {
	score, err := c.CalculateRiskScore(input)
	if err != nil {
		return nil, err
	}

	reasons := make([]string, 0, 5)

	if !input.CustomerHistory.HasData() {
		reasons = append(reasons, "customer has no discount history")
	} else {
		if input.CustomerHistory.RejectionRate > 0.3 {
			reasons = append(reasons, fmt.Sprintf("customer rejection rate is high (%.0f%%)", input.CustomerHistory.RejectionRate*100))
		}
		if avg := input.CustomerHistory.AverageApprovedDiscount; avg > 0 {
			requested := input.Request.RequestedDiscountPercentage
			if deviation := math.Abs(requested-avg) / avg * 100; deviation > 50 {
				reasons = append(reasons, fmt.Sprintf("requested discount %.1f%% deviates %.0f%% from the customer average of %.1f%%", requested, deviation, avg))
			}
		}
	}

	if lowest, ok := c.lowestItemMargin(input.Request, input.CostMap); ok && lowest < 15 {
		reasons = append(reasons, fmt.Sprintf("margin after discount falls to %.1f%%", lowest))
	}

	if input.SalespersonHistory.HasData() && input.SalespersonHistory.ApprovalRate < 0.65 {
		reasons = append(reasons, fmt.Sprintf("salesperson approval rate is low (%.0f%%)", input.SalespersonHistory.ApprovalRate*100))
	}

	return &RiskAssessment{
		Score:                 score,
		Level:                 c.DetermineRiskLevel(score),
		RequiresHumanApproval: c.RequiresHumanApproval(score),
		Reasons:               reasons,
	}, nil
}

func (c *RiskScoreCalculatorImpl) lowestItemMargin(request *models.DiscountRequest, costMap map[uint]models.Money) (float64, bool) {
	lowest := math.MaxFloat64
	found := false
	for _, item := range request.LineItems {
		cost, ok := costMap[item.ProductID]
		if !ok {
			continue
		}
		margin, err := c.marginCalc.MarginPercentage(item.DiscountedAmount(request.Currency), cost.MulInt(int64(item.Quantity)))
		if err != nil {
			continue
		}
		if margin < lowest {
			lowest = margin
			found = true
		}
	}
	return lowest, found
}
