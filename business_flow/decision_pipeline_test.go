package businessflow

import (
	"testing"

	"github.com/amirphl/Kusanagi/models"
	fixtures "github.com/amirphl/Kusanagi/testing"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end pipeline runs: risk scoring feeding auto-approval evaluation,
// with realistic customer and salesperson profiles.

func TestNewCustomerLargeDiscountRequiresHumanReview(t *testing.T) {
	riskCalc := newRiskCalculator()

	// Brand-new customer, 35% requested, no cost data anywhere: every
	// sub-score falls back to its unknown default except deviation, which
	// lands in the top bracket.
	input := &EvaluationInput{
		Request:            fixtures.Request(35, fixtures.LineItem(1, 1, 100, 65)),
		Customer:           fixtures.ActiveCustomer(),
		CustomerHistory:    &models.CustomerHistory{},
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: &models.SalespersonHistory{},
		CostMap:            map[uint]models.Money{},
	}

	score, err := riskCalc.CalculateRiskScore(input)
	require.NoError(t, err)
	// 0.25*70 (new customer) + 0.35*90 (deviation) + 0.15*50 + 0.25*50
	assert.InDelta(t, 69, score, 0.001)
	assert.Equal(t, RiskLevelMedium, riskCalc.DetermineRiskLevel(score))
	assert.True(t, riskCalc.RequiresHumanApproval(score))

	evaluation, err := newEvaluator().Evaluate(input, score, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.False(t, evaluation.CanAutoApprove)
	assert.True(t, evaluation.RequiresHumanReview)
}

func TestEstablishedCustomerModestDiscountAutoApproves(t *testing.T) {
	riskCalc := newRiskCalculator()

	customer := fixtures.ActiveCustomer()
	customer.Classification = models.CustomerTierA

	// One product, 50 units at 100 each, 10% off, unit cost 67.50: a 5000
	// basket with a 25% margin after discount.
	input := &EvaluationInput{
		Request:  fixtures.Request(10, fixtures.LineItem(1, 50, 100, 90)),
		Customer: customer,
		CustomerHistory: &models.CustomerHistory{
			TotalRequests:           25,
			RejectionRate:           0.1,
			AverageApprovedDiscount: 10,
			MaxApprovedDiscount:     15,
		},
		Salesperson: fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: &models.SalespersonHistory{
			TotalRequests:            40,
			ApprovalRate:             0.90,
			AverageRequestedDiscount: 10,
			WinRate:                  0.80,
			RecentRejectionTrend:     0.1,
		},
		Rules:   []*models.BusinessRule{fixtures.AutoApprovalRule("standard", utils.ToPtr(15.0), utils.ToPtr(60.0), nil, 100)},
		CostMap: fixtures.CostMap(map[uint]float64{1: 67.5}),
	}

	score, err := riskCalc.CalculateRiskScore(input)
	require.NoError(t, err)
	// 0.25*0 + 0.35*20 + 0.15*15 + 0.25*15
	assert.InDelta(t, 13, score, 0.001)
	assert.False(t, riskCalc.RequiresHumanApproval(score))

	evaluation, err := newEvaluator().Evaluate(input, score, utils.ToPtr(0.80), true)
	require.NoError(t, err)
	assert.True(t, evaluation.CanAutoApprove, "reason: %s", evaluation.Reason)
	assert.False(t, evaluation.RequiresHumanReview)
	assert.Equal(t, 15.0, evaluation.AppliedMaxDiscount)
	assert.Equal(t, 60.0, evaluation.AppliedMaxRiskScore)
}

func TestNegativeMarginBlocksAutoApprovalDespiteLowRisk(t *testing.T) {
	request := fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90))
	request.EstimatedMargin = utils.ToPtr(-5.0)

	input := evaluationInput(request)
	input.CostMap = map[uint]models.Money{}

	evaluation, err := newEvaluator().Evaluate(input, 30, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.False(t, evaluation.CanAutoApprove)
	assert.Equal(t, "negative margin detected", evaluation.Reason)
}
