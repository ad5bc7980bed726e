package businessflow

import (
	"testing"

	"github.com/amirphl/Kusanagi/models"
	fixtures "github.com/amirphl/Kusanagi/testing"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRiskCalculator() RiskScoreCalculator {
	return NewRiskScoreCalculator(NewMarginCalculator())
}

func TestDetermineRiskLevelBoundaries(t *testing.T) {
	calc := newRiskCalculator()

	cases := []struct {
		score    float64
		expected RiskLevel
	}{
		{score: 0, expected: RiskLevelVeryLow},
		{score: 29.99, expected: RiskLevelVeryLow},
		{score: 30, expected: RiskLevelLow},
		{score: 59.99, expected: RiskLevelLow},
		{score: 60, expected: RiskLevelMedium},
		{score: 84.99, expected: RiskLevelMedium},
		{score: 85, expected: RiskLevelHigh},
		{score: 100, expected: RiskLevelHigh},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, calc.DetermineRiskLevel(tc.score), "score %v", tc.score)
	}
}

func TestRequiresHumanApprovalAtMediumBoundary(t *testing.T) {
	calc := newRiskCalculator()

	assert.False(t, calc.RequiresHumanApproval(59.99))
	assert.True(t, calc.RequiresHumanApproval(60))
	assert.True(t, calc.RequiresHumanApproval(100))
}

func TestCalculateRiskScoreLowRiskProfile(t *testing.T) {
	calc := newRiskCalculator()

	input := &EvaluationInput{
		Request:            fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)),
		Customer:           fixtures.ActiveCustomer(),
		CustomerHistory:    fixtures.SolidCustomerHistory(),
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: fixtures.SolidSalespersonHistory(),
		CostMap:            fixtures.CostMap(map[uint]float64{1: 50}),
	}

	score, err := calc.CalculateRiskScore(input)
	require.NoError(t, err)
	// 0.25*0 (customer) + 0.35*20 (deviation) + 0.15*0 (salesperson) + 0.25*5 (margin)
	assert.InDelta(t, 8.25, score, 0.001)
	assert.Equal(t, RiskLevelVeryLow, calc.DetermineRiskLevel(score))
	assert.False(t, calc.RequiresHumanApproval(score))
}

func TestCalculateRiskScoreNewCustomerDefaults(t *testing.T) {
	calc := newRiskCalculator()

	// No customer history, no salesperson history, no cost data, no estimated
	// margin: every sub-score falls back to its unknown default.
	input := &EvaluationInput{
		Request:            fixtures.Request(25, fixtures.LineItem(1, 1, 100, 75)),
		Customer:           fixtures.ActiveCustomer(),
		CustomerHistory:    &models.CustomerHistory{},
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: &models.SalespersonHistory{},
		CostMap:            map[uint]models.Money{},
	}

	score, err := calc.CalculateRiskScore(input)
	require.NoError(t, err)
	// 0.25*70 + 0.35*70 + 0.15*50 + 0.25*50
	assert.InDelta(t, 62, score, 0.001)
	assert.Equal(t, RiskLevelMedium, calc.DetermineRiskLevel(score))
	assert.True(t, calc.RequiresHumanApproval(score))
}

func TestCalculateRiskScoreHighRiskProfile(t *testing.T) {
	calc := newRiskCalculator()

	customer := fixtures.ActiveCustomer()
	customer.Classification = models.CustomerTierD

	input := &EvaluationInput{
		Request:  fixtures.Request(40, fixtures.LineItem(1, 1, 100, 96)),
		Customer: customer,
		CustomerHistory: &models.CustomerHistory{
			TotalRequests:           20,
			RejectionRate:           0.6,
			AverageApprovedDiscount: 5,
			MaxApprovedDiscount:     8,
			HasPaymentDelays:        true,
			HasDefaults:             true,
		},
		Salesperson: fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: &models.SalespersonHistory{
			TotalRequests:            30,
			ApprovalRate:             0.97,
			AverageRequestedDiscount: 30,
			WinRate:                  0.5,
			RecentRejectionTrend:     0.5,
		},
		CostMap: fixtures.CostMap(map[uint]float64{1: 95}),
	}

	score, err := calc.CalculateRiskScore(input)
	require.NoError(t, err)
	// 0.25*100 + 0.35*100 + 0.15*95 + 0.25*95
	assert.InDelta(t, 98, score, 0.001)
	assert.Equal(t, RiskLevelHigh, calc.DetermineRiskLevel(score))
}

func TestCalculateRiskScoreUsesEstimatedMarginWithoutCosts(t *testing.T) {
	calc := newRiskCalculator()

	request := fixtures.Request(5, fixtures.LineItem(1, 1, 100, 95))
	request.EstimatedMargin = utils.ToPtr(3.0)

	input := &EvaluationInput{
		Request:            request,
		Customer:           fixtures.ActiveCustomer(),
		CustomerHistory:    fixtures.SolidCustomerHistory(),
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: fixtures.SolidSalespersonHistory(),
		CostMap:            map[uint]models.Money{},
	}

	score, err := calc.CalculateRiskScore(input)
	require.NoError(t, err)
	// Estimated margin of 3% puts the margin sub-score at 95.
	// 0.25*0 + 0.35*20 + 0.15*0 + 0.25*95
	assert.InDelta(t, 30.75, score, 0.001)
}

func TestCalculateRiskScoreRejectsIncompleteInput(t *testing.T) {
	calc := newRiskCalculator()

	_, err := calc.CalculateRiskScore(&EvaluationInput{})
	require.Error(t, err)
	assert.True(t, IsBusinessError(err))
}

func TestGetRiskAssessmentReasons(t *testing.T) {
	calc := newRiskCalculator()

	t.Run("new customer", func(t *testing.T) {
		input := &EvaluationInput{
			Request:            fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)),
			Customer:           fixtures.ActiveCustomer(),
			CustomerHistory:    &models.CustomerHistory{},
			Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
			SalespersonHistory: &models.SalespersonHistory{},
			CostMap:            map[uint]models.Money{},
		}

		assessment, err := calc.GetRiskAssessment(input)
		require.NoError(t, err)
		assert.Contains(t, assessment.Reasons, "customer has no discount history")
	})

	t.Run("thin margin is reported", func(t *testing.T) {
		input := &EvaluationInput{
			Request:            fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)),
			Customer:           fixtures.ActiveCustomer(),
			CustomerHistory:    fixtures.SolidCustomerHistory(),
			Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
			SalespersonHistory: fixtures.SolidSalespersonHistory(),
			CostMap:            fixtures.CostMap(map[uint]float64{1: 85}),
		}

		assessment, err := calc.GetRiskAssessment(input)
		require.NoError(t, err)

		found := false
		for _, reason := range assessment.Reasons {
			if len(reason) > 0 && reason[:6] == "margin" {
				found = true
			}
		}
		assert.True(t, found, "expected a margin reason in %v", assessment.Reasons)
	})
}
