package businessflow

import (
	"fmt"
	"testing"

	"github.com/amirphl/Kusanagi/models"
	fixtures "github.com/amirphl/Kusanagi/testing"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator() AutoApprovalEvaluator {
	return NewAutoApprovalEvaluator(newGuardrailValidator())
}

func evaluationInput(request *models.DiscountRequest, rules ...*models.BusinessRule) *EvaluationInput {
	return &EvaluationInput{
		Request:            request,
		Customer:           fixtures.ActiveCustomer(),
		CustomerHistory:    fixtures.SolidCustomerHistory(),
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: fixtures.SolidSalespersonHistory(),
		Rules:              rules,
		CostMap:            fixtures.CostMap(map[uint]float64{1: 50}),
	}
}

func TestEvaluateAutoApprovesWhenAllCriteriaPass(t *testing.T) {
	evaluator := newEvaluator()
	input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))

	evaluation, err := evaluator.Evaluate(input, 30, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.True(t, evaluation.CanAutoApprove)
	assert.False(t, evaluation.RequiresHumanReview)
	assert.False(t, evaluation.GuardrailViolation)
	assert.True(t, evaluation.Safety.Passed)
	assert.Equal(t, "all auto-approval criteria met", evaluation.Reason)
}

func TestEvaluateAppliesDefaultThresholds(t *testing.T) {
	evaluator := newEvaluator()
	input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))

	evaluation, err := evaluator.Evaluate(input, 30, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.Equal(t, utils.DefaultMaxRiskScore, evaluation.AppliedMaxRiskScore)
	assert.Equal(t, utils.DefaultMinAIConfidence, evaluation.AppliedMinConfidence)
	assert.Equal(t, utils.DefaultMaxDiscountPercentage, evaluation.AppliedMaxDiscount)
}

func TestEvaluateResolvesMostRestrictiveThresholds(t *testing.T) {
	evaluator := newEvaluator()
	rules := []*models.BusinessRule{
		fixtures.AutoApprovalRule("lenient", utils.ToPtr(25.0), utils.ToPtr(80.0), utils.ToPtr(0.6), 100),
		fixtures.AutoApprovalRule("strict", utils.ToPtr(12.0), utils.ToPtr(40.0), utils.ToPtr(0.9), 200),
	}
	input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)), rules...)

	evaluation, err := evaluator.Evaluate(input, 30, utils.ToPtr(0.95), true)
	require.NoError(t, err)
	assert.Equal(t, 40.0, evaluation.AppliedMaxRiskScore, "smallest risk ceiling wins")
	assert.Equal(t, 0.9, evaluation.AppliedMinConfidence, "largest confidence floor wins")
	assert.Equal(t, 12.0, evaluation.AppliedMaxDiscount, "smallest discount ceiling wins")
	assert.True(t, evaluation.CanAutoApprove)
}

func TestEvaluateGuardrailViolationDeniesOutright(t *testing.T) {
	evaluator := newEvaluator()
	rules := []*models.BusinessRule{fixtures.DiscountLimitRule("cap", 5, 100)}
	input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)), rules...)

	evaluation, err := evaluator.Evaluate(input, 10, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.False(t, evaluation.CanAutoApprove)
	assert.True(t, evaluation.GuardrailViolation)
	assert.False(t, evaluation.RequiresHumanReview, "guardrail failures are terminal, not routed to humans")
	require.NotNil(t, evaluation.Guardrails)
	assert.False(t, evaluation.Guardrails.IsValid())
}

func TestEvaluateDiscountCeilingRoutesToHuman(t *testing.T) {
	evaluator := newEvaluator()
	input := evaluationInput(fixtures.Request(20, fixtures.LineItem(1, 1, 100, 80)))

	evaluation, err := evaluator.Evaluate(input, 30, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.False(t, evaluation.CanAutoApprove)
	assert.True(t, evaluation.RequiresHumanReview)
	assert.False(t, evaluation.GuardrailViolation)
	assert.Contains(t, evaluation.Reason, "ceiling")
}

func TestEvaluateRiskCeilingRoutesToHuman(t *testing.T) {
	evaluator := newEvaluator()
	input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))

	evaluation, err := evaluator.Evaluate(input, 75, utils.ToPtr(0.9), true)
	require.NoError(t, err)
	assert.False(t, evaluation.CanAutoApprove)
	assert.True(t, evaluation.RequiresHumanReview)
	assert.Contains(t, evaluation.Reason, "risk score")
}

func TestEvaluateAdvisoryConfidence(t *testing.T) {
	evaluator := newEvaluator()

	t.Run("missing confidence never auto-approves", func(t *testing.T) {
		input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))
		evaluation, err := evaluator.Evaluate(input, 30, nil, true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.True(t, evaluation.RequiresHumanReview)
		assert.Equal(t, "advisory confidence unavailable", evaluation.Reason)
	})

	t.Run("low confidence routes to human", func(t *testing.T) {
		input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))
		evaluation, err := evaluator.Evaluate(input, 30, utils.ToPtr(0.5), true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.Contains(t, evaluation.Reason, "confidence")
	})

	t.Run("disabled advisory skips the confidence check", func(t *testing.T) {
		input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))
		evaluation, err := evaluator.Evaluate(input, 30, nil, false)
		require.NoError(t, err)
		assert.True(t, evaluation.CanAutoApprove)
	})
}

func TestEvaluateSafetyChecks(t *testing.T) {
	evaluator := newEvaluator()
	confidence := utils.ToPtr(0.9)

	t.Run("inactive salesperson", func(t *testing.T) {
		input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90)))
		input.Salesperson.IsActive = utils.ToPtr(false)

		evaluation, err := evaluator.Evaluate(input, 30, confidence, true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.True(t, evaluation.RequiresHumanReview)
		assert.Equal(t, "salesperson is inactive", evaluation.Reason)
	})

	t.Run("order value above the hard limit", func(t *testing.T) {
		input := evaluationInput(fixtures.Request(10, fixtures.LineItem(1, 2, 60_000, 54_000)))
		input.CostMap = fixtures.CostMap(map[uint]float64{1: 30_000})

		evaluation, err := evaluator.Evaluate(input, 30, confidence, true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.Equal(t, "order value exceeds auto-approval limit", evaluation.Reason)
	})

	t.Run("negative estimated margin", func(t *testing.T) {
		request := fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90))
		request.EstimatedMargin = utils.ToPtr(-2.0)
		input := evaluationInput(request)

		evaluation, err := evaluator.Evaluate(input, 30, confidence, true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.Equal(t, "negative margin detected", evaluation.Reason)
	})

	t.Run("too many line items", func(t *testing.T) {
		items := make([]models.DiscountLineItem, 0, utils.MaxAutoApprovalLineItems+1)
		for i := 0; i <= utils.MaxAutoApprovalLineItems; i++ {
			items = append(items, fixtures.LineItem(uint(i+1), 1, 10, 9))
		}
		input := evaluationInput(fixtures.Request(10, items...))

		evaluation, err := evaluator.Evaluate(input, 30, confidence, true)
		require.NoError(t, err)
		assert.False(t, evaluation.CanAutoApprove)
		assert.Equal(t, fmt.Sprintf("request exceeds %d line items", utils.MaxAutoApprovalLineItems), evaluation.Reason)
	})
}

func TestCanOverrideAutoRejection(t *testing.T) {
	evaluator := newEvaluator()

	denied := &AutoApprovalEvaluation{RequiresHumanReview: true}
	guardrailDenied := &AutoApprovalEvaluation{GuardrailViolation: true}
	approved := &AutoApprovalEvaluation{CanAutoApprove: true}

	cases := []struct {
		name       string
		user       *models.Salesperson
		evaluation *AutoApprovalEvaluation
		expected   bool
	}{
		{name: "manager may override a denial", user: fixtures.SalespersonWithRole(models.SalespersonRoleManager), evaluation: denied, expected: true},
		{name: "admin may override a denial", user: fixtures.SalespersonWithRole(models.SalespersonRoleAdmin), evaluation: denied, expected: true},
		{name: "sales may not override", user: fixtures.SalespersonWithRole(models.SalespersonRoleSales), evaluation: denied, expected: false},
		{name: "guardrail violations are never overridable", user: fixtures.SalespersonWithRole(models.SalespersonRoleAdmin), evaluation: guardrailDenied, expected: false},
		{name: "approvals have nothing to override", user: fixtures.SalespersonWithRole(models.SalespersonRoleManager), evaluation: approved, expected: false},
		{name: "nil user", user: nil, evaluation: denied, expected: false},
		{name: "nil evaluation", user: fixtures.SalespersonWithRole(models.SalespersonRoleManager), evaluation: nil, expected: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, evaluator.CanOverrideAutoRejection(tc.user, tc.evaluation))
		})
	}
}
