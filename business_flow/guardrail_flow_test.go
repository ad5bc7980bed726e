package businessflow

import (
	"testing"

	"github.com/amirphl/Kusanagi/models"
	fixtures "github.com/amirphl/Kusanagi/testing"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardrailValidator() GuardrailValidator {
	return NewGuardrailValidator(NewMarginCalculator())
}

func guardrailInput(request *models.DiscountRequest, customer *models.Customer, rules []*models.BusinessRule, costs map[uint]float64) *EvaluationInput {
	return &EvaluationInput{
		Request:            request,
		Customer:           customer,
		CustomerHistory:    fixtures.SolidCustomerHistory(),
		Salesperson:        fixtures.SalespersonWithRole(models.SalespersonRoleSales),
		SalespersonHistory: fixtures.SolidSalespersonHistory(),
		Rules:              rules,
		CostMap:            fixtures.CostMap(costs),
	}
}

func TestValidateDiscountRequestBlockedCustomerShortCircuits(t *testing.T) {
	validator := newGuardrailValidator()

	// The request would also violate the discount limit, but a blocked
	// customer stops evaluation after the first error.
	input := guardrailInput(
		fixtures.Request(50, fixtures.LineItem(1, 1, 100, 50)),
		fixtures.BlockedCustomer(),
		[]*models.BusinessRule{fixtures.DiscountLimitRule("cap", 10, 100)},
		nil,
	)

	result, err := validator.ValidateDiscountRequest(input)
	require.NoError(t, err)
	assert.False(t, result.IsValid())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "blocked")
}

func TestCheckCustomerStatus(t *testing.T) {
	validator := newGuardrailValidator()

	t.Run("active customer passes", func(t *testing.T) {
		result := validator.CheckCustomerStatus(fixtures.ActiveCustomer())
		assert.True(t, result.IsValid())
	})

	t.Run("suspended customer fails", func(t *testing.T) {
		customer := fixtures.ActiveCustomer()
		customer.Status = models.CustomerStatusSuspended
		result := validator.CheckCustomerStatus(customer)
		assert.False(t, result.IsValid())
	})
}

func TestCheckDiscountLimits(t *testing.T) {
	validator := newGuardrailValidator()
	salesperson := fixtures.SalespersonWithRole(models.SalespersonRoleSales)

	t.Run("smallest ceiling wins", func(t *testing.T) {
		rules := []*models.BusinessRule{
			fixtures.DiscountLimitRule("loose cap", 30, 100),
			fixtures.DiscountLimitRule("tight cap", 12, 200),
		}

		result := validator.CheckDiscountLimits(fixtures.Request(15, fixtures.LineItem(1, 1, 100, 85)), salesperson, rules)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "tight cap")
		assert.Contains(t, result.Errors[0], "12.00%")
	})

	t.Run("request within every ceiling passes", func(t *testing.T) {
		rules := []*models.BusinessRule{fixtures.DiscountLimitRule("cap", 20, 100)}
		result := validator.CheckDiscountLimits(fixtures.Request(15, fixtures.LineItem(1, 1, 100, 85)), salesperson, rules)
		assert.True(t, result.IsValid())
	})

	t.Run("inactive rules are ignored", func(t *testing.T) {
		rule := fixtures.DiscountLimitRule("cap", 10, 100)
		rule.IsActive = utils.ToPtr(false)
		result := validator.CheckDiscountLimits(fixtures.Request(15, fixtures.LineItem(1, 1, 100, 85)), salesperson, []*models.BusinessRule{rule})
		assert.True(t, result.IsValid())
	})

	t.Run("role-scoped rule binds only matching roles", func(t *testing.T) {
		rule := fixtures.DiscountLimitRule("sales cap", 10, 100)
		rule.Scope = models.RuleScopeUserRole
		rule.TargetKey = utils.ToPtr(models.SalespersonRoleSales)
		request := fixtures.Request(15, fixtures.LineItem(1, 1, 100, 85))

		result := validator.CheckDiscountLimits(request, salesperson, []*models.BusinessRule{rule})
		assert.False(t, result.IsValid(), "sales role is bound by the rule")

		manager := fixtures.SalespersonWithRole(models.SalespersonRoleManager)
		result = validator.CheckDiscountLimits(request, manager, []*models.BusinessRule{rule})
		assert.True(t, result.IsValid(), "manager role is not bound by a sales-scoped rule")
	})

	t.Run("customer-scoped rule binds only its customer", func(t *testing.T) {
		rule := fixtures.DiscountLimitRule("vip cap", 10, 100)
		rule.Scope = models.RuleScopeCustomer
		rule.TargetID = utils.ToPtr(uint(999))
		request := fixtures.Request(15, fixtures.LineItem(1, 1, 100, 85))

		result := validator.CheckDiscountLimits(request, salesperson, []*models.BusinessRule{rule})
		assert.True(t, result.IsValid(), "rule targets a different customer")

		rule.TargetID = utils.ToPtr(request.CustomerID)
		result = validator.CheckDiscountLimits(request, salesperson, []*models.BusinessRule{rule})
		assert.False(t, result.IsValid())
	})

	t.Run("no applicable rules means no ceiling", func(t *testing.T) {
		result := validator.CheckDiscountLimits(fixtures.Request(95, fixtures.LineItem(1, 1, 100, 5)), salesperson, nil)
		assert.True(t, result.IsValid())
	})
}

func TestCheckMinimumMargins(t *testing.T) {
	validator := newGuardrailValidator()

	t.Run("margin below the floor fails", func(t *testing.T) {
		// qty 2 at 90 discounted vs unit cost 40: margin 55.56%.
		request := fixtures.Request(10, fixtures.LineItem(1, 2, 100, 90))
		rules := []*models.BusinessRule{fixtures.MinimumMarginRule("floor", 60, 100)}

		result := validator.CheckMinimumMargins(request, rules, fixtures.CostMap(map[uint]float64{1: 40}))
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "floor")
	})

	t.Run("largest floor wins", func(t *testing.T) {
		request := fixtures.Request(10, fixtures.LineItem(1, 2, 100, 90))
		rules := []*models.BusinessRule{
			fixtures.MinimumMarginRule("low floor", 20, 100),
			fixtures.MinimumMarginRule("high floor", 60, 200),
		}

		result := validator.CheckMinimumMargins(request, rules, fixtures.CostMap(map[uint]float64{1: 40}))
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "high floor")
	})

	t.Run("margin above the floor passes", func(t *testing.T) {
		request := fixtures.Request(10, fixtures.LineItem(1, 2, 100, 90))
		rules := []*models.BusinessRule{fixtures.MinimumMarginRule("floor", 50, 100)}

		result := validator.CheckMinimumMargins(request, rules, fixtures.CostMap(map[uint]float64{1: 40}))
		assert.True(t, result.IsValid())
	})

	t.Run("unknown cost warns instead of failing", func(t *testing.T) {
		request := fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90))
		rules := []*models.BusinessRule{fixtures.MinimumMarginRule("floor", 60, 100)}

		result := validator.CheckMinimumMargins(request, rules, map[uint]models.Money{})
		assert.True(t, result.IsValid())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "no cost data")
	})

	t.Run("product-scoped rule skips other products", func(t *testing.T) {
		rule := fixtures.MinimumMarginRule("widget floor", 60, 100)
		rule.Scope = models.RuleScopeProduct
		rule.TargetID = utils.ToPtr(uint(2))

		request := fixtures.Request(10, fixtures.LineItem(1, 2, 100, 90))
		result := validator.CheckMinimumMargins(request, []*models.BusinessRule{rule}, fixtures.CostMap(map[uint]float64{1: 40}))
		assert.True(t, result.IsValid(), "rule targets product 2, item is product 1")
	})

	t.Run("no margin rules skips cost lookups entirely", func(t *testing.T) {
		request := fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90))
		result := validator.CheckMinimumMargins(request, nil, map[uint]models.Money{})
		assert.True(t, result.IsValid())
		assert.Empty(t, result.Warnings)
	})
}

func TestIsAutoApprovalAllowed(t *testing.T) {
	validator := newGuardrailValidator()
	request := fixtures.Request(10, fixtures.LineItem(1, 1, 100, 90))

	t.Run("no auto-approval rules denies", func(t *testing.T) {
		assert.False(t, validator.IsAutoApprovalAllowed(request, nil, 10))
	})

	t.Run("rule within both ceilings admits", func(t *testing.T) {
		rules := []*models.BusinessRule{
			fixtures.AutoApprovalRule("auto", utils.ToPtr(15.0), utils.ToPtr(50.0), nil, 100),
		}
		assert.True(t, validator.IsAutoApprovalAllowed(request, rules, 30))
	})

	t.Run("risk above the rule ceiling denies", func(t *testing.T) {
		rules := []*models.BusinessRule{
			fixtures.AutoApprovalRule("auto", utils.ToPtr(15.0), utils.ToPtr(50.0), nil, 100),
		}
		assert.False(t, validator.IsAutoApprovalAllowed(request, rules, 55))
	})

	t.Run("any admitting rule suffices", func(t *testing.T) {
		rules := []*models.BusinessRule{
			fixtures.AutoApprovalRule("strict", utils.ToPtr(5.0), utils.ToPtr(10.0), nil, 100),
			fixtures.AutoApprovalRule("lenient", utils.ToPtr(20.0), utils.ToPtr(80.0), nil, 200),
		}
		assert.True(t, validator.IsAutoApprovalAllowed(request, rules, 70))
	})
}
