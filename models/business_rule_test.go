package models

import (
	"testing"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule(kind RuleKind, params RuleParams) *BusinessRule {
	return &BusinessRule{
		TenantID: 1,
		Name:     "test rule",
		Kind:     kind,
		Scope:    RuleScopeGlobal,
		Params:   params,
		Priority: 100,
		IsActive: utils.ToPtr(true),
	}
}

func TestBusinessRuleValidate(t *testing.T) {
	cases := []struct {
		name    string
		rule    *BusinessRule
		wantErr error
	}{
		{
			name: "valid minimum-margin rule",
			rule: validRule(RuleKindMinimumMargin, RuleParams{MinimumMarginPercentage: utils.ToPtr(20.0)}),
		},
		{
			name: "valid discount-limit rule",
			rule: validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)}),
		},
		{
			name: "valid auto-approval rule",
			rule: validRule(RuleKindAutoApproval, RuleParams{MaxRiskScore: utils.ToPtr(50.0), MinAIConfidence: utils.ToPtr(0.8)}),
		},
		{
			name: "auto-approval with no thresholds at all",
			rule: validRule(RuleKindAutoApproval, RuleParams{}),
		},
		{
			name:    "unknown kind",
			rule:    validRule(RuleKind("velocity-limit"), RuleParams{}),
			wantErr: ErrInvalidRuleKind,
		},
		{
			name: "unknown scope",
			rule: func() *BusinessRule {
				r := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
				r.Scope = RuleScope("region")
				return r
			}(),
			wantErr: ErrInvalidRuleScope,
		},
		{
			name: "product scope without target id",
			rule: func() *BusinessRule {
				r := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
				r.Scope = RuleScopeProduct
				return r
			}(),
			wantErr: ErrRuleTargetRequired,
		},
		{
			name: "user-role scope without target key",
			rule: func() *BusinessRule {
				r := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
				r.Scope = RuleScopeUserRole
				return r
			}(),
			wantErr: ErrRuleTargetRequired,
		},
		{
			name:    "minimum-margin without its threshold",
			rule:    validRule(RuleKindMinimumMargin, RuleParams{}),
			wantErr: ErrRuleParamsRequired,
		},
		{
			name:    "discount-limit without its threshold",
			rule:    validRule(RuleKindDiscountLimit, RuleParams{}),
			wantErr: ErrRuleParamsRequired,
		},
		{
			name: "minimum-margin carrying foreign params",
			rule: validRule(RuleKindMinimumMargin, RuleParams{
				MinimumMarginPercentage: utils.ToPtr(20.0),
				MaxRiskScore:            utils.ToPtr(50.0),
			}),
			wantErr: ErrRuleParamsForeign,
		},
		{
			name:    "auto-approval carrying a margin floor",
			rule:    validRule(RuleKindAutoApproval, RuleParams{MinimumMarginPercentage: utils.ToPtr(20.0)}),
			wantErr: ErrRuleParamsForeign,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRuleParamsScanTolerance(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		var params RuleParams
		require.NoError(t, params.Scan([]byte(`{"maxDiscountPercentage":12.5}`)))
		require.NotNil(t, params.MaxDiscountPercentage)
		assert.Equal(t, 12.5, *params.MaxDiscountPercentage)
	})

	t.Run("malformed payload scans to empty", func(t *testing.T) {
		var params RuleParams
		require.NoError(t, params.Scan([]byte(`{broken`)))
		assert.True(t, params.IsEmpty())
	})

	t.Run("nil scans to empty", func(t *testing.T) {
		var params RuleParams
		require.NoError(t, params.Scan(nil))
		assert.True(t, params.IsEmpty())
	})

	t.Run("unexpected type scans to empty", func(t *testing.T) {
		var params RuleParams
		require.NoError(t, params.Scan(42))
		assert.True(t, params.IsEmpty())
	})
}

func TestRuleActive(t *testing.T) {
	rule := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
	assert.True(t, rule.Active())

	rule.IsActive = utils.ToPtr(false)
	assert.False(t, rule.Active())

	rule.IsActive = nil
	assert.False(t, rule.Active())
}

func TestRuleScopePredicates(t *testing.T) {
	t.Run("global rule applies everywhere", func(t *testing.T) {
		rule := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
		assert.True(t, rule.AppliesToProduct(1))
		assert.True(t, rule.AppliesToCustomer(1))
		assert.True(t, rule.AppliesToRole(SalespersonRoleSales))
	})

	t.Run("product rule matches its target only", func(t *testing.T) {
		rule := validRule(RuleKindMinimumMargin, RuleParams{MinimumMarginPercentage: utils.ToPtr(20.0)})
		rule.Scope = RuleScopeProduct
		rule.TargetID = utils.ToPtr(uint(7))
		assert.True(t, rule.AppliesToProduct(7))
		assert.False(t, rule.AppliesToProduct(8))
	})

	t.Run("role rule matches its target only", func(t *testing.T) {
		rule := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(15.0)})
		rule.Scope = RuleScopeUserRole
		rule.TargetKey = utils.ToPtr(SalespersonRoleSales)
		assert.True(t, rule.AppliesToRole(SalespersonRoleSales))
		assert.False(t, rule.AppliesToRole(SalespersonRoleManager))
	})
}

func TestSortRulesByPriority(t *testing.T) {
	first := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(10.0)})
	first.Name = "first"
	first.Priority = 10
	second := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(20.0)})
	second.Name = "second"
	second.Priority = 50
	third := validRule(RuleKindDiscountLimit, RuleParams{MaxDiscountPercentage: utils.ToPtr(30.0)})
	third.Name = "third"
	third.Priority = 50

	sorted := SortRulesByPriority([]*BusinessRule{third, second, first})
	require.Len(t, sorted, 3)
	assert.Equal(t, "first", sorted[0].Name)
	// Stable sort keeps the original order of equal priorities.
	assert.Equal(t, "third", sorted[1].Name)
	assert.Equal(t, "second", sorted[2].Name)

	// The input slice is left untouched.
	assert.Equal(t, "third", third.Name)
}
