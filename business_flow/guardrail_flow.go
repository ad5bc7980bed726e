// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"fmt"

	"github.com/amirphl/Kusanagi/models"
)

// GuardrailValidator evaluates the tenant's active business rules against a
// discount request. All checks accumulate into one ValidationResult; the only
// short-circuit is a blocked customer, which stops evaluation outright.
type GuardrailValidator interface {
	ValidateDiscountRequest(input *EvaluationInput) (*ValidationResult, error)
	CheckCustomerStatus(customer *models.Customer) *ValidationResult
	CheckDiscountLimits(request *models.DiscountRequest, salesperson *models.Salesperson, rules []*models.BusinessRule) *ValidationResult
	CheckMinimumMargins(request *models.DiscountRequest, rules []*models.BusinessRule, costMap map[uint]models.Money) *ValidationResult
	IsAutoApprovalAllowed(request *models.DiscountRequest, rules []*models.BusinessRule, riskScore float64) bool
}

// GuardrailValidatorImpl implements GuardrailValidator
type GuardrailValidatorImpl struct {
	marginCalc MarginCalculator
}

// NewGuardrailValidator creates a new guardrail validator
func NewGuardrailValidator(marginCalc MarginCalculator) GuardrailValidator {
	return &GuardrailValidatorImpl{marginCalc: marginCalc}
}

// minThreshold folds the smallest present threshold across rules. It returns
// the rule that supplied the winning value so violations can name it.
func minThreshold(rules []*models.BusinessRule, extract func(models.RuleParams) *float64) (float64, *models.BusinessRule, bool) {
	var best float64
	var winner *models.BusinessRule
	for _, rule := range rules {
		v := extract(rule.Params)
		if v == nil {
			continue
		}
		if winner == nil || *v < best {
			best = *v
			winner = rule
		}
	}
	return best, winner, winner != nil
}

// maxThreshold folds the largest present threshold across rules.
func maxThreshold(rules []*models.BusinessRule, extract func(models.RuleParams) *float64) (float64, *models.BusinessRule, bool) {
	var best float64
	var winner *models.BusinessRule
	for _, rule := range rules {
		v := extract(rule.Params)
		if v == nil {
			continue
		}
		if winner == nil || *v > best {
			best = *v
			winner = rule
		}
	}
	return best, winner, winner != nil
}

// activeRulesOfKind selects active rules of one kind in priority order.
func activeRulesOfKind(rules []*models.BusinessRule, kind models.RuleKind) []*models.BusinessRule {
	selected := make([]*models.BusinessRule, 0, len(rules))
	for _, rule := range models.SortRulesByPriority(rules) {
		if rule.Active() && rule.Kind == kind {
			selected = append(selected, rule)
		}
	}
	return selected
}

// ValidateDiscountRequest runs the full guardrail sequence. A blocked
// customer yields exactly one error and skips every further check.
func (v *GuardrailValidatorImpl) ValidateDiscountRequest(input *EvaluationInput) (*ValidationResult, error) {
	if err := input.Validate(); err != nil {
		return nil, NewBusinessError("GUARDRAIL_INPUT_INVALID", "Guardrail input is incomplete", err)
	}

	result := v.CheckCustomerStatus(input.Customer)
	if input.Customer.IsBlocked() {
		return result, nil
	}

	result.Merge(v.CheckDiscountLimits(input.Request, input.Salesperson, input.Rules))
	result.Merge(v.CheckMinimumMargins(input.Request, input.Rules, input.CostMap))
	return result, nil
}

// CheckCustomerStatus fails blocked and non-receivable customers.
func (v *GuardrailValidatorImpl) CheckCustomerStatus(customer *models.Customer) *ValidationResult {
	result := NewValidationResult()
	if customer.IsBlocked() {
		result.AddError(fmt.Sprintf("customer %s is blocked from receiving discounts", customer.Name))
		return result
	}
	if !customer.CanReceiveDiscounts() {
		result.AddError(fmt.Sprintf("customer %s has status %s and cannot receive discounts", customer.Name, customer.Status))
	}
	return result
}

// CheckDiscountLimits enforces the smallest applicable discount ceiling.
// Role-scoped rules bind only requests filed by the matching role.
func (v *GuardrailValidatorImpl) CheckDiscountLimits(request *models.DiscountRequest, salesperson *models.Salesperson, rules []*models.BusinessRule) *ValidationResult {
	result := NewValidationResult()

	applicable := make([]*models.BusinessRule, 0)
	for _, rule := range activeRulesOfKind(rules, models.RuleKindDiscountLimit) {
		if !rule.AppliesToRole(salesperson.Role) {
			continue
		}
		if !rule.AppliesToCustomer(request.CustomerID) {
			continue
		}
		applicable = append(applicable, rule)
	}

	ceiling, winner, ok := minThreshold(applicable, func(p models.RuleParams) *float64 { return p.MaxDiscountPercentage })
	if !ok {
		return result
	}

	if request.RequestedDiscountPercentage > ceiling {
		result.AddError(fmt.Sprintf(
			"requested discount %.2f%% exceeds the %.2f%% limit set by rule %q",
			request.RequestedDiscountPercentage, ceiling, winner.Name,
		))
	}
	return result
}

// CheckMinimumMargins enforces the largest applicable margin floor per line
// item. Items without cost data get a warning and are skipped.
func (v *GuardrailValidatorImpl) CheckMinimumMargins(request *models.DiscountRequest, rules []*models.BusinessRule, costMap map[uint]models.Money) *ValidationResult {
	result := NewValidationResult()

	marginRules := activeRulesOfKind(rules, models.RuleKindMinimumMargin)
	if len(marginRules) == 0 {
		return result
	}

	for _, item := range request.LineItems {
		cost, known := costMap[item.ProductID]
		if !known {
			result.AddWarning(fmt.Sprintf("no cost data for product %q; margin check skipped", item.ProductName))
			continue
		}

		applicable := make([]*models.BusinessRule, 0, len(marginRules))
		for _, rule := range marginRules {
			if rule.AppliesToProduct(item.ProductID) {
				applicable = append(applicable, rule)
			}
		}

		floor, winner, ok := maxThreshold(applicable, func(p models.RuleParams) *float64 { return p.MinimumMarginPercentage })
		if !ok {
			continue
		}

		margin, err := v.marginCalc.MarginPercentage(item.DiscountedAmount(request.Currency), cost.MulInt(int64(item.Quantity)))
		if err != nil {
			result.AddWarning(fmt.Sprintf("margin for product %q could not be computed: %v", item.ProductName, err))
			continue
		}

		if margin < floor {
			result.AddError(fmt.Sprintf(
				"margin %.2f%% on product %q is below the %.2f%% floor set by rule %q",
				margin, item.ProductName, floor, winner.Name,
			))
		}
	}

	return result
}

// IsAutoApprovalAllowed reports whether at least one active auto-approval
// rule admits the request: its discount ceiling (if present) is not exceeded
// and its risk ceiling (if present) is not exceeded.
func (v *GuardrailValidatorImpl) IsAutoApprovalAllowed(request *models.DiscountRequest, rules []*models.BusinessRule, riskScore float64) bool {
	for _, rule := range activeRulesOfKind(rules, models.RuleKindAutoApproval) {
		if p := rule.Params.MaxDiscountPercentage; p != nil && request.RequestedDiscountPercentage > *p {
			continue
		}
		if p := rule.Params.MaxRiskScore; p != nil && riskScore > *p {
			continue
		}
		return true
	}
	return false
}
