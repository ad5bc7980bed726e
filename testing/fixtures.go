// Package testing provides fixture builders for exercising the decision engine in tests
package testing

import (
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestTenantID is the tenant every fixture belongs to unless overridden.
const TestTenantID uint = 1

// ActiveCustomer creates an active tier-B customer with clean payment behavior.
func ActiveCustomer() *models.Customer {
	return &models.Customer{
		ID:             10,
		UUID:           uuid.New(),
		TenantID:       TestTenantID,
		Name:           "Globex Corporation",
		Status:         models.CustomerStatusActive,
		Classification: models.CustomerTierB,
		IsActive:       utils.ToPtr(true),
	}
}

// BlockedCustomer creates a customer barred from receiving discounts.
func BlockedCustomer() *models.Customer {
	customer := ActiveCustomer()
	customer.Status = models.CustomerStatusBlocked
	return customer
}

// SalespersonWithRole creates an active salesperson carrying the given role.
func SalespersonWithRole(role string) *models.Salesperson {
	return &models.Salesperson{
		ID:       20,
		UUID:     uuid.New(),
		TenantID: TestTenantID,
		Name:     "Jordan Reyes",
		Email:    fmt.Sprintf("jordan.reyes+%s@example.com", role),
		Role:     role,
		IsActive: utils.ToPtr(true),
	}
}

// LineItem creates a discount line for one product at the given unit prices.
func LineItem(productID uint, quantity int, unitBase, unitDiscounted float64) models.DiscountLineItem {
	base := decimal.NewFromFloat(unitBase)
	discounted := decimal.NewFromFloat(unitDiscounted)
	pct := 0.0
	if unitBase > 0 {
		pct = (unitBase - unitDiscounted) / unitBase * 100
	}
	return models.DiscountLineItem{
		ProductID:              productID,
		ProductName:            fmt.Sprintf("Product %d", productID),
		Quantity:               quantity,
		UnitBasePrice:          base,
		UnitDiscountedPrice:    discounted,
		ItemDiscountPercentage: pct,
	}
}

// Request creates an under-analysis discount request with the given overall
// requested discount and line items.
func Request(requestedDiscount float64, items ...models.DiscountLineItem) *models.DiscountRequest {
	return &models.DiscountRequest{
		ID:                          30,
		UUID:                        uuid.New(),
		TenantID:                    TestTenantID,
		CustomerID:                  10,
		SalespersonID:               20,
		Status:                      models.DiscountStatusUnderAnalysis,
		Currency:                    utils.DefaultCurrency,
		RequestedDiscountPercentage: requestedDiscount,
		LineItems:                   items,
	}
}

// SolidCustomerHistory is a history that scores as low customer risk.
func SolidCustomerHistory() *models.CustomerHistory {
	return &models.CustomerHistory{
		TotalRequests:           40,
		ApprovedRequests:        36,
		RejectedRequests:        4,
		RejectionRate:           0.1,
		AverageApprovedDiscount: 10,
		MaxApprovedDiscount:     15,
	}
}

// SolidSalespersonHistory is a history that scores as low salesperson risk.
func SolidSalespersonHistory() *models.SalespersonHistory {
	return &models.SalespersonHistory{
		TotalRequests:            60,
		ApprovalRate:             0.75,
		AverageRequestedDiscount: 10,
		WinRate:                  0.7,
		RecentRejectionTrend:     0.1,
	}
}

// DiscountLimitRule creates an active global discount-limit rule.
func DiscountLimitRule(name string, maxDiscount float64, priority int) *models.BusinessRule {
	return &models.BusinessRule{
		UUID:     uuid.New(),
		TenantID: TestTenantID,
		Name:     name,
		Kind:     models.RuleKindDiscountLimit,
		Scope:    models.RuleScopeGlobal,
		Params:   models.RuleParams{MaxDiscountPercentage: utils.ToPtr(maxDiscount)},
		Priority: priority,
		IsActive: utils.ToPtr(true),
	}
}

// MinimumMarginRule creates an active global minimum-margin rule.
func MinimumMarginRule(name string, floor float64, priority int) *models.BusinessRule {
	return &models.BusinessRule{
		UUID:     uuid.New(),
		TenantID: TestTenantID,
		Name:     name,
		Kind:     models.RuleKindMinimumMargin,
		Scope:    models.RuleScopeGlobal,
		Params:   models.RuleParams{MinimumMarginPercentage: utils.ToPtr(floor)},
		Priority: priority,
		IsActive: utils.ToPtr(true),
	}
}

// AutoApprovalRule creates an active global auto-approval rule. Nil thresholds
// are left unset.
func AutoApprovalRule(name string, maxDiscount, maxRisk, minConfidence *float64, priority int) *models.BusinessRule {
	return &models.BusinessRule{
		UUID:     uuid.New(),
		TenantID: TestTenantID,
		Name:     name,
		Kind:     models.RuleKindAutoApproval,
		Scope:    models.RuleScopeGlobal,
		Params: models.RuleParams{
			MaxDiscountPercentage: maxDiscount,
			MaxRiskScore:          maxRisk,
			MinAIConfidence:       minConfidence,
		},
		Priority: priority,
		IsActive: utils.ToPtr(true),
	}
}

// CostMap builds a product-to-unit-cost map in the default currency.
func CostMap(costs map[uint]float64) map[uint]models.Money {
	out := make(map[uint]models.Money, len(costs))
	for productID, cost := range costs {
		out[productID] = models.NewMoneyFromFloat(cost, utils.DefaultCurrency)
	}
	return out
}
