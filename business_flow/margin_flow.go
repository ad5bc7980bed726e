// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/shopspring/decimal"
)

// MarginCalculator provides pure margin arithmetic over Money values.
// No side effects, no I/O; every operation rejects mixed currencies.
type MarginCalculator interface {
	MarginPercentage(finalPrice, cost models.Money) (float64, error)
	MarginAfterDiscount(basePrice, cost models.Money, discountPct float64) (float64, error)
	MaxDiscountForMinimumMargin(basePrice, cost models.Money, minMarginPct float64) (float64, error)
	MarginImpact(basePrice, cost models.Money, discountPct float64) (float64, error)
	CalculateEstimatedCost(price models.Money, marginPct float64) (models.Money, error)
}

// MarginCalculatorImpl implements MarginCalculator
type MarginCalculatorImpl struct{}

// NewMarginCalculator creates a new margin calculator
func NewMarginCalculator() MarginCalculator {
	return &MarginCalculatorImpl{}
}

var oneHundred = decimal.NewFromInt(100)

// MarginPercentage computes ((final - cost) / final) * 100, rounded to two
// decimal places. The final price must be positive and share the cost's currency.
func (c *MarginCalculatorImpl) MarginPercentage(finalPrice, cost models.Money) (float64, error) {
	if finalPrice.Currency != cost.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", models.ErrCurrencyMismatch, finalPrice.Currency, cost.Currency)
	}
	if !finalPrice.IsPositive() {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidFinalPrice, finalPrice.Amount)
	}

	margin := finalPrice.Amount.Sub(cost.Amount).
		Div(finalPrice.Amount).
		Mul(oneHundred).
		Round(2)
	return margin.InexactFloat64(), nil
}

// MarginAfterDiscount applies the discount to the base price and computes the
// resulting margin. The discount must be within [0, 100].
func (c *MarginCalculatorImpl) MarginAfterDiscount(basePrice, cost models.Money, discountPct float64) (float64, error) {
	if discountPct < 0 || discountPct > 100 {
		return 0, fmt.Errorf("%w: got %.2f", ErrDiscountOutOfRange, discountPct)
	}

	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPct).Div(oneHundred))
	final := basePrice.MulDecimal(factor)
	return c.MarginPercentage(final, cost)
}

// MaxDiscountForMinimumMargin solves for the discount at which the margin
// exactly equals the floor. The result is clamped to be non-negative.
func (c *MarginCalculatorImpl) MaxDiscountForMinimumMargin(basePrice, cost models.Money, minMarginPct float64) (float64, error) {
	if basePrice.Currency != cost.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", models.ErrCurrencyMismatch, basePrice.Currency, cost.Currency)
	}
	if !basePrice.IsPositive() {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidBasePrice, basePrice.Amount)
	}
	if minMarginPct >= 100 {
		return 0, fmt.Errorf("%w: got %.2f", ErrMarginOutOfRange, minMarginPct)
	}

	// margin == m exactly when final == cost / (1 - m/100); the discount is
	// whatever fraction of the base price gets us there.
	marginFactor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(minMarginPct).Div(oneHundred))
	floorPrice := cost.Amount.Div(marginFactor)
	discount := decimal.NewFromInt(1).
		Sub(floorPrice.Div(basePrice.Amount)).
		Mul(oneHundred).
		Round(2)

	if discount.IsNegative() {
		return 0, nil
	}
	return discount.InexactFloat64(), nil
}

// MarginImpact is margin-before minus margin-after; positive values mean
// margin erosion caused by the discount.
func (c *MarginCalculatorImpl) MarginImpact(basePrice, cost models.Money, discountPct float64) (float64, error) {
	before, err := c.MarginPercentage(basePrice, cost)
	if err != nil {
		return 0, err
	}
	after, err := c.MarginAfterDiscount(basePrice, cost, discountPct)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// CalculateEstimatedCost is the algebraic inverse of MarginPercentage:
// cost = price * (1 - margin/100).
func (c *MarginCalculatorImpl) CalculateEstimatedCost(price models.Money, marginPct float64) (models.Money, error) {
	if marginPct >= 100 {
		return models.Money{}, fmt.Errorf("%w: got %.2f", ErrMarginOutOfRange, marginPct)
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(marginPct).Div(oneHundred))
	return price.MulDecimal(factor).Round(4), nil
}
