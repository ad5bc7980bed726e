package businessflow

import (
	"testing"

	"github.com/amirphl/Kusanagi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(amount float64) models.Money {
	return models.NewMoneyFromFloat(amount, "USD")
}

func TestMarginPercentage(t *testing.T) {
	calc := NewMarginCalculator()

	cases := []struct {
		name       string
		finalPrice models.Money
		cost       models.Money
		expected   float64
		wantErr    error
	}{
		{name: "healthy margin", finalPrice: usd(100), cost: usd(60), expected: 40},
		{name: "thin margin", finalPrice: usd(100), cost: usd(97), expected: 3},
		{name: "negative margin", finalPrice: usd(100), cost: usd(120), expected: -20},
		{name: "break even", finalPrice: usd(100), cost: usd(100), expected: 0},
		{name: "rounds to two places", finalPrice: usd(300), cost: usd(100), expected: 66.67},
		{name: "zero final price", finalPrice: usd(0), cost: usd(50), wantErr: ErrInvalidFinalPrice},
		{name: "negative final price", finalPrice: usd(-10), cost: usd(50), wantErr: ErrInvalidFinalPrice},
		{
			name:       "currency mismatch",
			finalPrice: usd(100),
			cost:       models.NewMoneyFromFloat(60, "EUR"),
			wantErr:    models.ErrCurrencyMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			margin, err := calc.MarginPercentage(tc.finalPrice, tc.cost)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, margin, 0.001)
		})
	}
}

func TestMarginAfterDiscount(t *testing.T) {
	calc := NewMarginCalculator()

	cases := []struct {
		name     string
		base     models.Money
		cost     models.Money
		discount float64
		expected float64
		wantErr  error
	}{
		{name: "no discount", base: usd(100), cost: usd(60), discount: 0, expected: 40},
		{name: "ten percent", base: usd(100), cost: usd(60), discount: 10, expected: 33.33},
		{name: "discount erases margin", base: usd(100), cost: usd(60), discount: 40, expected: 0},
		{name: "discount below cost", base: usd(100), cost: usd(60), discount: 50, expected: -20},
		{name: "negative discount", base: usd(100), cost: usd(60), discount: -1, wantErr: ErrDiscountOutOfRange},
		{name: "discount above hundred", base: usd(100), cost: usd(60), discount: 101, wantErr: ErrDiscountOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			margin, err := calc.MarginAfterDiscount(tc.base, tc.cost, tc.discount)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, margin, 0.001)
		})
	}
}

func TestMaxDiscountForMinimumMargin(t *testing.T) {
	calc := NewMarginCalculator()

	t.Run("solves for the margin floor", func(t *testing.T) {
		// base 100, cost 60: a 20% floor holds up to a 25% discount.
		maxDiscount, err := calc.MaxDiscountForMinimumMargin(usd(100), usd(60), 20)
		require.NoError(t, err)
		assert.InDelta(t, 25, maxDiscount, 0.001)

		// At that exact discount the margin equals the floor.
		margin, err := calc.MarginAfterDiscount(usd(100), usd(60), maxDiscount)
		require.NoError(t, err)
		assert.InDelta(t, 20, margin, 0.01)
	})

	t.Run("clamps to zero when no discount is affordable", func(t *testing.T) {
		maxDiscount, err := calc.MaxDiscountForMinimumMargin(usd(100), usd(95), 20)
		require.NoError(t, err)
		assert.Equal(t, 0.0, maxDiscount)
	})

	t.Run("rejects impossible margin floors", func(t *testing.T) {
		_, err := calc.MaxDiscountForMinimumMargin(usd(100), usd(60), 100)
		assert.ErrorIs(t, err, ErrMarginOutOfRange)
	})

	t.Run("rejects non-positive base price", func(t *testing.T) {
		_, err := calc.MaxDiscountForMinimumMargin(usd(0), usd(60), 20)
		assert.ErrorIs(t, err, ErrInvalidBasePrice)
	})
}

func TestMarginImpact(t *testing.T) {
	calc := NewMarginCalculator()

	impact, err := calc.MarginImpact(usd(100), usd(60), 10)
	require.NoError(t, err)
	// 40% before, 33.33% after.
	assert.InDelta(t, 6.67, impact, 0.001)

	impact, err = calc.MarginImpact(usd(100), usd(60), 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, impact, 0.001)
}

func TestCalculateEstimatedCostInvertsMarginPercentage(t *testing.T) {
	calc := NewMarginCalculator()

	cases := []struct {
		price  float64
		margin float64
	}{
		{price: 100, margin: 40},
		{price: 250, margin: 12.5},
		{price: 999.99, margin: 0},
		{price: 80, margin: -25},
	}

	for _, tc := range cases {
		cost, err := calc.CalculateEstimatedCost(usd(tc.price), tc.margin)
		require.NoError(t, err)

		roundTrip, err := calc.MarginPercentage(usd(tc.price), cost)
		require.NoError(t, err)
		assert.InDelta(t, tc.margin, roundTrip, 0.01, "cost derived from margin %v must reproduce it", tc.margin)
	}

	_, err := calc.CalculateEstimatedCost(usd(100), 100)
	assert.ErrorIs(t, err, ErrMarginOutOfRange)
}
