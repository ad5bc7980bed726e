package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineItem(productID uint, quantity int, base, discounted string) DiscountLineItem {
	return DiscountLineItem{
		ProductID:           productID,
		ProductName:         "Widget",
		Quantity:            quantity,
		UnitBasePrice:       decimal.RequireFromString(base),
		UnitDiscountedPrice: decimal.RequireFromString(discounted),
	}
}

func newRequest(status DiscountRequestStatus, items ...DiscountLineItem) *DiscountRequest {
	return &DiscountRequest{
		TenantID:                    1,
		CustomerID:                  1,
		SalespersonID:               1,
		Status:                      status,
		Currency:                    "USD",
		RequestedDiscountPercentage: 10,
		LineItems:                   items,
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    DiscountRequestStatus
		to      DiscountRequestStatus
		allowed bool
	}{
		{name: "analysis to approved", from: DiscountStatusUnderAnalysis, to: DiscountStatusApproved, allowed: true},
		{name: "analysis to rejected", from: DiscountStatusUnderAnalysis, to: DiscountStatusRejected, allowed: true},
		{name: "analysis to auto-approved", from: DiscountStatusUnderAnalysis, to: DiscountStatusAutoApproved, allowed: true},
		{name: "analysis to adjustment", from: DiscountStatusUnderAnalysis, to: DiscountStatusAdjustmentRequested, allowed: true},
		{name: "adjustment back to analysis", from: DiscountStatusAdjustmentRequested, to: DiscountStatusUnderAnalysis, allowed: true},
		{name: "adjustment straight to approved", from: DiscountStatusAdjustmentRequested, to: DiscountStatusApproved, allowed: false},
		{name: "approved is terminal", from: DiscountStatusApproved, to: DiscountStatusUnderAnalysis, allowed: false},
		{name: "rejected is terminal", from: DiscountStatusRejected, to: DiscountStatusAdjustmentRequested, allowed: false},
		{name: "auto-approved is terminal", from: DiscountStatusAutoApproved, to: DiscountStatusRejected, allowed: false},
		{name: "no self loop", from: DiscountStatusUnderAnalysis, to: DiscountStatusUnderAnalysis, allowed: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := newRequest(tc.from, lineItem(1, 1, "100", "90"))
			err := request.TransitionTo(tc.to)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, request.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidStatusTransition)
				assert.Equal(t, tc.from, request.Status, "a rejected transition must not change status")
			}
		})
	}
}

func TestTransitionToUnknownStatus(t *testing.T) {
	request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"))
	err := request.TransitionTo(DiscountRequestStatus("half-approved"))
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, DiscountStatusApproved.IsTerminal())
	assert.True(t, DiscountStatusRejected.IsTerminal())
	assert.True(t, DiscountStatusAutoApproved.IsTerminal())
	assert.False(t, DiscountStatusUnderAnalysis.IsTerminal())
	assert.False(t, DiscountStatusAdjustmentRequested.IsTerminal())
}

func TestIsMutable(t *testing.T) {
	assert.True(t, newRequest(DiscountStatusUnderAnalysis).IsMutable())
	assert.True(t, newRequest(DiscountStatusAdjustmentRequested).IsMutable())
	assert.False(t, newRequest(DiscountStatusApproved).IsMutable())
	assert.False(t, newRequest(DiscountStatusRejected).IsMutable())
	assert.False(t, newRequest(DiscountStatusAutoApproved).IsMutable())
}

func TestAddLineItem(t *testing.T) {
	t.Run("appends to a mutable request", func(t *testing.T) {
		request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"))
		require.NoError(t, request.AddLineItem(lineItem(2, 1, "50", "45")))
		assert.Len(t, request.LineItems, 2)
	})

	t.Run("rejects duplicate products", func(t *testing.T) {
		request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"))
		err := request.AddLineItem(lineItem(1, 3, "100", "80"))
		assert.ErrorIs(t, err, ErrDuplicateProductLine)
		assert.Len(t, request.LineItems, 1)
	})

	t.Run("rejects immutable statuses", func(t *testing.T) {
		request := newRequest(DiscountStatusApproved, lineItem(1, 1, "100", "90"))
		err := request.AddLineItem(lineItem(2, 1, "50", "45"))
		assert.ErrorIs(t, err, ErrRequestNotMutable)
	})
}

func TestRemoveLineItem(t *testing.T) {
	t.Run("removes an existing line", func(t *testing.T) {
		request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"), lineItem(2, 1, "50", "45"))
		require.NoError(t, request.RemoveLineItem(1))
		require.Len(t, request.LineItems, 1)
		assert.Equal(t, uint(2), request.LineItems[0].ProductID)
	})

	t.Run("keeps at least one line", func(t *testing.T) {
		request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"))
		assert.ErrorIs(t, request.RemoveLineItem(1), ErrLastLineItem)
	})

	t.Run("unknown product", func(t *testing.T) {
		request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"), lineItem(2, 1, "50", "45"))
		assert.ErrorIs(t, request.RemoveLineItem(99), ErrLineItemNotFound)
	})

	t.Run("rejects immutable statuses", func(t *testing.T) {
		request := newRequest(DiscountStatusRejected, lineItem(1, 1, "100", "90"), lineItem(2, 1, "50", "45"))
		assert.ErrorIs(t, request.RemoveLineItem(1), ErrRequestNotMutable)
	})
}

func TestRequestTotals(t *testing.T) {
	request := newRequest(DiscountStatusUnderAnalysis,
		lineItem(1, 2, "100", "90"),
		lineItem(2, 3, "50.50", "45.25"),
	)

	base := request.TotalBaseAmount()
	assert.Equal(t, "USD", base.Currency)
	assert.True(t, base.Amount.Equal(decimal.RequireFromString("351.50")), "got %s", base.Amount)

	discounted := request.TotalDiscountedAmount()
	assert.True(t, discounted.Amount.Equal(decimal.RequireFromString("315.75")), "got %s", discounted.Amount)
}

func TestLineItemAmounts(t *testing.T) {
	item := lineItem(1, 4, "12.25", "11.00")

	base := item.BaseAmount("USD")
	assert.True(t, base.Amount.Equal(decimal.RequireFromString("49")), "got %s", base.Amount)

	discounted := item.DiscountedAmount("USD")
	assert.True(t, discounted.Amount.Equal(decimal.RequireFromString("44")), "got %s", discounted.Amount)
}

func TestAddComment(t *testing.T) {
	request := newRequest(DiscountStatusUnderAnalysis, lineItem(1, 1, "100", "90"))
	request.AddComment("needs a second look")
	request.AddComment("approved by finance")
	assert.Equal(t, []string{"needs a second look", "approved by finance"}, []string(request.Comments))
}
