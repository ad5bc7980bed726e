package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("19.99", "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("19.99")))

	_, err = NewMoneyFromString("nineteen", "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoneyFromFloat(10.50, "USD")
	b := NewMoneyFromFloat(4.25, "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.RequireFromString("14.75")))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount.Equal(decimal.RequireFromString("6.25")))

	scaled := a.MulInt(3)
	assert.True(t, scaled.Amount.Equal(decimal.RequireFromString("31.5")))

	factored := a.MulDecimal(decimal.RequireFromString("0.5"))
	assert.True(t, factored.Amount.Equal(decimal.RequireFromString("5.25")))
}

func TestMoneyRejectsMixedCurrencies(t *testing.T) {
	usd := NewMoneyFromFloat(10, "USD")
	eur := NewMoneyFromFloat(10, "EUR")

	_, err := usd.Add(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = usd.Sub(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = usd.Cmp(eur)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyPredicates(t *testing.T) {
	assert.True(t, NewMoneyFromFloat(1, "USD").IsPositive())
	assert.True(t, NewMoneyFromFloat(-1, "USD").IsNegative())
	assert.True(t, ZeroMoney("USD").IsZero())
	assert.False(t, ZeroMoney("USD").IsPositive())
}

func TestMoneyCmp(t *testing.T) {
	a := NewMoneyFromFloat(5, "USD")
	b := NewMoneyFromFloat(7, "USD")

	cmp, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = b.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = a.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestMoneyRoundAndString(t *testing.T) {
	m := NewMoneyFromFloat(10.12345, "USD").Round(2)
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("10.12")))
	assert.Equal(t, "10.12 USD", m.String())
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("42.5"))
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("42.5")))

	var zero Money
	require.NoError(t, zero.Scan(nil))
	assert.True(t, zero.Amount.IsZero())
}
