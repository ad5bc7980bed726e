// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money value errors
var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidAmount    = errors.New("invalid money amount")
)

// Money is an immutable fixed-point monetary value. Amounts are decimals, not
// floats, so percentage math does not accumulate rounding drift.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney creates a Money value from a decimal amount and a currency code.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// NewMoneyFromFloat creates a Money value from a float amount. Intended for
// test fixtures and DTO conversion; persistence paths keep decimals end to end.
func NewMoneyFromFloat(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: currency}
}

// NewMoneyFromString parses a decimal string into a Money value.
func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return Money{Amount: d, Currency: currency}, nil
}

// ZeroMoney returns a zero value in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// sameCurrency guards every binary operation.
func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

// Add returns m + other. Mixed currencies are rejected.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Mixed currencies are rejected.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MulDecimal returns m scaled by the given factor.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// MulInt returns m scaled by an integer quantity.
func (m Money) MulInt(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), Currency: m.Currency}
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Round returns m rounded to the given number of decimal places.
func (m Money) Round(places int32) Money {
	return Money{Amount: m.Amount.Round(places), Currency: m.Currency}
}

// String formats the value as "<amount> <currency>".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}

// Value implements the driver.Valuer interface; only the amount is stored,
// the currency lives in its own column on the owning row.
func (m Money) Value() (driver.Value, error) {
	return m.Amount.String(), nil
}

// Scan implements the sql.Scanner interface for numeric columns.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.Amount = decimal.Zero
		return nil
	}
	return m.Amount.Scan(value)
}
