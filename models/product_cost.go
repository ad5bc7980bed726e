// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductCost is the latest known unit cost for a product within a tenant.
// Cost rows feed margin computation; a product without a row yields a
// validation warning, not an error.
type ProductCost struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	TenantID  uint            `gorm:"not null;index:idx_product_costs_tenant_id;uniqueIndex:uk_product_costs_tenant_product" json:"tenant_id"`
	ProductID uint            `gorm:"not null;uniqueIndex:uk_product_costs_tenant_product" json:"product_id"`
	UnitCost  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_cost"`
	Currency  string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (ProductCost) TableName() string {
	return "product_costs"
}

// Money returns the unit cost as a Money value.
func (c *ProductCost) Money() Money {
	return NewMoney(c.UnitCost, c.Currency)
}

// ProductCostFilter represents filter criteria for product cost queries
type ProductCostFilter struct {
	ID        *uint
	TenantID  *uint
	ProductID *uint
}
