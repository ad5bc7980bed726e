// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CustomerStatus represents the commercial status of a customer
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusInactive  CustomerStatus = "inactive"
	CustomerStatusBlocked   CustomerStatus = "blocked"
	CustomerStatusSuspended CustomerStatus = "suspended"
)

// String returns the string representation of the status
func (s CustomerStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerStatusActive, CustomerStatusInactive,
		CustomerStatusBlocked, CustomerStatusSuspended:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CustomerStatus
func (s *CustomerStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CustomerStatus(v)
	case []byte:
		*s = CustomerStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CustomerStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for CustomerStatus
func (s CustomerStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CustomerStatus: %s", s)
	}
	return string(s), nil
}

// Customer classification tiers, best to worst.
const (
	CustomerTierA = "A"
	CustomerTierB = "B"
	CustomerTierC = "C"
	CustomerTierD = "D"
)

// Customer represents a buying customer within a tenant
type Customer struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	TenantID       uint           `gorm:"not null;index:idx_customers_tenant_id" json:"tenant_id"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	Status         CustomerStatus `gorm:"type:customer_status;not null;default:'active';index:idx_customers_status" json:"status"`
	Classification string         `gorm:"size:1" json:"classification"`
	IsActive       *bool          `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`

	// Payment behavior flags maintained by the billing integration.
	HasPaymentDelays bool      `gorm:"not null;default:false" json:"has_payment_delays"`
	HasDefaults      bool      `gorm:"not null;default:false" json:"has_defaults"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Customer) TableName() string {
	return "customers"
}

// IsBlocked reports whether the customer may not receive any discount at all.
func (c *Customer) IsBlocked() bool {
	return c.Status == CustomerStatusBlocked
}

// CanReceiveDiscounts reports whether the customer status permits discount requests.
func (c *Customer) CanReceiveDiscounts() bool {
	return c.Status == CustomerStatusActive
}

// IsTopTier reports whether the customer carries the best classification.
func (c *Customer) IsTopTier() bool {
	return c.Classification == CustomerTierA
}

// IsBottomTier reports whether the customer carries the worst classification.
func (c *Customer) IsBottomTier() bool {
	return c.Classification == CustomerTierD
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	TenantID       *uint
	Status         *CustomerStatus
	Classification *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// CustomerHistory summarizes a customer's past discount behavior. It is
// aggregated by the caller (reporting pipeline) and supplied to the risk
// calculator at evaluation time; it is not persisted by this engine.
type CustomerHistory struct {
	TotalRequests           int        `json:"total_requests"`
	ApprovedRequests        int        `json:"approved_requests"`
	RejectedRequests        int        `json:"rejected_requests"`
	RejectionRate           float64    `json:"rejection_rate"`
	AverageApprovedDiscount float64    `json:"average_approved_discount"`
	MaxApprovedDiscount     float64    `json:"max_approved_discount"`
	HasPaymentDelays        bool       `json:"has_payment_delays"`
	HasDefaults             bool       `json:"has_defaults"`
	LastOrderAt             *time.Time `json:"last_order_at,omitempty"`
}

// HasData reports whether there is any usable discount history.
func (h *CustomerHistory) HasData() bool {
	return h != nil && h.TotalRequests > 0
}
