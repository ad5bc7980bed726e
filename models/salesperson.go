// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"time"

	"github.com/google/uuid"
)

// Salesperson roles. Managers and admins may override non-guardrail rejections.
const (
	SalespersonRoleSales   = "sales"
	SalespersonRoleManager = "manager"
	SalespersonRoleAdmin   = "admin"
)

// Salesperson represents a user who files discount requests within a tenant
type Salesperson struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_salespersons_uuid" json:"uuid"`
	TenantID  uint      `gorm:"not null;index:idx_salespersons_tenant_id" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:uk_salespersons_email" json:"email"`
	Role      string    `gorm:"size:20;not null;default:'sales'" json:"role"`
	IsActive  *bool     `gorm:"default:true;index:idx_salespersons_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Salesperson) TableName() string {
	return "salespersons"
}

// CanOverrideRejections reports whether the role permits overriding a
// non-guardrail auto-rejection.
func (s *Salesperson) CanOverrideRejections() bool {
	return s.Role == SalespersonRoleManager || s.Role == SalespersonRoleAdmin
}

// SalespersonFilter represents filter criteria for salesperson queries
type SalespersonFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	TenantID      *uint
	Email         *string
	Role          *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SalespersonHistory summarizes a salesperson's past request behavior,
// aggregated by the caller and supplied at evaluation time.
type SalespersonHistory struct {
	TotalRequests            int     `json:"total_requests"`
	ApprovalRate             float64 `json:"approval_rate"`
	AverageRequestedDiscount float64 `json:"average_requested_discount"`
	WinRate                  float64 `json:"win_rate"`
	RecentRejectionTrend     float64 `json:"recent_rejection_trend"`
}

// HasData reports whether there is any usable request history.
func (h *SalespersonHistory) HasData() bool {
	return h != nil && h.TotalRequests > 0
}
