// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discount request invariant errors
var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrRequestNotMutable       = errors.New("request line items are not mutable in the current status")
	ErrDuplicateProductLine    = errors.New("product already present in request")
	ErrLastLineItem            = errors.New("request must keep at least one line item")
	ErrLineItemNotFound        = errors.New("line item not found")
)

// DiscountRequestStatus represents the lifecycle status of a discount request
type DiscountRequestStatus string

const (
	DiscountStatusUnderAnalysis       DiscountRequestStatus = "under-analysis"
	DiscountStatusApproved            DiscountRequestStatus = "approved"
	DiscountStatusRejected            DiscountRequestStatus = "rejected"
	DiscountStatusAutoApproved        DiscountRequestStatus = "auto-approved"
	DiscountStatusAdjustmentRequested DiscountRequestStatus = "adjustment-requested"
)

// String returns the string representation of the status
func (s DiscountRequestStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DiscountRequestStatus) Valid() bool {
	switch s {
	case DiscountStatusUnderAnalysis, DiscountStatusApproved,
		DiscountStatusRejected, DiscountStatusAutoApproved,
		DiscountStatusAdjustmentRequested:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status never transitions further.
func (s DiscountRequestStatus) IsTerminal() bool {
	switch s {
	case DiscountStatusApproved, DiscountStatusRejected, DiscountStatusAutoApproved:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DiscountRequestStatus
func (s *DiscountRequestStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = DiscountRequestStatus(v)
	case []byte:
		*s = DiscountRequestStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DiscountRequestStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for DiscountRequestStatus
func (s DiscountRequestStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DiscountRequestStatus: %s", s)
	}
	return string(s), nil
}

// statusTransitions encodes the request lifecycle state machine. The only
// re-entry edge is adjustment-requested back to under-analysis.
var statusTransitions = map[DiscountRequestStatus][]DiscountRequestStatus{
	DiscountStatusUnderAnalysis: {
		DiscountStatusApproved,
		DiscountStatusRejected,
		DiscountStatusAutoApproved,
		DiscountStatusAdjustmentRequested,
	},
	DiscountStatusAdjustmentRequested: {
		DiscountStatusUnderAnalysis,
	},
}

// DiscountLineItem represents one product line inside a discount request
type DiscountLineItem struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	DiscountRequestID      uint            `gorm:"not null;index:idx_discount_line_items_request_id" json:"discount_request_id"`
	ProductID              uint            `gorm:"not null" json:"product_id"`
	ProductName            string          `gorm:"size:255;not null" json:"product_name"`
	Quantity               int             `gorm:"not null" json:"quantity"`
	UnitBasePrice          decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_base_price"`
	UnitDiscountedPrice    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_discounted_price"`
	ItemDiscountPercentage float64         `gorm:"not null;default:0" json:"item_discount_percentage"`
	CreatedAt              time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (DiscountLineItem) TableName() string {
	return "discount_line_items"
}

// BaseAmount returns quantity times unit base price as a Money value.
func (li *DiscountLineItem) BaseAmount(currency string) Money {
	return NewMoney(li.UnitBasePrice.Mul(decimal.NewFromInt(int64(li.Quantity))), currency)
}

// DiscountedAmount returns quantity times unit discounted price as a Money value.
func (li *DiscountLineItem) DiscountedAmount(currency string) Money {
	return NewMoney(li.UnitDiscountedPrice.Mul(decimal.NewFromInt(int64(li.Quantity))), currency)
}

// DiscountRequest represents a sales discount request under evaluation
type DiscountRequest struct {
	ID                          uint                  `gorm:"primaryKey" json:"id"`
	UUID                        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uk_discount_requests_uuid" json:"uuid"`
	TenantID                    uint                  `gorm:"not null;index:idx_discount_requests_tenant_id" json:"tenant_id"`
	CustomerID                  uint                  `gorm:"not null;index:idx_discount_requests_customer_id" json:"customer_id"`
	SalespersonID               uint                  `gorm:"not null;index:idx_discount_requests_salesperson_id" json:"salesperson_id"`
	Status                      DiscountRequestStatus `gorm:"type:discount_request_status;not null;default:'under-analysis';index:idx_discount_requests_status" json:"status"`
	Currency                    string                `gorm:"size:3;not null;default:'USD'" json:"currency"`
	RequestedDiscountPercentage float64               `gorm:"not null" json:"requested_discount_percentage"`
	RiskScore                   *float64              `json:"risk_score,omitempty"`
	EstimatedMargin             *float64              `json:"estimated_margin,omitempty"`
	Comments                    pq.StringArray        `gorm:"type:text[];not null;default:'{}'" json:"comments"`
	CreatedAt                   time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_discount_requests_created_at" json:"created_at"`
	UpdatedAt                   time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	LineItems   []DiscountLineItem `gorm:"foreignKey:DiscountRequestID" json:"line_items"`
	Customer    *Customer          `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	Salesperson *Salesperson       `gorm:"foreignKey:SalespersonID;references:ID" json:"salesperson,omitempty"`
}

// TableName returns the table name for the model
func (DiscountRequest) TableName() string {
	return "discount_requests"
}

// BeforeCreate is called before creating a new record
func (r *DiscountRequest) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = DiscountStatusUnderAnalysis
	}
	if r.Currency == "" {
		r.Currency = utils.DefaultCurrency
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle permits moving to target.
func (r *DiscountRequest) CanTransitionTo(target DiscountRequestStatus) bool {
	for _, allowed := range statusTransitions[r.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the request to target or fails with ErrInvalidStatusTransition.
func (r *DiscountRequest) TransitionTo(target DiscountRequestStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, target)
	}
	if !r.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, r.Status, target)
	}
	r.Status = target
	r.UpdatedAt = utils.UTCNow()
	return nil
}

// IsMutable reports whether line items may be changed in the current status.
func (r *DiscountRequest) IsMutable() bool {
	return r.Status == DiscountStatusUnderAnalysis || r.Status == DiscountStatusAdjustmentRequested
}

// AddLineItem appends a line item, enforcing mutability and product uniqueness.
func (r *DiscountRequest) AddLineItem(item DiscountLineItem) error {
	if !r.IsMutable() {
		return fmt.Errorf("%w: status %s", ErrRequestNotMutable, r.Status)
	}
	for _, existing := range r.LineItems {
		if existing.ProductID == item.ProductID {
			return fmt.Errorf("%w: product %d", ErrDuplicateProductLine, item.ProductID)
		}
	}
	r.LineItems = append(r.LineItems, item)
	r.UpdatedAt = utils.UTCNow()
	return nil
}

// RemoveLineItem removes the line for the given product, keeping at least one line.
func (r *DiscountRequest) RemoveLineItem(productID uint) error {
	if !r.IsMutable() {
		return fmt.Errorf("%w: status %s", ErrRequestNotMutable, r.Status)
	}
	if len(r.LineItems) <= 1 {
		return ErrLastLineItem
	}
	for i, item := range r.LineItems {
		if item.ProductID == productID {
			r.LineItems = append(r.LineItems[:i], r.LineItems[i+1:]...)
			r.UpdatedAt = utils.UTCNow()
			return nil
		}
	}
	return fmt.Errorf("%w: product %d", ErrLineItemNotFound, productID)
}

// TotalBaseAmount sums quantity times unit base price across all lines.
func (r *DiscountRequest) TotalBaseAmount() Money {
	total := decimal.Zero
	for _, item := range r.LineItems {
		total = total.Add(item.UnitBasePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return NewMoney(total, r.Currency)
}

// TotalDiscountedAmount sums quantity times unit discounted price across all lines.
func (r *DiscountRequest) TotalDiscountedAmount() Money {
	total := decimal.Zero
	for _, item := range r.LineItems {
		total = total.Add(item.UnitDiscountedPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return NewMoney(total, r.Currency)
}

// AddComment appends a free-text comment to the request.
func (r *DiscountRequest) AddComment(comment string) {
	r.Comments = append(r.Comments, comment)
	r.UpdatedAt = utils.UTCNow()
}

// DiscountRequestFilter represents filter criteria for discount request queries
type DiscountRequestFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	TenantID      *uint
	CustomerID    *uint
	SalespersonID *uint
	Status        *DiscountRequestStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
