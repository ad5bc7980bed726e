// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// DiscountLineItemRequest represents one product line in a discount request
type DiscountLineItemRequest struct {
	ProductID           uint    `json:"product_id" validate:"required,gt=0"`
	ProductName         string  `json:"product_name" validate:"required,max=255"`
	Quantity            int     `json:"quantity" validate:"required,gt=0"`
	UnitBasePrice       float64 `json:"unit_base_price" validate:"required,gt=0"`
	UnitDiscountedPrice float64 `json:"unit_discounted_price" validate:"required,gt=0"`
}

// CreateDiscountRequestRequest represents the request to open a new discount request
type CreateDiscountRequestRequest struct {
	TenantID                    uint                      `json:"-"`
	SalespersonID               uint                      `json:"-"`
	CustomerID                  uint                      `json:"customer_id" validate:"required,gt=0"`
	Currency                    string                    `json:"currency" validate:"omitempty,len=3,uppercase"`
	RequestedDiscountPercentage float64                   `json:"requested_discount_percentage" validate:"required,gte=0,lte=100"`
	LineItems                   []DiscountLineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

// CreateDiscountRequestResponse represents the response after opening a request
type CreateDiscountRequestResponse struct {
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// DiscountLineItemResponse represents one product line in responses
type DiscountLineItemResponse struct {
	ProductID              uint    `json:"product_id"`
	ProductName            string  `json:"product_name"`
	Quantity               int     `json:"quantity"`
	UnitBasePrice          float64 `json:"unit_base_price"`
	UnitDiscountedPrice    float64 `json:"unit_discounted_price"`
	ItemDiscountPercentage float64 `json:"item_discount_percentage"`
}

// GetDiscountRequestResponse represents a discount request in responses
type GetDiscountRequestResponse struct {
	UUID                        string                     `json:"uuid"`
	Status                      string                     `json:"status"`
	CustomerID                  uint                       `json:"customer_id"`
	SalespersonID               uint                       `json:"salesperson_id"`
	Currency                    string                     `json:"currency"`
	RequestedDiscountPercentage float64                    `json:"requested_discount_percentage"`
	RiskScore                   *float64                   `json:"risk_score,omitempty"`
	EstimatedMargin             *float64                   `json:"estimated_margin,omitempty"`
	Comments                    []string                   `json:"comments"`
	LineItems                   []DiscountLineItemResponse `json:"line_items"`
	CreatedAt                   time.Time                  `json:"created_at"`
	UpdatedAt                   time.Time                  `json:"updated_at"`
}

// ListDiscountRequestsResponse represents a paginated request listing
type ListDiscountRequestsResponse struct {
	Requests []GetDiscountRequestResponse `json:"requests"`
	Total    int                          `json:"total"`
}

// EvaluateDiscountRequestResponse represents the evaluation verdict
type EvaluateDiscountRequestResponse struct {
	UUID                string    `json:"uuid"`
	Status              string    `json:"status"`
	RiskScore           float64   `json:"risk_score"`
	RiskLevel           string    `json:"risk_level"`
	RiskReasons         []string  `json:"risk_reasons"`
	CanAutoApprove      bool      `json:"can_auto_approve"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	GuardrailViolation  bool      `json:"guardrail_violation"`
	GuardrailErrors     []string  `json:"guardrail_errors"`
	GuardrailWarnings   []string  `json:"guardrail_warnings"`
	Reason              string    `json:"reason"`
	AdvisoryConfidence  *float64  `json:"advisory_confidence,omitempty"`
	RecommendedDiscount *float64  `json:"recommended_discount,omitempty"`
	AdvisorySource      string    `json:"advisory_source,omitempty"`
	EvaluatedAt         time.Time `json:"evaluated_at"`
}

// DecideDiscountRequestRequest represents a manual decision by a reviewer
type DecideDiscountRequestRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
	ActorID  string `json:"-"`
	Comment  string `json:"comment" validate:"omitempty,max=1000"`
}

// DecideDiscountRequestResponse represents the response to a manual decision
type DecideDiscountRequestResponse struct {
	Status string `json:"status"`
}

// SubmitAdjustedRequestRequest resubmits an adjusted request for analysis
type SubmitAdjustedRequestRequest struct {
	UUID                        string                    `json:"-"`
	TenantID                    uint                      `json:"-"`
	RequestedDiscountPercentage float64                   `json:"requested_discount_percentage" validate:"required,gte=0,lte=100"`
	LineItems                   []DiscountLineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

// ExplainDiscountRequestResponse carries the decision explanation
type ExplainDiscountRequestResponse struct {
	Summary string   `json:"summary"`
	Factors []string `json:"factors"`
	Source  string   `json:"source"`
}
