// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// RuleParamsRequest carries the typed rule thresholds. Absent fields mean the
// rule does not constrain that dimension.
type RuleParamsRequest struct {
	MinimumMarginPercentage *float64 `json:"minimum_margin_percentage,omitempty" validate:"omitempty,gte=0,lt=100"`
	MaxDiscountPercentage   *float64 `json:"max_discount_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	MaxRiskScore            *float64 `json:"max_risk_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinAIConfidence         *float64 `json:"min_ai_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// CreateBusinessRuleRequest represents the request to create a business rule
type CreateBusinessRuleRequest struct {
	TenantID  uint              `json:"-"`
	Name      string            `json:"name" validate:"required,max=255"`
	Kind      string            `json:"kind" validate:"required,oneof=minimum-margin discount-limit auto-approval"`
	Scope     string            `json:"scope" validate:"required,oneof=global product category customer user-role"`
	TargetID  *uint             `json:"target_id,omitempty" validate:"omitempty,gt=0"`
	TargetKey *string           `json:"target_key,omitempty" validate:"omitempty,max=64"`
	Priority  int               `json:"priority" validate:"gte=0"`
	Params    RuleParamsRequest `json:"params"`
}

// CreateBusinessRuleResponse represents the response to rule creation
type CreateBusinessRuleResponse struct {
	UUID      string `json:"uuid"`
	CreatedAt string `json:"created_at"`
}

// GetBusinessRuleResponse represents a business rule in responses
type GetBusinessRuleResponse struct {
	UUID      string            `json:"uuid"`
	Name      string            `json:"name"`
	Kind      string            `json:"kind"`
	Scope     string            `json:"scope"`
	TargetID  *uint             `json:"target_id,omitempty"`
	TargetKey *string           `json:"target_key,omitempty"`
	Priority  int               `json:"priority"`
	IsActive  bool              `json:"is_active"`
	Params    RuleParamsRequest `json:"params"`
	CreatedAt time.Time         `json:"created_at"`
}

// ListBusinessRulesResponse represents the tenant's rule listing
type ListBusinessRulesResponse struct {
	Rules []GetBusinessRuleResponse `json:"rules"`
}

// SetBusinessRuleActiveRequest toggles a rule on or off
type SetBusinessRuleActiveRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
	IsActive bool   `json:"is_active"`
}

// SetBusinessRuleActiveResponse represents the toggle response
type SetBusinessRuleActiveResponse struct {
	IsActive bool `json:"is_active"`
}
