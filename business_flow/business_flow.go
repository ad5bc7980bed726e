// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"github.com/amirphl/Kusanagi/models"
	"github.com/google/uuid"
)

// RiskLevel classifies a 0-100 risk score into coarse buckets
type RiskLevel string

const (
	RiskLevelVeryLow RiskLevel = "very-low"
	RiskLevelLow     RiskLevel = "low"
	RiskLevelMedium  RiskLevel = "medium"
	RiskLevelHigh    RiskLevel = "high"
)

// ValidationResult accumulates guardrail errors and warnings. Any error makes
// the result invalid; warnings never do.
type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult creates an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// IsValid reports whether no error has been accumulated
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// AddError appends a validation error
func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
}

// AddWarning appends a validation warning
func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Merge folds another partial result into this one without losing entries
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// RiskAssessment is the full risk picture for one request
type RiskAssessment struct {
	Score                 float64   `json:"score"`
	Level                 RiskLevel `json:"level"`
	RequiresHumanApproval bool      `json:"requires_human_approval"`
	Reasons               []string  `json:"reasons"`
}

// SafetyCheckResult is the outcome of the fixed, tenant-independent safety checks
type SafetyCheckResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// AutoApprovalEvaluation is the terminal verdict of the auto-approval pipeline
type AutoApprovalEvaluation struct {
	RequestUUID          uuid.UUID         `json:"request_uuid"`
	CanAutoApprove       bool              `json:"can_auto_approve"`
	RiskScore            float64           `json:"risk_score"`
	AdvisoryConfidence   *float64          `json:"advisory_confidence,omitempty"`
	AppliedMaxRiskScore  float64           `json:"applied_max_risk_score"`
	AppliedMinConfidence float64           `json:"applied_min_confidence"`
	AppliedMaxDiscount   float64           `json:"applied_max_discount"`
	Guardrails           *ValidationResult `json:"guardrails"`
	Safety               SafetyCheckResult `json:"safety"`
	Reason               string            `json:"reason"`
	RequiresHumanReview  bool              `json:"requires_human_review"`

	// GuardrailViolation marks denials caused by hard rules; those are never
	// human-overridable.
	GuardrailViolation bool `json:"guardrail_violation"`
}

// EvaluationInput bundles the read-only lookups the pipeline needs. The
// engine never fetches these itself; callers resolve them up front.
type EvaluationInput struct {
	Request            *models.DiscountRequest
	Customer           *models.Customer
	CustomerHistory    *models.CustomerHistory
	Salesperson        *models.Salesperson
	SalespersonHistory *models.SalespersonHistory
	Rules              []*models.BusinessRule
	CostMap            map[uint]models.Money
}

// Validate checks the input carries the identifiers the pipeline requires.
func (in *EvaluationInput) Validate() error {
	if in.Request == nil {
		return ErrRequestRequired
	}
	if len(in.Request.LineItems) == 0 {
		return ErrRequestHasNoItems
	}
	if in.Customer == nil {
		return ErrCustomerRequired
	}
	if in.Salesperson == nil {
		return ErrSalespersonRequired
	}
	if in.Customer.TenantID != in.Request.TenantID || in.Salesperson.TenantID != in.Request.TenantID {
		return ErrTenantMismatch
	}
	return nil
}
