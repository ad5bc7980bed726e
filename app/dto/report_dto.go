// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// DecisionSummaryRequest asks for an aggregated decision report
type DecisionSummaryRequest struct {
	TenantID uint      `json:"-"`
	Since    time.Time `json:"since" validate:"required"`
	Until    time.Time `json:"until" validate:"required,gtfield=Since"`
}

// DecisionSummaryResponse represents the aggregated decision report
type DecisionSummaryResponse struct {
	WindowStart      time.Time      `json:"window_start"`
	WindowEnd        time.Time      `json:"window_end"`
	TotalDecisions   int            `json:"total_decisions"`
	CountsByAction   map[string]int `json:"counts_by_action"`
	AverageRiskScore float64        `json:"average_risk_score"`
	FallbackCount    int            `json:"fallback_count"`
}

// AdvisoryStatsResponse reports gateway health for one operation
type AdvisoryStatsResponse struct {
	Operation           string `json:"operation"`
	WindowMinutes       int    `json:"window_minutes"`
	Successes           int64  `json:"successes"`
	Errors              int64  `json:"errors"`
	Timeouts            int64  `json:"timeouts"`
	CacheHits           int64  `json:"cache_hits"`
	CacheMisses         int64  `json:"cache_misses"`
	BreakerOpenSkips    int64  `json:"breaker_open_skips"`
	Fallbacks           int64  `json:"fallbacks"`
	AverageResponseMs   int64  `json:"average_response_ms"`
	BreakerFailureCount int    `json:"breaker_failure_count"`
}

// GovernanceSettingsRequest updates the tenant's advisory governance
type GovernanceSettingsRequest struct {
	TenantID      uint    `json:"-"`
	AIEnabled     bool    `json:"ai_enabled"`
	MinConfidence float64 `json:"min_confidence" validate:"gte=0,lte=1"`
}

// GovernanceSettingsResponse represents the tenant's advisory governance
type GovernanceSettingsResponse struct {
	AIEnabled     bool      `json:"ai_enabled"`
	MinConfidence float64   `json:"min_confidence"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TrainModelRequest triggers a tenant-scoped advisory retraining run
type TrainModelRequest struct {
	TenantID   uint `json:"-"`
	WindowDays int  `json:"window_days" validate:"omitempty,gt=0,lte=365"`
}

// TrainModelResponse represents a submitted training run
type TrainModelResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}
