// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DecisionAuditLog records every decision the engine takes on a request
type DecisionAuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TenantID     uint            `gorm:"not null;index:idx_decision_audit_tenant_id" json:"tenant_id"`
	RequestUUID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_decision_audit_request_uuid" json:"request_uuid"`
	Action       string          `gorm:"size:64;not null;index:idx_decision_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	RiskScore    *float64        `json:"risk_score,omitempty"`
	Reason       *string         `gorm:"type:text" json:"reason,omitempty"`
	ActorID      *uint           `json:"actor_id,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_decision_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_decision_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_decision_audit_created_at" json:"created_at"`
}

func (DecisionAuditLog) TableName() string {
	return "decision_audit_log"
}

// Decision audit action constants
const (
	AuditActionRequestCreated      = "request_created"
	AuditActionRequestEvaluated    = "request_evaluated"
	AuditActionAutoApproved        = "auto_approved"
	AuditActionAutoRejected        = "auto_rejected"
	AuditActionRoutedToHuman       = "routed_to_human"
	AuditActionManuallyApproved    = "manually_approved"
	AuditActionManuallyRejected    = "manually_rejected"
	AuditActionAdjustmentRequested = "adjustment_requested"
	AuditActionAdjustmentSubmitted = "adjustment_submitted"
	AuditActionRejectionOverridden = "rejection_overridden"
	AuditActionAdvisoryFallback    = "advisory_fallback"
)

// DecisionAuditLogFilter represents filter criteria for audit queries
type DecisionAuditLogFilter struct {
	ID            *uint
	TenantID      *uint
	RequestUUID   *uuid.UUID
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *DecisionAuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
