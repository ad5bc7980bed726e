// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecisionAuditLogRepositoryImpl implements DecisionAuditLogRepository interface
type DecisionAuditLogRepositoryImpl struct {
	*BaseRepository[models.DecisionAuditLog, models.DecisionAuditLogFilter]
}

// NewDecisionAuditLogRepository creates a new decision audit log repository
func NewDecisionAuditLogRepository(db *gorm.DB) DecisionAuditLogRepository {
	return &DecisionAuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DecisionAuditLog, models.DecisionAuditLogFilter](db, applyDecisionAuditLogFilter),
	}
}

func applyDecisionAuditLogFilter(db *gorm.DB, filter models.DecisionAuditLogFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.RequestUUID != nil {
		db = db.Where("request_uuid = ?", *filter.RequestUUID)
	}
	if filter.Action != nil {
		db = db.Where("action = ?", *filter.Action)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ListByRequest retrieves the audit trail of one discount request
func (r *DecisionAuditLogRepositoryImpl) ListByRequest(ctx context.Context, requestUUID uuid.UUID, limit, offset int) ([]*models.DecisionAuditLog, error) {
	filter := models.DecisionAuditLogFilter{RequestUUID: &requestUUID}
	logs, err := r.ByFilter(ctx, filter, "created_at ASC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by request: %w", err)
	}
	return logs, nil
}

// ListByTenant retrieves the audit trail for a tenant, newest first
func (r *DecisionAuditLogRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DecisionAuditLog, error) {
	filter := models.DecisionAuditLogFilter{TenantID: &tenantID}
	logs, err := r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by tenant: %w", err)
	}
	return logs, nil
}
