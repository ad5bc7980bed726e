// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountRequestRepositoryImpl implements DiscountRequestRepository interface
type DiscountRequestRepositoryImpl struct {
	*BaseRepository[models.DiscountRequest, models.DiscountRequestFilter]
}

// NewDiscountRequestRepository creates a new discount request repository
func NewDiscountRequestRepository(db *gorm.DB) DiscountRequestRepository {
	return &DiscountRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DiscountRequest, models.DiscountRequestFilter](db, applyDiscountRequestFilter),
	}
}

func applyDiscountRequestFilter(db *gorm.DB, filter models.DiscountRequestFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.SalespersonID != nil {
		db = db.Where("salesperson_id = ?", *filter.SalespersonID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByUUID retrieves a discount request with its line items by UUID
func (r *DiscountRequestRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.DiscountRequest, error) {
	db := r.getDB(ctx)

	var request models.DiscountRequest
	err := db.Preload("LineItems").Where("uuid = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find discount request by UUID: %w", err)
	}

	return &request, nil
}

// ListByTenant retrieves discount requests for a tenant with pagination
func (r *DiscountRequestRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error) {
	filter := models.DiscountRequestFilter{TenantID: &tenantID}
	requests, err := r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount requests by tenant: %w", err)
	}
	return requests, nil
}

// ListPendingAnalysis retrieves requests still awaiting a decision
func (r *DiscountRequestRepositoryImpl) ListPendingAnalysis(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error) {
	status := models.DiscountStatusUnderAnalysis
	filter := models.DiscountRequestFilter{TenantID: &tenantID, Status: &status}
	requests, err := r.ByFilter(ctx, filter, "created_at ASC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending discount requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus persists a lifecycle transition, optionally with a risk score
func (r *DiscountRequestRepositoryImpl) UpdateStatus(ctx context.Context, requestID uint, status models.DiscountRequestStatus, riskScore *float64) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	if riskScore != nil {
		updates["risk_score"] = *riskScore
	}

	err = db.Model(&models.DiscountRequest{}).Where("id = ?", requestID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update discount request status: %w", err)
	}

	return nil
}
