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

// BusinessRuleRepositoryImpl implements BusinessRuleRepository interface
type BusinessRuleRepositoryImpl struct {
	*BaseRepository[models.BusinessRule, models.BusinessRuleFilter]
}

// NewBusinessRuleRepository creates a new business rule repository
func NewBusinessRuleRepository(db *gorm.DB) BusinessRuleRepository {
	return &BusinessRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BusinessRule, models.BusinessRuleFilter](db, applyBusinessRuleFilter),
	}
}

func applyBusinessRuleFilter(db *gorm.DB, filter models.BusinessRuleFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	if filter.Scope != nil {
		db = db.Where("scope = ?", *filter.Scope)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByUUID retrieves a business rule by UUID
func (r *BusinessRuleRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.BusinessRule, error) {
	db := r.getDB(ctx)

	var rule models.BusinessRule
	err := db.Where("uuid = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business rule by UUID: %w", err)
	}

	return &rule, nil
}

// ListActiveByTenant retrieves all active rules for a tenant, lowest priority first
func (r *BusinessRuleRepositoryImpl) ListActiveByTenant(ctx context.Context, tenantID uint) ([]*models.BusinessRule, error) {
	active := true
	filter := models.BusinessRuleFilter{TenantID: &tenantID, IsActive: &active}
	rules, err := r.ByFilter(ctx, filter, "priority ASC, id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list active business rules: %w", err)
	}
	return rules, nil
}

// ListActiveByTenantAndKind retrieves active rules of one kind, lowest priority first
func (r *BusinessRuleRepositoryImpl) ListActiveByTenantAndKind(ctx context.Context, tenantID uint, kind models.RuleKind) ([]*models.BusinessRule, error) {
	active := true
	filter := models.BusinessRuleFilter{TenantID: &tenantID, Kind: &kind, IsActive: &active}
	rules, err := r.ByFilter(ctx, filter, "priority ASC, id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list active business rules by kind: %w", err)
	}
	return rules, nil
}

// SetActive toggles a rule's participation in evaluation
func (r *BusinessRuleRepositoryImpl) SetActive(ctx context.Context, ruleID uint, active bool) error {
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

	err = db.Model(&models.BusinessRule{}).Where("id = ?", ruleID).Updates(map[string]any{
		"is_active":  active,
		"updated_at": utils.UTCNow(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to toggle business rule: %w", err)
	}

	return nil
}
