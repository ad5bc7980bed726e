// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SalespersonRepositoryImpl implements SalespersonRepository interface
type SalespersonRepositoryImpl struct {
	*BaseRepository[models.Salesperson, models.SalespersonFilter]
}

// NewSalespersonRepository creates a new salesperson repository
func NewSalespersonRepository(db *gorm.DB) SalespersonRepository {
	return &SalespersonRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Salesperson, models.SalespersonFilter](db, applySalespersonFilter),
	}
}

func applySalespersonFilter(db *gorm.DB, filter models.SalespersonFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.Role != nil {
		db = db.Where("role = ?", *filter.Role)
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

// ByUUID retrieves a salesperson by UUID
func (r *SalespersonRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Salesperson, error) {
	db := r.getDB(ctx)

	var salesperson models.Salesperson
	err := db.Where("uuid = ?", id).First(&salesperson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find salesperson by UUID: %w", err)
	}

	return &salesperson, nil
}

// ByEmail retrieves a salesperson by email address
func (r *SalespersonRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Salesperson, error) {
	salespersons, err := r.ByFilter(ctx, models.SalespersonFilter{Email: &email}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find salesperson by email: %w", err)
	}
	if len(salespersons) == 0 {
		return nil, nil
	}
	return salespersons[0], nil
}
