// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// ProductCostRepositoryImpl implements ProductCostRepository interface
type ProductCostRepositoryImpl struct {
	*BaseRepository[models.ProductCost, models.ProductCostFilter]
}

// NewProductCostRepository creates a new product cost repository
func NewProductCostRepository(db *gorm.DB) ProductCostRepository {
	return &ProductCostRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProductCost, models.ProductCostFilter](db, applyProductCostFilter),
	}
}

func applyProductCostFilter(db *gorm.DB, filter models.ProductCostFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.ProductID != nil {
		db = db.Where("product_id = ?", *filter.ProductID)
	}
	return db
}

// CostMapForProducts resolves unit costs for the given products. Products
// without a cost row are simply absent from the map.
func (r *ProductCostRepositoryImpl) CostMapForProducts(ctx context.Context, tenantID uint, productIDs []uint) (map[uint]models.Money, error) {
	if len(productIDs) == 0 {
		return map[uint]models.Money{}, nil
	}

	db := r.getDB(ctx)

	var costs []*models.ProductCost
	err := db.Where("tenant_id = ? AND product_id IN ?", tenantID, productIDs).Find(&costs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product costs: %w", err)
	}

	costMap := make(map[uint]models.Money, len(costs))
	for _, c := range costs {
		costMap[c.ProductID] = c.Money()
	}
	return costMap, nil
}
