// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"github.com/google/uuid"
)

// Repository is the generic contract shared by all aggregate repositories
type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// DiscountRequestRepository defines operations for discount requests
type DiscountRequestRepository interface {
	Repository[models.DiscountRequest, models.DiscountRequestFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.DiscountRequest, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error)
	ListPendingAnalysis(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error)
	UpdateStatus(ctx context.Context, requestID uint, status models.DiscountRequestStatus, riskScore *float64) error
}

// BusinessRuleRepository defines operations for business rules
type BusinessRuleRepository interface {
	Repository[models.BusinessRule, models.BusinessRuleFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.BusinessRule, error)
	ListActiveByTenant(ctx context.Context, tenantID uint) ([]*models.BusinessRule, error)
	ListActiveByTenantAndKind(ctx context.Context, tenantID uint, kind models.RuleKind) ([]*models.BusinessRule, error)
	SetActive(ctx context.Context, ruleID uint, active bool) error
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Customer, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Customer, error)
}

// SalespersonRepository defines operations for salespersons
type SalespersonRepository interface {
	Repository[models.Salesperson, models.SalespersonFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Salesperson, error)
	ByEmail(ctx context.Context, email string) (*models.Salesperson, error)
}

// ProductCostRepository defines operations for product cost lookups
type ProductCostRepository interface {
	Repository[models.ProductCost, models.ProductCostFilter]
	CostMapForProducts(ctx context.Context, tenantID uint, productIDs []uint) (map[uint]models.Money, error)
}

// DecisionAuditLogRepository defines operations for decision audit logs
type DecisionAuditLogRepository interface {
	Repository[models.DecisionAuditLog, models.DecisionAuditLogFilter]
	ListByRequest(ctx context.Context, requestUUID uuid.UUID, limit, offset int) ([]*models.DecisionAuditLog, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DecisionAuditLog, error)
}
