// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BusinessRuleFlow manages the tenant's guardrail and auto-approval rules.
// Rules are validated at creation so the evaluation pipeline can trust
// whatever it loads.
type BusinessRuleFlow interface {
	CreateRule(ctx context.Context, rule *models.BusinessRule) (*models.BusinessRule, error)
	ListRules(ctx context.Context, tenantID uint) ([]*models.BusinessRule, error)
	SetRuleActive(ctx context.Context, tenantID uint, ruleUUID uuid.UUID, active bool) (*models.BusinessRule, error)
}

// BusinessRuleFlowImpl implements BusinessRuleFlow
type BusinessRuleFlowImpl struct {
	ruleRepo repository.BusinessRuleRepository
	db       *gorm.DB
}

// NewBusinessRuleFlow creates a new business rule flow instance
func NewBusinessRuleFlow(ruleRepo repository.BusinessRuleRepository, db *gorm.DB) BusinessRuleFlow {
	return &BusinessRuleFlowImpl{
		ruleRepo: ruleRepo,
		db:       db,
	}
}

// CreateRule validates and persists a new rule for the tenant.
func (f *BusinessRuleFlowImpl) CreateRule(ctx context.Context, rule *models.BusinessRule) (*models.BusinessRule, error) {
	if rule == nil {
		return nil, NewBusinessError("CREATE_RULE_INVALID", "Business rule is required", ErrRuleNotFound)
	}
	if err := rule.Validate(); err != nil {
		return nil, NewBusinessError("CREATE_RULE_INVALID", "Business rule is not valid", err)
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.ruleRepo.Save(txCtx, rule)
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_RULE_FAILED", "Failed to create business rule", err)
	}

	return rule, nil
}

// ListRules returns every rule of the tenant, active or not, ordered by priority.
func (f *BusinessRuleFlowImpl) ListRules(ctx context.Context, tenantID uint) ([]*models.BusinessRule, error) {
	rules, err := f.ruleRepo.ByFilter(ctx, models.BusinessRuleFilter{TenantID: &tenantID}, "priority ASC, id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_RULES_FAILED", "Failed to list business rules", err)
	}
	return rules, nil
}

// SetRuleActive toggles a rule on or off within the tenant.
func (f *BusinessRuleFlowImpl) SetRuleActive(ctx context.Context, tenantID uint, ruleUUID uuid.UUID, active bool) (*models.BusinessRule, error) {
	rule, err := f.ruleRepo.ByUUID(ctx, ruleUUID)
	if err != nil {
		return nil, NewBusinessError("SET_RULE_ACTIVE_FAILED", "Failed to load business rule", err)
	}
	if rule == nil || rule.TenantID != tenantID {
		return nil, NewBusinessError("RULE_NOT_FOUND", "Business rule not found", ErrRuleNotFound)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.ruleRepo.SetActive(txCtx, rule.ID, active)
	})
	if err != nil {
		return nil, NewBusinessError("SET_RULE_ACTIVE_FAILED", "Failed to toggle business rule", err)
	}

	rule.IsActive = &active
	return rule, nil
}
