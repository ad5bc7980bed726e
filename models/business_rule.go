// Package models contains domain entities and business models for the discount decision engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business rule invariant errors
var (
	ErrInvalidRuleKind    = errors.New("invalid rule kind")
	ErrInvalidRuleScope   = errors.New("invalid rule scope")
	ErrRuleTargetRequired = errors.New("rule scope requires a target")
	ErrRuleParamsRequired = errors.New("rule parameters are required for the rule kind")
	ErrRuleParamsForeign  = errors.New("rule parameters do not belong to the rule kind")
)

// RuleKind represents the kind of a business rule (guardrail)
type RuleKind string

const (
	RuleKindMinimumMargin RuleKind = "minimum-margin"
	RuleKindDiscountLimit RuleKind = "discount-limit"
	RuleKindAutoApproval  RuleKind = "auto-approval"
)

// Valid checks if the rule kind is valid
func (k RuleKind) Valid() bool {
	switch k {
	case RuleKindMinimumMargin, RuleKindDiscountLimit, RuleKindAutoApproval:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RuleKind
func (k *RuleKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*k = RuleKind(v)
	case []byte:
		*k = RuleKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RuleKind", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for RuleKind
func (k RuleKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid RuleKind: %s", k)
	}
	return string(k), nil
}

// RuleScope represents the applicability scope of a business rule
type RuleScope string

const (
	RuleScopeGlobal   RuleScope = "global"
	RuleScopeProduct  RuleScope = "product"
	RuleScopeCategory RuleScope = "category"
	RuleScopeCustomer RuleScope = "customer"
	RuleScopeUserRole RuleScope = "user-role"
)

// Valid checks if the rule scope is valid
func (s RuleScope) Valid() bool {
	switch s {
	case RuleScopeGlobal, RuleScopeProduct, RuleScopeCategory,
		RuleScopeCustomer, RuleScopeUserRole:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RuleScope
func (s *RuleScope) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = RuleScope(v)
	case []byte:
		*s = RuleScope(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RuleScope", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for RuleScope
func (s RuleScope) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RuleScope: %s", s)
	}
	return string(s), nil
}

// RuleParams holds the typed thresholds of a rule. Exactly the fields that
// belong to the rule kind are populated; everything else stays nil. A nil
// threshold means "no threshold supplied", never zero.
type RuleParams struct {
	// MinimumMargin rules
	MinimumMarginPercentage *float64 `json:"minimumMarginPercentage,omitempty"`

	// DiscountLimit and AutoApproval rules
	MaxDiscountPercentage *float64 `json:"maxDiscountPercentage,omitempty"`

	// AutoApproval rules
	MaxRiskScore    *float64 `json:"maxRiskScore,omitempty"`
	MinAIConfidence *float64 `json:"minAIConfidence,omitempty"`
}

// Value implements the driver.Valuer interface for RuleParams
func (p RuleParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for RuleParams. A malformed
// payload scans to an empty parameter bag so a broken rule contributes
// nothing instead of blocking evaluation.
func (p *RuleParams) Scan(value any) error {
	if value == nil {
		*p = RuleParams{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = RuleParams{}
		return nil
	}

	if err := json.Unmarshal(bytes, p); err != nil {
		*p = RuleParams{}
	}
	return nil
}

// IsEmpty reports whether no threshold at all is populated.
func (p RuleParams) IsEmpty() bool {
	return p.MinimumMarginPercentage == nil && p.MaxDiscountPercentage == nil &&
		p.MaxRiskScore == nil && p.MinAIConfidence == nil
}

// BusinessRule represents a tenant-configured guardrail or auto-approval rule
type BusinessRule struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_business_rules_uuid" json:"uuid"`
	TenantID  uint       `gorm:"not null;index:idx_business_rules_tenant_id" json:"tenant_id"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Kind      RuleKind   `gorm:"type:business_rule_kind;not null;index:idx_business_rules_kind" json:"kind"`
	Scope     RuleScope  `gorm:"type:business_rule_scope;not null;default:'global'" json:"scope"`
	TargetID  *uint      `json:"target_id,omitempty"`
	TargetKey *string    `gorm:"size:255" json:"target_key,omitempty"`
	Params    RuleParams `gorm:"type:jsonb;not null" json:"params"`
	Priority  int        `gorm:"not null;default:100;index:idx_business_rules_priority" json:"priority"`
	IsActive  *bool      `gorm:"default:true;index:idx_business_rules_is_active" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (BusinessRule) TableName() string {
	return "business_rules"
}

// BeforeCreate is called before creating a new record
func (r *BusinessRule) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Validate checks kind, scope, target and parameter coherence. Rules are
// validated at creation time so evaluation never parses ad hoc.
func (r *BusinessRule) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRuleKind, r.Kind)
	}
	if !r.Scope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRuleScope, r.Scope)
	}

	switch r.Scope {
	case RuleScopeProduct, RuleScopeCustomer:
		if r.TargetID == nil {
			return fmt.Errorf("%w: scope %s needs a target entity id", ErrRuleTargetRequired, r.Scope)
		}
	case RuleScopeCategory, RuleScopeUserRole:
		if r.TargetKey == nil || *r.TargetKey == "" {
			return fmt.Errorf("%w: scope %s needs a target identifier", ErrRuleTargetRequired, r.Scope)
		}
	}

	switch r.Kind {
	case RuleKindMinimumMargin:
		if r.Params.MinimumMarginPercentage == nil {
			return fmt.Errorf("%w: minimum-margin needs minimumMarginPercentage", ErrRuleParamsRequired)
		}
		if r.Params.MaxDiscountPercentage != nil || r.Params.MaxRiskScore != nil || r.Params.MinAIConfidence != nil {
			return fmt.Errorf("%w: minimum-margin accepts only minimumMarginPercentage", ErrRuleParamsForeign)
		}
	case RuleKindDiscountLimit:
		if r.Params.MaxDiscountPercentage == nil {
			return fmt.Errorf("%w: discount-limit needs maxDiscountPercentage", ErrRuleParamsRequired)
		}
		if r.Params.MinimumMarginPercentage != nil || r.Params.MaxRiskScore != nil || r.Params.MinAIConfidence != nil {
			return fmt.Errorf("%w: discount-limit accepts only maxDiscountPercentage", ErrRuleParamsForeign)
		}
	case RuleKindAutoApproval:
		if r.Params.MinimumMarginPercentage != nil {
			return fmt.Errorf("%w: auto-approval does not accept minimumMarginPercentage", ErrRuleParamsForeign)
		}
	}

	return nil
}

// Active reports whether the rule participates in evaluation.
func (r *BusinessRule) Active() bool {
	return r.IsActive != nil && *r.IsActive
}

// AppliesToProduct reports whether the rule constrains the given product.
// Product-scoped rules match only their target; every other scope applies.
func (r *BusinessRule) AppliesToProduct(productID uint) bool {
	if r.Scope == RuleScopeProduct {
		return r.TargetID != nil && *r.TargetID == productID
	}
	return true
}

// AppliesToRole reports whether the rule constrains requests filed by the
// given salesperson role. Role-scoped rules match only their target role.
func (r *BusinessRule) AppliesToRole(role string) bool {
	if r.Scope == RuleScopeUserRole {
		return r.TargetKey != nil && *r.TargetKey == role
	}
	return true
}

// AppliesToCustomer reports whether the rule constrains the given customer.
func (r *BusinessRule) AppliesToCustomer(customerID uint) bool {
	if r.Scope == RuleScopeCustomer {
		return r.TargetID != nil && *r.TargetID == customerID
	}
	return true
}

// BusinessRuleFilter represents filter criteria for business rule queries
type BusinessRuleFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	TenantID      *uint
	Kind          *RuleKind
	Scope         *RuleScope
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SortRulesByPriority orders rules ascending by priority (lower = evaluated
// first), stable for equal priorities.
func SortRulesByPriority(rules []*BusinessRule) []*BusinessRule {
	sorted := make([]*BusinessRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}
