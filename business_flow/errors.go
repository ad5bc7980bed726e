// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/Kusanagi/models"
)

// Business flow error constants
var (
	// Invalid-argument errors (caller misuse, never swallowed)
	ErrInvalidFinalPrice   = errors.New("final price must be greater than zero")
	ErrInvalidBasePrice    = errors.New("base price must be greater than zero")
	ErrDiscountOutOfRange  = errors.New("discount percentage must be between 0 and 100")
	ErrMarginOutOfRange    = errors.New("margin percentage must be below 100")
	ErrCustomerRequired    = errors.New("customer is required")
	ErrSalespersonRequired = errors.New("salesperson is required")
	ErrRequestRequired     = errors.New("discount request is required")
	ErrRequestHasNoItems   = errors.New("discount request has no line items")
	ErrEvaluatorRequired   = errors.New("evaluator is required")
	ErrTenantMismatch      = errors.New("entities belong to different tenants")

	// Lookup errors
	ErrRequestNotFound     = errors.New("discount request not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrSalespersonNotFound = errors.New("salesperson not found")
	ErrRuleNotFound        = errors.New("business rule not found")

	// Lifecycle errors
	ErrRequestAlreadyDecided = errors.New("discount request already carries a terminal decision")
	ErrOverrideNotPermitted  = errors.New("override not permitted")

	// Report errors
	ErrNoAuditRows = errors.New("no audit rows for the requested window")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsBusinessError(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsOverrideNotPermitted(err error) bool {
	return errors.Is(err, ErrOverrideNotPermitted)
}

func IsRequestAlreadyDecided(err error) bool {
	return errors.Is(err, ErrRequestAlreadyDecided)
}

func IsSalespersonNotFound(err error) bool {
	return errors.Is(err, ErrSalespersonNotFound)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsNoAuditRows(err error) bool {
	return errors.Is(err, ErrNoAuditRows)
}

func IsDuplicateProductLine(err error) bool {
	return errors.Is(err, models.ErrDuplicateProductLine)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, models.ErrInvalidStatusTransition)
}

func IsRequestNotMutable(err error) bool {
	return errors.Is(err, models.ErrRequestNotMutable)
}

func IsRuleInvalid(err error) bool {
	return errors.Is(err, models.ErrInvalidRuleKind) ||
		errors.Is(err, models.ErrInvalidRuleScope) ||
		errors.Is(err, models.ErrRuleTargetRequired) ||
		errors.Is(err, models.ErrRuleParamsRequired) ||
		errors.Is(err, models.ErrRuleParamsForeign)
}
