// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// BusinessRuleHandlerInterface defines the contract for business rule handlers
type BusinessRuleHandlerInterface interface {
	CreateBusinessRule(c fiber.Ctx) error
	ListBusinessRules(c fiber.Ctx) error
	SetBusinessRuleActive(c fiber.Ctx) error
}

// BusinessRuleHandler handles business-rule HTTP requests
type BusinessRuleHandler struct {
	ruleFlow  businessflow.BusinessRuleFlow
	validator *validator.Validate
}

func (h *BusinessRuleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BusinessRuleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewBusinessRuleHandler creates a new business rule handler
func NewBusinessRuleHandler(ruleFlow businessflow.BusinessRuleFlow) *BusinessRuleHandler {
	return &BusinessRuleHandler{
		ruleFlow:  ruleFlow,
		validator: validator.New(),
	}
}

// CreateBusinessRule handles creating a guardrail or auto-approval rule
// @Summary Create Business Rule
// @Description Create a tenant-scoped guardrail or auto-approval rule
// @Tags BusinessRules
// @Accept json
// @Produce json
// @Param request body dto.CreateBusinessRuleRequest true "Rule data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateBusinessRuleResponse} "Rule created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid rule"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/business-rules [post]
func (h *BusinessRuleHandler) CreateBusinessRule(c fiber.Ctx) error {
	var req dto.CreateBusinessRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TenantID = tenantID

	rule := &models.BusinessRule{
		TenantID:  req.TenantID,
		Name:      req.Name,
		Kind:      models.RuleKind(req.Kind),
		Scope:     models.RuleScope(req.Scope),
		TargetID:  req.TargetID,
		TargetKey: req.TargetKey,
		Priority:  req.Priority,
		Params: models.RuleParams{
			MinimumMarginPercentage: req.Params.MinimumMarginPercentage,
			MaxDiscountPercentage:   req.Params.MaxDiscountPercentage,
			MaxRiskScore:            req.Params.MaxRiskScore,
			MinAIConfidence:         req.Params.MinAIConfidence,
		},
	}

	result, err := h.ruleFlow.CreateRule(h.createRequestContext(c, "/api/v1/business-rules"), rule)
	if err != nil {
		if businessflow.IsRuleInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule definition is not valid", "CREATE_RULE_INVALID", err.Error())
		}

		log.Println("Business rule creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Business rule creation failed", "CREATE_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Business rule created successfully", fiber.Map{
		"uuid":       result.UUID.String(),
		"created_at": result.CreatedAt,
	})
}

// ListBusinessRules handles listing the tenant's rules
// @Summary List Business Rules
// @Description List every rule of the tenant ordered by priority
// @Tags BusinessRules
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListBusinessRulesResponse} "Rules retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/business-rules [get]
func (h *BusinessRuleHandler) ListBusinessRules(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	rules, err := h.ruleFlow.ListRules(h.createRequestContext(c, "/api/v1/business-rules"), tenantID)
	if err != nil {
		log.Println("List business rules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list business rules", "LIST_RULES_FAILED", nil)
	}

	items := make([]dto.GetBusinessRuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, dto.GetBusinessRuleResponse{
			UUID:      rule.UUID.String(),
			Name:      rule.Name,
			Kind:      string(rule.Kind),
			Scope:     string(rule.Scope),
			TargetID:  rule.TargetID,
			TargetKey: rule.TargetKey,
			Priority:  rule.Priority,
			IsActive:  rule.Active(),
			Params: dto.RuleParamsRequest{
				MinimumMarginPercentage: rule.Params.MinimumMarginPercentage,
				MaxDiscountPercentage:   rule.Params.MaxDiscountPercentage,
				MaxRiskScore:            rule.Params.MaxRiskScore,
				MinAIConfidence:         rule.Params.MinAIConfidence,
			},
			CreatedAt: rule.CreatedAt,
		})
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business rules retrieved successfully", fiber.Map{
		"rules": items,
	})
}

// SetBusinessRuleActive handles toggling a rule on or off
// @Summary Toggle Business Rule
// @Description Activate or deactivate a rule within the tenant
// @Tags BusinessRules
// @Accept json
// @Produce json
// @Param uuid path string true "Rule UUID"
// @Param request body dto.SetBusinessRuleActiveRequest true "Toggle data"
// @Success 200 {object} dto.APIResponse{data=dto.SetBusinessRuleActiveResponse} "Rule toggled successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/business-rules/{uuid}/active [put]
func (h *BusinessRuleHandler) SetBusinessRuleActive(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	ruleUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule UUID is not valid", "INVALID_RULE_UUID", nil)
	}

	var req dto.SetBusinessRuleActiveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	rule, err := h.ruleFlow.SetRuleActive(h.createRequestContext(c, "/api/v1/business-rules/"+ruleUUID.String()+"/active"), tenantID, ruleUUID, req.IsActive)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Business rule toggle failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Business rule toggle failed", "SET_RULE_ACTIVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business rule toggled successfully", fiber.Map{
		"is_active": rule.Active(),
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *BusinessRuleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	timeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
