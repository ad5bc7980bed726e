// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountRequestHandlerInterface defines the contract for discount request handlers
type DiscountRequestHandlerInterface interface {
	CreateDiscountRequest(c fiber.Ctx) error
	ListDiscountRequests(c fiber.Ctx) error
	GetDiscountRequest(c fiber.Ctx) error
	EvaluateDiscountRequest(c fiber.Ctx) error
	ApproveDiscountRequest(c fiber.Ctx) error
	RejectDiscountRequest(c fiber.Ctx) error
	RequestAdjustment(c fiber.Ctx) error
	SubmitAdjustedRequest(c fiber.Ctx) error
	OverrideRejection(c fiber.Ctx) error
	ExplainDiscountRequest(c fiber.Ctx) error
}

// DiscountRequestHandler handles discount-request HTTP requests
type DiscountRequestHandler struct {
	decisionFlow businessflow.DiscountDecisionFlow
	validator    *validator.Validate
}

func (h *DiscountRequestHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DiscountRequestHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewDiscountRequestHandler creates a new discount request handler
func NewDiscountRequestHandler(decisionFlow businessflow.DiscountDecisionFlow) *DiscountRequestHandler {
	handler := &DiscountRequestHandler{
		decisionFlow: decisionFlow,
		validator:    validator.New(),
	}

	// Setup custom validations
	handler.setupCustomValidations()

	return handler
}

// CreateDiscountRequest handles opening a new discount request
// @Summary Create Discount Request
// @Description Open a new discount request for evaluation
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param request body dto.CreateDiscountRequestRequest true "Discount request data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateDiscountRequestResponse} "Discount request created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests [post]
func (h *DiscountRequestHandler) CreateDiscountRequest(c fiber.Ctx) error {
	var req dto.CreateDiscountRequestRequest
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

	tenantID, userID, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TenantID = tenantID
	req.SalespersonID = userID

	request := &models.DiscountRequest{
		TenantID:                    req.TenantID,
		CustomerID:                  req.CustomerID,
		SalespersonID:               req.SalespersonID,
		Currency:                    req.Currency,
		RequestedDiscountPercentage: req.RequestedDiscountPercentage,
		LineItems:                   toModelLineItems(req.LineItems),
	}

	result, err := h.decisionFlow.CreateRequest(h.createRequestContext(c, "/api/v1/discount-requests"), request)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsSalespersonNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Salesperson not found", "SALESPERSON_NOT_FOUND", nil)
		}
		if businessflow.IsDuplicateProductLine(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Line items contain a duplicate product", "DUPLICATE_PRODUCT_LINE", nil)
		}

		log.Println("Discount request creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Discount request creation failed", "CREATE_REQUEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Discount request created successfully", fiber.Map{
		"uuid":       result.UUID.String(),
		"status":     result.Status.String(),
		"created_at": result.CreatedAt,
	})
}

// ListDiscountRequests handles listing the tenant's requests
// @Summary List Discount Requests
// @Description List the tenant's discount requests, newest first
// @Tags DiscountRequests
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} dto.APIResponse{data=dto.ListDiscountRequestsResponse} "Requests retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests [get]
func (h *DiscountRequestHandler) ListDiscountRequests(c fiber.Ctx) error {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	requests, err := h.decisionFlow.ListRequests(h.createRequestContext(c, "/api/v1/discount-requests"), tenantID, limit, offset)
	if err != nil {
		log.Println("List discount requests failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list discount requests", "LIST_REQUESTS_FAILED", nil)
	}

	items := make([]dto.GetDiscountRequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, toRequestResponse(request))
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Discount requests retrieved successfully", fiber.Map{
		"requests": items,
		"total":    len(items),
	})
}

// GetDiscountRequest handles fetching one request with its line items
// @Summary Get Discount Request
// @Description Fetch one discount request with its line items
// @Tags DiscountRequests
// @Produce json
// @Param uuid path string true "Request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetDiscountRequestResponse} "Request retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid} [get]
func (h *DiscountRequestHandler) GetDiscountRequest(c fiber.Ctx) error {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	request, err := h.decisionFlow.GetRequest(h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()), tenantID, requestUUID)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}

		log.Println("Get discount request failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch discount request", "GET_REQUEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Discount request retrieved successfully", toRequestResponse(request))
}

// EvaluateDiscountRequest handles running the evaluation pipeline on a request
// @Summary Evaluate Discount Request
// @Description Run the risk, guardrail, and auto-approval pipeline over an under-analysis request
// @Tags DiscountRequests
// @Produce json
// @Param uuid path string true "Request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.EvaluateDiscountRequestResponse} "Request evaluated successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 409 {object} dto.APIResponse "Request already decided"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/evaluate [post]
func (h *DiscountRequestHandler) EvaluateDiscountRequest(c fiber.Ctx) error {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	outcome, err := h.decisionFlow.EvaluateRequest(h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()+"/evaluate"), tenantID, requestUUID)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}
		if businessflow.IsRequestAlreadyDecided(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Discount request already carries a decision", "REQUEST_ALREADY_DECIDED", nil)
		}
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsSalespersonNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Salesperson not found", "SALESPERSON_NOT_FOUND", nil)
		}

		log.Println("Discount request evaluation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Discount request evaluation failed", "EVALUATE_REQUEST_FAILED", nil)
	}

	resp := dto.EvaluateDiscountRequestResponse{
		UUID:                outcome.Request.UUID.String(),
		Status:              outcome.FinalStatus.String(),
		RiskScore:           outcome.Risk.Score,
		RiskLevel:           string(outcome.Risk.Level),
		RiskReasons:         outcome.Risk.Reasons,
		CanAutoApprove:      outcome.Evaluation.CanAutoApprove,
		RequiresHumanReview: outcome.Evaluation.RequiresHumanReview,
		GuardrailViolation:  outcome.Evaluation.GuardrailViolation,
		Reason:              outcome.Evaluation.Reason,
		AdvisoryConfidence:  outcome.Evaluation.AdvisoryConfidence,
		EvaluatedAt:         utils.UTCNow(),
	}
	if outcome.Evaluation.Guardrails != nil {
		resp.GuardrailErrors = outcome.Evaluation.Guardrails.Errors
		resp.GuardrailWarnings = outcome.Evaluation.Guardrails.Warnings
	}
	if outcome.Recommendation != nil {
		resp.RecommendedDiscount = utils.ToPtr(outcome.Recommendation.RecommendedDiscount)
		resp.AdvisorySource = outcome.Recommendation.Source
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Discount request evaluated successfully", resp)
}

// ApproveDiscountRequest handles a manual approval by a reviewer
// @Summary Approve Discount Request
// @Description Manually approve an under-analysis request
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param uuid path string true "Request UUID"
// @Param request body dto.DecideDiscountRequestRequest true "Decision data"
// @Success 200 {object} dto.APIResponse{data=dto.DecideDiscountRequestResponse} "Request approved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Decision not permitted for this role"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 409 {object} dto.APIResponse "Invalid status transition"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/approve [post]
func (h *DiscountRequestHandler) ApproveDiscountRequest(c fiber.Ctx) error {
	return h.decide(c, "approve", func(ctx context.Context, tenantID uint, requestUUID uuid.UUID, userID uint, comment string) error {
		return h.decisionFlow.ApproveRequest(ctx, tenantID, requestUUID, userID, comment)
	}, models.DiscountStatusApproved)
}

// RejectDiscountRequest handles a manual rejection by a reviewer
// @Summary Reject Discount Request
// @Description Manually reject an under-analysis request
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param uuid path string true "Request UUID"
// @Param request body dto.DecideDiscountRequestRequest true "Decision data"
// @Success 200 {object} dto.APIResponse{data=dto.DecideDiscountRequestResponse} "Request rejected successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Decision not permitted for this role"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 409 {object} dto.APIResponse "Invalid status transition"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/reject [post]
func (h *DiscountRequestHandler) RejectDiscountRequest(c fiber.Ctx) error {
	return h.decide(c, "reject", func(ctx context.Context, tenantID uint, requestUUID uuid.UUID, userID uint, comment string) error {
		return h.decisionFlow.RejectRequest(ctx, tenantID, requestUUID, userID, comment)
	}, models.DiscountStatusRejected)
}

// RequestAdjustment handles sending the request back to the salesperson
// @Summary Request Adjustment
// @Description Send an under-analysis request back to the salesperson for changes
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param uuid path string true "Request UUID"
// @Param request body dto.DecideDiscountRequestRequest true "Decision data"
// @Success 200 {object} dto.APIResponse{data=dto.DecideDiscountRequestResponse} "Adjustment requested successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Decision not permitted for this role"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 409 {object} dto.APIResponse "Invalid status transition"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/request-adjustment [post]
func (h *DiscountRequestHandler) RequestAdjustment(c fiber.Ctx) error {
	return h.decide(c, "request adjustment for", func(ctx context.Context, tenantID uint, requestUUID uuid.UUID, userID uint, comment string) error {
		return h.decisionFlow.RequestAdjustment(ctx, tenantID, requestUUID, userID, comment)
	}, models.DiscountStatusAdjustmentRequested)
}

func (h *DiscountRequestHandler) decide(
	c fiber.Ctx,
	verb string,
	apply func(ctx context.Context, tenantID uint, requestUUID uuid.UUID, userID uint, comment string) error,
	target models.DiscountRequestStatus,
) error {
	tenantID, userID, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	var req dto.DecideDiscountRequestRequest
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

	err = apply(h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()), tenantID, requestUUID, userID, req.Comment)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}
		if businessflow.IsSalespersonNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Approver not found", "APPROVER_NOT_FOUND", nil)
		}
		if businessflow.IsOverrideNotPermitted(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Only managers and admins may decide requests", "DECISION_NOT_PERMITTED", nil)
		}
		if businessflow.IsInvalidStatusTransition(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Request status does not allow this decision", "DECISION_INVALID_TRANSITION", nil)
		}

		log.Printf("Failed to %s discount request: %v", verb, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Decision failed", "DECISION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Decision applied successfully", fiber.Map{
		"status": target.String(),
	})
}

// SubmitAdjustedRequest handles resubmitting an adjusted request
// @Summary Submit Adjusted Request
// @Description Replace the line items of an adjustment-requested request and move it back under analysis
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param uuid path string true "Request UUID"
// @Param request body dto.SubmitAdjustedRequestRequest true "Adjusted request data"
// @Success 200 {object} dto.APIResponse{data=dto.GetDiscountRequestResponse} "Adjusted request submitted successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 409 {object} dto.APIResponse "Request does not accept adjustments"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/adjusted [post]
func (h *DiscountRequestHandler) SubmitAdjustedRequest(c fiber.Ctx) error {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	var req dto.SubmitAdjustedRequestRequest
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

	request, err := h.decisionFlow.SubmitAdjustedRequest(
		h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()+"/adjusted"),
		tenantID, requestUUID, req.RequestedDiscountPercentage, toModelLineItems(req.LineItems),
	)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}
		if businessflow.IsRequestNotMutable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Request status does not accept adjustments", "ADJUSTMENT_INVALID_STATUS", nil)
		}
		if businessflow.IsDuplicateProductLine(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Line items contain a duplicate product", "DUPLICATE_PRODUCT_LINE", nil)
		}

		log.Println("Adjusted request submission failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Adjusted request submission failed", "ADJUSTMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Adjusted request submitted successfully", toRequestResponse(request))
}

// OverrideRejection handles flipping a rejected request to approved
// @Summary Override Rejection
// @Description Override a non-guardrail rejection; managers and admins only
// @Tags DiscountRequests
// @Accept json
// @Produce json
// @Param uuid path string true "Request UUID"
// @Param request body dto.DecideDiscountRequestRequest true "Override data"
// @Success 200 {object} dto.APIResponse{data=dto.DecideDiscountRequestResponse} "Rejection overridden successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Override not permitted"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/override [post]
func (h *DiscountRequestHandler) OverrideRejection(c fiber.Ctx) error {
	tenantID, userID, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	var req dto.DecideDiscountRequestRequest
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

	err = h.decisionFlow.OverrideRejection(
		h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()+"/override"),
		tenantID, requestUUID, userID, req.Comment,
	)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}
		if businessflow.IsSalespersonNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Approver not found", "APPROVER_NOT_FOUND", nil)
		}
		if businessflow.IsOverrideNotPermitted(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Override not permitted", "OVERRIDE_NOT_PERMITTED", nil)
		}

		log.Println("Rejection override failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rejection override failed", "OVERRIDE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rejection overridden successfully", fiber.Map{
		"status": models.DiscountStatusApproved.String(),
	})
}

// ExplainDiscountRequest handles fetching the decision explanation
// @Summary Explain Discount Request
// @Description Fetch a human-readable explanation of the current decision
// @Tags DiscountRequests
// @Produce json
// @Param uuid path string true "Request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ExplainDiscountRequestResponse} "Explanation retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Request not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/discount-requests/{uuid}/explanation [get]
func (h *DiscountRequestHandler) ExplainDiscountRequest(c fiber.Ctx) error {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	requestUUID, err := h.pathUUID(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Request UUID is not valid", "INVALID_REQUEST_UUID", nil)
	}

	explanation, err := h.decisionFlow.ExplainRequest(
		h.createRequestContext(c, "/api/v1/discount-requests/"+requestUUID.String()+"/explanation"),
		tenantID, requestUUID,
	)
	if err != nil {
		if businessflow.IsRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Discount request not found", "REQUEST_NOT_FOUND", nil)
		}

		log.Println("Explain discount request failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch decision explanation", "EXPLAIN_REQUEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Explanation retrieved successfully", dto.ExplainDiscountRequestResponse{
		Summary: explanation.Summary,
		Factors: explanation.Factors,
		Source:  explanation.Source,
	})
}

// identity extracts the authenticated tenant and user from the request context.
func (h *DiscountRequestHandler) identity(c fiber.Ctx) (tenantID, userID uint, ok bool) {
	tenantID, tenantOK := c.Locals("tenant_id").(uint)
	userID, userOK := c.Locals("user_id").(uint)
	return tenantID, userID, tenantOK && userOK
}

func (h *DiscountRequestHandler) pathUUID(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("uuid"))
}

func toModelLineItems(items []dto.DiscountLineItemRequest) []models.DiscountLineItem {
	result := make([]models.DiscountLineItem, 0, len(items))
	for _, item := range items {
		base := decimal.NewFromFloat(item.UnitBasePrice)
		discounted := decimal.NewFromFloat(item.UnitDiscountedPrice)

		itemDiscount := 0.0
		if base.IsPositive() {
			itemDiscount, _ = decimal.NewFromInt(100).
				Mul(base.Sub(discounted)).
				Div(base).
				Round(2).
				Float64()
		}

		result = append(result, models.DiscountLineItem{
			ProductID:              item.ProductID,
			ProductName:            item.ProductName,
			Quantity:               item.Quantity,
			UnitBasePrice:          base,
			UnitDiscountedPrice:    discounted,
			ItemDiscountPercentage: itemDiscount,
		})
	}
	return result
}

func toRequestResponse(request *models.DiscountRequest) dto.GetDiscountRequestResponse {
	items := make([]dto.DiscountLineItemResponse, 0, len(request.LineItems))
	for _, item := range request.LineItems {
		base, _ := item.UnitBasePrice.Float64()
		discounted, _ := item.UnitDiscountedPrice.Float64()
		items = append(items, dto.DiscountLineItemResponse{
			ProductID:              item.ProductID,
			ProductName:            item.ProductName,
			Quantity:               item.Quantity,
			UnitBasePrice:          base,
			UnitDiscountedPrice:    discounted,
			ItemDiscountPercentage: item.ItemDiscountPercentage,
		})
	}

	return dto.GetDiscountRequestResponse{
		UUID:                        request.UUID.String(),
		Status:                      request.Status.String(),
		CustomerID:                  request.CustomerID,
		SalespersonID:               request.SalespersonID,
		Currency:                    request.Currency,
		RequestedDiscountPercentage: request.RequestedDiscountPercentage,
		RiskScore:                   request.RiskScore,
		EstimatedMargin:             request.EstimatedMargin,
		Comments:                    request.Comments,
		LineItems:                   items,
		CreatedAt:                   request.CreatedAt,
		UpdatedAt:                   request.UpdatedAt,
	}
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *DiscountRequestHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *DiscountRequestHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}

// setupCustomValidations sets up custom validation rules
func (h *DiscountRequestHandler) setupCustomValidations() {
	// Add custom validation rules if needed
	// Example: h.validator.RegisterValidation("custom_rule", customValidationFunc)
}
