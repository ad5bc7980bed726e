// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AdvisoryAdminHandlerInterface defines the contract for advisory admin handlers
type AdvisoryAdminHandlerInterface interface {
	GatewayStats(c fiber.Ctx) error
	Availability(c fiber.Ctx) error
	GetGovernanceSettings(c fiber.Ctx) error
	UpdateGovernanceSettings(c fiber.Ctx) error
	TrainModel(c fiber.Ctx) error
}

// AdvisoryAdminHandler handles advisory gateway administration requests
type AdvisoryAdminHandler struct {
	advisorySvc services.AdvisoryService
	metrics     services.AdvisoryMetrics
	breaker     *services.CircuitBreaker
	validator   *validator.Validate
}

func (h *AdvisoryAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdvisoryAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAdvisoryAdminHandler creates a new advisory admin handler
func NewAdvisoryAdminHandler(advisorySvc services.AdvisoryService, metrics services.AdvisoryMetrics, breaker *services.CircuitBreaker) *AdvisoryAdminHandler {
	return &AdvisoryAdminHandler{
		advisorySvc: advisorySvc,
		metrics:     metrics,
		breaker:     breaker,
		validator:   validator.New(),
	}
}

// GatewayStats handles windowed per-operation gateway statistics
// @Summary Advisory Gateway Stats
// @Description Report cache, breaker, and latency statistics for one gateway operation
// @Tags Advisory
// @Produce json
// @Param operation query string false "Gateway operation" default(recommend-discount)
// @Param window_minutes query int false "Stats window in minutes" default(15)
// @Success 200 {object} dto.APIResponse{data=dto.AdvisoryStatsResponse} "Stats retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/advisory/stats [get]
func (h *AdvisoryAdminHandler) GatewayStats(c fiber.Ctx) error {
	operation := c.Query("operation", services.OpRecommendDiscount)
	windowMinutes, err := strconv.Atoi(c.Query("window_minutes", "15"))
	if err != nil || windowMinutes <= 0 || windowMinutes > 24*60 {
		windowMinutes = 15
	}

	stats := h.metrics.StatsFor(operation, time.Duration(windowMinutes)*time.Minute)

	return h.SuccessResponse(c, fiber.StatusOK, "Gateway stats retrieved successfully", dto.AdvisoryStatsResponse{
		Operation:           operation,
		WindowMinutes:       windowMinutes,
		Successes:           stats.Successes,
		Errors:              stats.Errors,
		Timeouts:            stats.Timeouts,
		CacheHits:           stats.CacheHits,
		CacheMisses:         stats.CacheMisses,
		BreakerOpenSkips:    stats.BreakerOpenSkips,
		Fallbacks:           stats.Fallbacks,
		AverageResponseMs:   stats.AverageResponseTime.Milliseconds(),
		BreakerFailureCount: h.breaker.FailureCount(),
	})
}

// Availability handles probing the advisory service
// @Summary Advisory Availability
// @Description Probe the advisory service with a tight timeout
// @Tags Advisory
// @Produce json
// @Success 200 {object} dto.APIResponse "Advisory service is reachable"
// @Failure 503 {object} dto.APIResponse "Advisory service is unreachable"
// @Router /api/v1/advisory/availability [get]
func (h *AdvisoryAdminHandler) Availability(c fiber.Ctx) error {
	if err := h.advisorySvc.CheckAvailability(h.createRequestContext(c, "/api/v1/advisory/availability")); err != nil {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Advisory service is unreachable", "ADVISORY_UNAVAILABLE", err.Error())
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Advisory service is reachable", nil)
}

// GetGovernanceSettings handles fetching the tenant's advisory governance
// @Summary Get Governance Settings
// @Description Fetch the tenant's advisory governance settings
// @Tags Advisory
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GovernanceSettingsResponse} "Settings retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/advisory/governance [get]
func (h *AdvisoryAdminHandler) GetGovernanceSettings(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	settings, err := h.advisorySvc.GetGovernanceSettings(h.createRequestContext(c, "/api/v1/advisory/governance"), tenantID)
	if err != nil {
		log.Println("Get governance settings failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch governance settings", "GET_GOVERNANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Governance settings retrieved successfully", dto.GovernanceSettingsResponse{
		AIEnabled:     settings.AIEnabled,
		MinConfidence: settings.MinConfidence,
		UpdatedAt:     settings.UpdatedAt,
	})
}

// UpdateGovernanceSettings handles updating the tenant's advisory governance
// @Summary Update Governance Settings
// @Description Update the tenant's advisory governance settings
// @Tags Advisory
// @Accept json
// @Produce json
// @Param request body dto.GovernanceSettingsRequest true "Governance settings"
// @Success 200 {object} dto.APIResponse{data=dto.GovernanceSettingsResponse} "Settings updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 502 {object} dto.APIResponse "Advisory service rejected the update"
// @Router /api/v1/advisory/governance [put]
func (h *AdvisoryAdminHandler) UpdateGovernanceSettings(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	var req dto.GovernanceSettingsRequest
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

	settings := &services.GovernanceSettings{
		TenantID:      tenantID,
		AIEnabled:     req.AIEnabled,
		MinConfidence: req.MinConfidence,
		UpdatedAt:     utils.UTCNow(),
	}
	if err := h.advisorySvc.UpdateGovernanceSettings(h.createRequestContext(c, "/api/v1/advisory/governance"), settings); err != nil {
		log.Println("Update governance settings failed", err)
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Advisory service rejected the governance update", "UPDATE_GOVERNANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Governance settings updated successfully", dto.GovernanceSettingsResponse{
		AIEnabled:     settings.AIEnabled,
		MinConfidence: settings.MinConfidence,
		UpdatedAt:     settings.UpdatedAt,
	})
}

// TrainModel handles submitting a tenant-scoped retraining run
// @Summary Train Advisory Model
// @Description Submit a tenant-scoped advisory retraining run
// @Tags Advisory
// @Accept json
// @Produce json
// @Param request body dto.TrainModelRequest true "Training window"
// @Success 202 {object} dto.APIResponse{data=dto.TrainModelResponse} "Training run submitted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/advisory/train [post]
func (h *AdvisoryAdminHandler) TrainModel(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	var req dto.TrainModelRequest
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
	if req.WindowDays == 0 {
		req.WindowDays = 90
	}

	// The gateway absorbs training failures into a failed job descriptor.
	job, err := h.advisorySvc.TrainModel(h.createRequestContextWithTimeout(c, "/api/v1/advisory/train", 45*time.Second), &services.ModelTrainingRequest{
		TenantID:   tenantID,
		WindowDays: req.WindowDays,
	})
	if err != nil {
		log.Println("Model training submission failed", err)
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to submit training run", "TRAIN_MODEL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Training run submitted", dto.TrainModelResponse{
		JobID:       job.JobID,
		Status:      job.Status,
		SubmittedAt: job.SubmittedAt,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *AdvisoryAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *AdvisoryAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
