// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AdminReportHandlerInterface defines the contract for admin report handlers
type AdminReportHandlerInterface interface {
	DecisionSummary(c fiber.Ctx) error
	DownloadDecisionAudit(c fiber.Ctx) error
}

// AdminReportHandler handles decision report HTTP requests
type AdminReportHandler struct {
	reportFlow businessflow.AdminReportFlow
	validator  *validator.Validate
}

func (h *AdminReportHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminReportHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAdminReportHandler creates a new admin report handler
func NewAdminReportHandler(reportFlow businessflow.AdminReportFlow) *AdminReportHandler {
	return &AdminReportHandler{
		reportFlow: reportFlow,
		validator:  validator.New(),
	}
}

func (h *AdminReportHandler) bindWindow(c fiber.Ctx) (*dto.DecisionSummaryRequest, []string) {
	var req dto.DecisionSummaryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, []string{err.Error()}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return nil, validationErrors
	}
	return &req, nil
}

// DecisionSummary handles the aggregated decision report
// @Summary Decision Summary
// @Description Aggregate decision outcomes of the tenant over a time window
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body dto.DecisionSummaryRequest true "Report window"
// @Success 200 {object} dto.APIResponse{data=dto.DecisionSummaryResponse} "Report generated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "No decisions in window"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/decision-summary [post]
func (h *AdminReportHandler) DecisionSummary(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	req, validationErrors := h.bindWindow(c)
	if validationErrors != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	report, err := h.reportFlow.DecisionSummary(h.createRequestContext(c, "/api/v1/reports/decision-summary"), tenantID, req.Since, req.Until)
	if err != nil {
		if businessflow.IsNoAuditRows(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No decisions recorded in the requested window", "NO_AUDIT_ROWS", nil)
		}

		log.Println("Decision summary failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate decision summary", "DECISION_SUMMARY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Decision summary generated successfully", dto.DecisionSummaryResponse{
		WindowStart:      report.WindowStart,
		WindowEnd:        report.WindowEnd,
		TotalDecisions:   report.TotalDecisions,
		CountsByAction:   report.CountsByAction,
		AverageRiskScore: report.AverageRiskScore,
		FallbackCount:    report.FallbackCount,
	})
}

// DownloadDecisionAudit handles the Excel audit export
// @Summary Download Decision Audit
// @Description Download the decision audit trail of a time window as an Excel workbook
// @Tags Reports
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param request body dto.DecisionSummaryRequest true "Report window"
// @Success 200 {file} binary "Excel workbook"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "No decisions in window"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/decision-audit/download [post]
func (h *AdminReportHandler) DownloadDecisionAudit(c fiber.Ctx) error {
	tenantID, ok := c.Locals("tenant_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant identity not found in context", "MISSING_IDENTITY", nil)
	}

	req, validationErrors := h.bindWindow(c)
	if validationErrors != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	filename, data, err := h.reportFlow.DownloadDecisionAuditExcel(h.createRequestContext(c, "/api/v1/reports/decision-audit/download"), tenantID, req.Since, req.Until)
	if err != nil {
		if businessflow.IsNoAuditRows(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No decisions recorded in the requested window", "NO_AUDIT_ROWS", nil)
		}

		log.Println("Decision audit download failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate audit workbook", "DOWNLOAD_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *AdminReportHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
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
