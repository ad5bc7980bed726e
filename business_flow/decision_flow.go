// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// historyWindow bounds how many past requests feed the history aggregates
const historyWindow = 200

// EvaluationOutcome is the result of one full evaluation run over a request
type EvaluationOutcome struct {
	Request        *models.DiscountRequest          `json:"request"`
	Risk           *RiskAssessment                  `json:"risk"`
	Evaluation     *AutoApprovalEvaluation          `json:"evaluation"`
	Recommendation *services.DiscountRecommendation `json:"recommendation,omitempty"`
	AdvisoryRisk   *services.AdvisoryRiskScore      `json:"advisory_risk,omitempty"`
	FinalStatus    models.DiscountRequestStatus     `json:"final_status"`
}

// DiscountDecisionFlow orchestrates the request lifecycle: creation, the
// evaluation pipeline, manual decisions, adjustments, and overrides. Every
// state change is audited.
type DiscountDecisionFlow interface {
	CreateRequest(ctx context.Context, request *models.DiscountRequest) (*models.DiscountRequest, error)
	EvaluateRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*EvaluationOutcome, error)
	ApproveRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, comment string) error
	RejectRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, reason string) error
	RequestAdjustment(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, comment string) error
	SubmitAdjustedRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, requestedDiscount float64, items []models.DiscountLineItem) (*models.DiscountRequest, error)
	OverrideRejection(ctx context.Context, tenantID uint, requestUUID uuid.UUID, managerID uint, comment string) error
	GetRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*models.DiscountRequest, error)
	ListRequests(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error)
	ExplainRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*services.DecisionExplanation, error)
}

// DiscountDecisionFlowImpl implements DiscountDecisionFlow
type DiscountDecisionFlowImpl struct {
	requestRepo  repository.DiscountRequestRepository
	customerRepo repository.CustomerRepository
	salesRepo    repository.SalespersonRepository
	ruleRepo     repository.BusinessRuleRepository
	costRepo     repository.ProductCostRepository
	auditRepo    repository.DecisionAuditLogRepository

	marginCalc  MarginCalculator
	riskCalc    RiskScoreCalculator
	evaluator   AutoApprovalEvaluator
	advisorySvc services.AdvisoryService
	notifier    services.NotificationService

	db *gorm.DB
}

// NewDiscountDecisionFlow creates a new decision flow instance
func NewDiscountDecisionFlow(
	requestRepo repository.DiscountRequestRepository,
	customerRepo repository.CustomerRepository,
	salesRepo repository.SalespersonRepository,
	ruleRepo repository.BusinessRuleRepository,
	costRepo repository.ProductCostRepository,
	auditRepo repository.DecisionAuditLogRepository,
	marginCalc MarginCalculator,
	riskCalc RiskScoreCalculator,
	evaluator AutoApprovalEvaluator,
	advisorySvc services.AdvisoryService,
	notifier services.NotificationService,
	db *gorm.DB,
) DiscountDecisionFlow {
	return &DiscountDecisionFlowImpl{
		requestRepo:  requestRepo,
		customerRepo: customerRepo,
		salesRepo:    salesRepo,
		ruleRepo:     ruleRepo,
		costRepo:     costRepo,
		auditRepo:    auditRepo,
		marginCalc:   marginCalc,
		riskCalc:     riskCalc,
		evaluator:    evaluator,
		advisorySvc:  advisorySvc,
		notifier:     notifier,
		db:           db,
	}
}

// CreateRequest persists a new request in under-analysis status.
func (f *DiscountDecisionFlowImpl) CreateRequest(ctx context.Context, request *models.DiscountRequest) (*models.DiscountRequest, error) {
	if request == nil {
		return nil, NewBusinessError("CREATE_REQUEST_INVALID", "Discount request is required", ErrRequestRequired)
	}
	if len(request.LineItems) == 0 {
		return nil, NewBusinessError("CREATE_REQUEST_INVALID", "Discount request needs at least one line item", ErrRequestHasNoItems)
	}

	seen := make(map[uint]bool, len(request.LineItems))
	for _, item := range request.LineItems {
		if seen[item.ProductID] {
			return nil, NewBusinessErrorf("CREATE_REQUEST_INVALID", "Product %d appears more than once", models.ErrDuplicateProductLine, item.ProductID)
		}
		seen[item.ProductID] = true
	}

	customer, err := f.customerRepo.ByID(ctx, request.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CREATE_REQUEST_FAILED", "Failed to load customer", err)
	}
	if customer == nil || customer.TenantID != request.TenantID {
		return nil, NewBusinessError("CREATE_REQUEST_FAILED", "Customer not found", ErrCustomerNotFound)
	}

	salesperson, err := f.salesRepo.ByID(ctx, request.SalespersonID)
	if err != nil {
		return nil, NewBusinessError("CREATE_REQUEST_FAILED", "Failed to load salesperson", err)
	}
	if salesperson == nil || salesperson.TenantID != request.TenantID {
		return nil, NewBusinessError("CREATE_REQUEST_FAILED", "Salesperson not found", ErrSalespersonNotFound)
	}

	request.Status = models.DiscountStatusUnderAnalysis

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.requestRepo.Save(txCtx, request); err != nil {
			return err
		}
		return f.audit(txCtx, request, models.AuditActionRequestCreated, nil, fmt.Sprintf("request created by salesperson %d", request.SalespersonID), nil)
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_REQUEST_FAILED", "Failed to create discount request", err)
	}

	return request, nil
}

// EvaluateRequest runs the full pipeline over an under-analysis request and
// applies the terminal transition when the verdict allows one.
func (f *DiscountDecisionFlowImpl) EvaluateRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*EvaluationOutcome, error) {
	request, err := f.loadRequest(ctx, tenantID, requestUUID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.DiscountStatusUnderAnalysis {
		return nil, NewBusinessErrorf("EVALUATE_REQUEST_INVALID_STATUS", "Request in status %s cannot be evaluated", ErrRequestAlreadyDecided, request.Status)
	}

	input, err := f.buildEvaluationInput(ctx, request)
	if err != nil {
		return nil, err
	}

	risk, err := f.riskCalc.GetRiskAssessment(input)
	if err != nil {
		return nil, err
	}

	// Advisory signals go through the resilient gateway; they can degrade to
	// fallbacks but never fail the evaluation.
	governance, _ := f.advisorySvc.GetGovernanceSettings(ctx, tenantID)
	advisoryEnabled := governance != nil && governance.AIEnabled

	var recommendation *services.DiscountRecommendation
	var advisoryRisk *services.AdvisoryRiskScore
	var advisoryConfidence *float64
	if advisoryEnabled {
		recommendation, _ = f.advisorySvc.RecommendDiscount(ctx, &services.DiscountRecommendationRequest{
			TenantID:          tenantID,
			RequestUUID:       request.UUID,
			CustomerID:        request.CustomerID,
			RequestedDiscount: request.RequestedDiscountPercentage,
			TotalAmount:       request.TotalBaseAmount().Amount.InexactFloat64(),
			Currency:          request.Currency,
			LineItemCount:     len(request.LineItems),
		})
		advisoryRisk, _ = f.advisorySvc.CalculateRiskScore(ctx, &services.AdvisoryRiskRequest{
			TenantID:          tenantID,
			RequestUUID:       request.UUID,
			CustomerID:        request.CustomerID,
			SalespersonID:     request.SalespersonID,
			RequestedDiscount: request.RequestedDiscountPercentage,
			TotalAmount:       request.TotalBaseAmount().Amount.InexactFloat64(),
			Currency:          request.Currency,
		})
		if recommendation != nil {
			advisoryConfidence = utils.ToPtr(recommendation.Confidence)
		}
	}

	evaluation, err := f.evaluator.Evaluate(input, risk.Score, advisoryConfidence, advisoryEnabled)
	if err != nil {
		return nil, err
	}

	request.RiskScore = utils.ToPtr(risk.Score)
	if margin, ok := f.estimatedMargin(request, input.CostMap); ok {
		request.EstimatedMargin = utils.ToPtr(margin)
	}

	outcome := &EvaluationOutcome{
		Request:        request,
		Risk:           risk,
		Evaluation:     evaluation,
		Recommendation: recommendation,
		AdvisoryRisk:   advisoryRisk,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		switch {
		case evaluation.CanAutoApprove:
			if err := request.TransitionTo(models.DiscountStatusAutoApproved); err != nil {
				return err
			}
			if err := f.audit(txCtx, request, models.AuditActionAutoApproved, utils.ToPtr(risk.Score), evaluation.Reason, evaluation); err != nil {
				return err
			}

		case evaluation.GuardrailViolation:
			if err := request.TransitionTo(models.DiscountStatusRejected); err != nil {
				return err
			}
			if err := f.audit(txCtx, request, models.AuditActionAutoRejected, utils.ToPtr(risk.Score), evaluation.Reason, evaluation); err != nil {
				return err
			}

		default:
			// Stays under analysis waiting for a human decision.
			if err := f.audit(txCtx, request, models.AuditActionRoutedToHuman, utils.ToPtr(risk.Score), evaluation.Reason, evaluation); err != nil {
				return err
			}
		}

		if recommendation != nil && recommendation.Source == services.AdvisorySourceFallback {
			if err := f.audit(txCtx, request, models.AuditActionAdvisoryFallback, nil, "advisory recommendation degraded to fallback", nil); err != nil {
				return err
			}
		}

		return f.requestRepo.Update(txCtx, request)
	})
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to persist evaluation outcome", err)
	}

	outcome.FinalStatus = request.Status

	if !evaluation.CanAutoApprove && !evaluation.GuardrailViolation {
		f.notifyHumanReview(request, evaluation)
	}

	return outcome, nil
}

// ApproveRequest applies a manual approval by a reviewer.
func (f *DiscountDecisionFlowImpl) ApproveRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, comment string) error {
	return f.manualDecision(ctx, tenantID, requestUUID, approverID, comment, models.DiscountStatusApproved, models.AuditActionManuallyApproved)
}

// RejectRequest applies a manual rejection by a reviewer.
func (f *DiscountDecisionFlowImpl) RejectRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, reason string) error {
	return f.manualDecision(ctx, tenantID, requestUUID, approverID, reason, models.DiscountStatusRejected, models.AuditActionManuallyRejected)
}

// RequestAdjustment sends the request back to the salesperson for changes.
func (f *DiscountDecisionFlowImpl) RequestAdjustment(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, comment string) error {
	return f.manualDecision(ctx, tenantID, requestUUID, approverID, comment, models.DiscountStatusAdjustmentRequested, models.AuditActionAdjustmentRequested)
}

func (f *DiscountDecisionFlowImpl) manualDecision(ctx context.Context, tenantID uint, requestUUID uuid.UUID, approverID uint, comment string, target models.DiscountRequestStatus, action string) error {
	request, err := f.loadRequest(ctx, tenantID, requestUUID)
	if err != nil {
		return err
	}

	approver, err := f.loadApprover(ctx, tenantID, approverID)
	if err != nil {
		return err
	}
	if !approver.CanOverrideRejections() {
		return NewBusinessError("DECISION_NOT_PERMITTED", "Only managers and admins may decide requests", ErrOverrideNotPermitted)
	}

	if err := request.TransitionTo(target); err != nil {
		return NewBusinessErrorf("DECISION_INVALID_TRANSITION", "Request in status %s cannot move to %s", err, request.Status, target)
	}
	if comment != "" {
		request.AddComment(comment)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.requestRepo.Update(txCtx, request); err != nil {
			return err
		}
		auditRow := &models.DecisionAuditLog{
			TenantID:    request.TenantID,
			RequestUUID: request.UUID,
			Action:      action,
			RiskScore:   request.RiskScore,
			Reason:      utils.ToPtr(comment),
			ActorID:     utils.ToPtr(approver.ID),
			Success:     utils.ToPtr(true),
			CreatedAt:   utils.UTCNow(),
		}
		return f.auditRepo.Save(txCtx, auditRow)
	})
	if err != nil {
		return NewBusinessError("DECISION_FAILED", "Failed to persist decision", err)
	}
	return nil
}

// SubmitAdjustedRequest replaces the line items of an adjustment-requested
// request and moves it back under analysis.
func (f *DiscountDecisionFlowImpl) SubmitAdjustedRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID, requestedDiscount float64, items []models.DiscountLineItem) (*models.DiscountRequest, error) {
	if len(items) == 0 {
		return nil, NewBusinessError("ADJUSTMENT_INVALID", "Adjusted request needs at least one line item", ErrRequestHasNoItems)
	}

	request, err := f.loadRequest(ctx, tenantID, requestUUID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.DiscountStatusAdjustmentRequested {
		return nil, NewBusinessErrorf("ADJUSTMENT_INVALID_STATUS", "Request in status %s cannot accept adjustments", models.ErrRequestNotMutable, request.Status)
	}

	seen := make(map[uint]bool, len(items))
	for _, item := range items {
		if seen[item.ProductID] {
			return nil, NewBusinessErrorf("ADJUSTMENT_INVALID", "Product %d appears more than once", models.ErrDuplicateProductLine, item.ProductID)
		}
		seen[item.ProductID] = true
	}

	request.LineItems = items
	request.RequestedDiscountPercentage = requestedDiscount
	request.RiskScore = nil
	request.EstimatedMargin = nil
	if err := request.TransitionTo(models.DiscountStatusUnderAnalysis); err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.requestRepo.Update(txCtx, request); err != nil {
			return err
		}
		return f.audit(txCtx, request, models.AuditActionAdjustmentSubmitted, nil, fmt.Sprintf("adjusted to %.2f%% across %d items", requestedDiscount, len(items)), nil)
	})
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_FAILED", "Failed to persist adjusted request", err)
	}

	return request, nil
}

// OverrideRejection flips a rejected request to approved. Only managers and
// admins may override, and only when the rejection was not a guardrail one.
func (f *DiscountDecisionFlowImpl) OverrideRejection(ctx context.Context, tenantID uint, requestUUID uuid.UUID, managerID uint, comment string) error {
	request, err := f.loadRequest(ctx, tenantID, requestUUID)
	if err != nil {
		return err
	}
	if request.Status != models.DiscountStatusRejected {
		return NewBusinessErrorf("OVERRIDE_INVALID_STATUS", "Only rejected requests can be overridden, got %s", ErrOverrideNotPermitted, request.Status)
	}

	manager, err := f.loadApprover(ctx, tenantID, managerID)
	if err != nil {
		return err
	}
	if !manager.CanOverrideRejections() {
		return NewBusinessError("OVERRIDE_NOT_PERMITTED", "Only managers and admins may override rejections", ErrOverrideNotPermitted)
	}

	// A guardrail rejection is never overridable; check the audit trail for
	// how the rejection happened.
	rows, err := f.auditRepo.ListByRequest(ctx, request.UUID, 1, 0)
	if err != nil {
		return NewBusinessError("OVERRIDE_FAILED", "Failed to load audit trail", err)
	}
	if len(rows) > 0 && rows[0].Action == models.AuditActionAutoRejected {
		return NewBusinessError("OVERRIDE_NOT_PERMITTED", "Guardrail rejections cannot be overridden", ErrOverrideNotPermitted)
	}

	request.Status = models.DiscountStatusApproved
	request.UpdatedAt = utils.UTCNow()
	if comment != "" {
		request.AddComment(comment)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.requestRepo.Update(txCtx, request); err != nil {
			return err
		}
		auditRow := &models.DecisionAuditLog{
			TenantID:    request.TenantID,
			RequestUUID: request.UUID,
			Action:      models.AuditActionRejectionOverridden,
			RiskScore:   request.RiskScore,
			Reason:      utils.ToPtr(comment),
			ActorID:     utils.ToPtr(manager.ID),
			Success:     utils.ToPtr(true),
			CreatedAt:   utils.UTCNow(),
		}
		return f.auditRepo.Save(txCtx, auditRow)
	})
	if err != nil {
		return NewBusinessError("OVERRIDE_FAILED", "Failed to persist override", err)
	}
	return nil
}

// GetRequest returns one request with its line items.
func (f *DiscountDecisionFlowImpl) GetRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*models.DiscountRequest, error) {
	return f.loadRequest(ctx, tenantID, requestUUID)
}

// ListRequests returns the tenant's requests, newest first.
func (f *DiscountDecisionFlowImpl) ListRequests(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DiscountRequest, error) {
	requests, err := f.requestRepo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_REQUESTS_FAILED", "Failed to list discount requests", err)
	}
	return requests, nil
}

// ExplainRequest returns a human-readable explanation of the current decision.
func (f *DiscountDecisionFlowImpl) ExplainRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*services.DecisionExplanation, error) {
	request, err := f.loadRequest(ctx, tenantID, requestUUID)
	if err != nil {
		return nil, err
	}

	riskScore := 0.0
	if request.RiskScore != nil {
		riskScore = *request.RiskScore
	}

	explanation, err := f.advisorySvc.ExplainDecision(ctx, &services.DecisionExplanationRequest{
		TenantID:    tenantID,
		RequestUUID: request.UUID,
		Decision:    request.Status.String(),
		RiskScore:   riskScore,
	})
	if err != nil {
		return nil, NewBusinessError("EXPLAIN_REQUEST_FAILED", "Failed to obtain decision explanation", err)
	}
	return explanation, nil
}

func (f *DiscountDecisionFlowImpl) loadRequest(ctx context.Context, tenantID uint, requestUUID uuid.UUID) (*models.DiscountRequest, error) {
	request, err := f.requestRepo.ByUUID(ctx, requestUUID)
	if err != nil {
		return nil, NewBusinessError("REQUEST_LOOKUP_FAILED", "Failed to load discount request", err)
	}
	if request == nil || request.TenantID != tenantID {
		return nil, NewBusinessError("REQUEST_NOT_FOUND", "Discount request not found", ErrRequestNotFound)
	}
	return request, nil
}

func (f *DiscountDecisionFlowImpl) loadApprover(ctx context.Context, tenantID uint, approverID uint) (*models.Salesperson, error) {
	approver, err := f.salesRepo.ByID(ctx, approverID)
	if err != nil {
		return nil, NewBusinessError("APPROVER_LOOKUP_FAILED", "Failed to load approver", err)
	}
	if approver == nil || approver.TenantID != tenantID {
		return nil, NewBusinessError("APPROVER_NOT_FOUND", "Approver not found", ErrSalespersonNotFound)
	}
	return approver, nil
}

// buildEvaluationInput resolves every lookup the pipeline needs up front.
func (f *DiscountDecisionFlowImpl) buildEvaluationInput(ctx context.Context, request *models.DiscountRequest) (*EvaluationInput, error) {
	customer, err := f.customerRepo.ByID(ctx, request.CustomerID)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	salesperson, err := f.salesRepo.ByID(ctx, request.SalespersonID)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load salesperson", err)
	}
	if salesperson == nil {
		return nil, NewBusinessError("SALESPERSON_NOT_FOUND", "Salesperson not found", ErrSalespersonNotFound)
	}

	rules, err := f.ruleRepo.ListActiveByTenant(ctx, request.TenantID)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load business rules", err)
	}

	productIDs := make([]uint, 0, len(request.LineItems))
	for _, item := range request.LineItems {
		productIDs = append(productIDs, item.ProductID)
	}
	costMap, err := f.costRepo.CostMapForProducts(ctx, request.TenantID, productIDs)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load product costs", err)
	}

	customerHistory, err := f.customerHistory(ctx, request.TenantID, request.CustomerID)
	if err != nil {
		return nil, err
	}
	salespersonHistory, err := f.salespersonHistory(ctx, request.TenantID, request.SalespersonID)
	if err != nil {
		return nil, err
	}

	return &EvaluationInput{
		Request:            request,
		Customer:           customer,
		CustomerHistory:    customerHistory,
		Salesperson:        salesperson,
		SalespersonHistory: salespersonHistory,
		Rules:              rules,
		CostMap:            costMap,
	}, nil
}

// customerHistory aggregates the customer's past requests into the shape the
// risk calculator consumes. Payment behavior flags come from the customer
// record itself, not from requests.
func (f *DiscountDecisionFlowImpl) customerHistory(ctx context.Context, tenantID, customerID uint) (*models.CustomerHistory, error) {
	past, err := f.requestRepo.ByFilter(ctx, models.DiscountRequestFilter{
		TenantID:   utils.ToPtr(tenantID),
		CustomerID: utils.ToPtr(customerID),
	}, "created_at DESC", historyWindow, 0)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load customer history", err)
	}

	history := &models.CustomerHistory{}
	var approvedSum, approvedMax float64
	var approved, rejected int

	for _, r := range past {
		switch r.Status {
		case models.DiscountStatusApproved, models.DiscountStatusAutoApproved:
			approved++
			approvedSum += r.RequestedDiscountPercentage
			if r.RequestedDiscountPercentage > approvedMax {
				approvedMax = r.RequestedDiscountPercentage
			}
		case models.DiscountStatusRejected:
			rejected++
		}
	}

	decided := approved + rejected
	history.TotalRequests = decided
	history.ApprovedRequests = approved
	history.RejectedRequests = rejected
	if decided > 0 {
		history.RejectionRate = float64(rejected) / float64(decided)
	}
	if approved > 0 {
		history.AverageApprovedDiscount = approvedSum / float64(approved)
		history.MaxApprovedDiscount = approvedMax
	}

	customer, err := f.customerRepo.ByID(ctx, customerID)
	if err == nil && customer != nil {
		history.HasPaymentDelays = customer.HasPaymentDelays
		history.HasDefaults = customer.HasDefaults
	}

	return history, nil
}

// salespersonHistory aggregates the salesperson's past requests.
func (f *DiscountDecisionFlowImpl) salespersonHistory(ctx context.Context, tenantID, salespersonID uint) (*models.SalespersonHistory, error) {
	past, err := f.requestRepo.ByFilter(ctx, models.DiscountRequestFilter{
		TenantID:      utils.ToPtr(tenantID),
		SalespersonID: utils.ToPtr(salespersonID),
	}, "created_at DESC", historyWindow, 0)
	if err != nil {
		return nil, NewBusinessError("EVALUATE_REQUEST_FAILED", "Failed to load salesperson history", err)
	}

	history := &models.SalespersonHistory{}
	var requestedSum float64
	var approved, rejected, recentRejected, recent int

	for i, r := range past {
		requestedSum += r.RequestedDiscountPercentage
		switch r.Status {
		case models.DiscountStatusApproved, models.DiscountStatusAutoApproved:
			approved++
		case models.DiscountStatusRejected:
			rejected++
			if i < 20 {
				recentRejected++
			}
		}
		if i < 20 {
			recent++
		}
	}

	decided := approved + rejected
	history.TotalRequests = decided
	if decided > 0 {
		history.ApprovalRate = float64(approved) / float64(decided)
		// Approved discounts that closed count as wins; without order data the
		// approval rate is the best available proxy.
		history.WinRate = history.ApprovalRate
	}
	if len(past) > 0 {
		history.AverageRequestedDiscount = requestedSum / float64(len(past))
	}
	if recent > 0 {
		history.RecentRejectionTrend = float64(recentRejected) / float64(recent)
	}

	return history, nil
}

// estimatedMargin averages margin after discount across line items with known
// cost.
func (f *DiscountDecisionFlowImpl) estimatedMargin(request *models.DiscountRequest, costMap map[uint]models.Money) (float64, bool) {
	total := 0.0
	counted := 0
	for _, item := range request.LineItems {
		cost, ok := costMap[item.ProductID]
		if !ok {
			continue
		}
		margin, err := f.marginCalc.MarginPercentage(item.DiscountedAmount(request.Currency), cost.MulInt(int64(item.Quantity)))
		if err != nil {
			continue
		}
		total += margin
		counted++
	}
	if counted == 0 {
		return 0, false
	}
	return total / float64(counted), true
}

func (f *DiscountDecisionFlowImpl) audit(ctx context.Context, request *models.DiscountRequest, action string, riskScore *float64, reason string, evaluation *AutoApprovalEvaluation) error {
	row := &models.DecisionAuditLog{
		TenantID:    request.TenantID,
		RequestUUID: request.UUID,
		Action:      action,
		RiskScore:   riskScore,
		Reason:      utils.ToPtr(reason),
		Success:     utils.ToPtr(true),
		CreatedAt:   utils.UTCNow(),
	}
	if evaluation != nil {
		if raw, err := json.Marshal(evaluation); err == nil {
			row.Metadata = raw
		}
	}
	return f.auditRepo.Save(ctx, row)
}

func (f *DiscountDecisionFlowImpl) notifyHumanReview(request *models.DiscountRequest, evaluation *AutoApprovalEvaluation) {
	if f.notifier == nil {
		return
	}
	subject := fmt.Sprintf("Discount request %s needs review", request.UUID)
	body := fmt.Sprintf("Requested discount %.2f%% was routed to human review: %s", request.RequestedDiscountPercentage, evaluation.Reason)
	if err := f.notifier.NotifyReviewers(request.TenantID, subject, body); err != nil {
		log.Printf("failed to notify reviewers for request %s: %v", request.UUID, err)
	}
}
