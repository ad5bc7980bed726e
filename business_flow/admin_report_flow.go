// Package businessflow contains the core decision pipeline for discount requests
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/xuri/excelize/v2"
)

// DecisionSummaryReport aggregates decision outcomes for one tenant and window
type DecisionSummaryReport struct {
	TenantID         uint           `json:"tenant_id"`
	WindowStart      time.Time      `json:"window_start"`
	WindowEnd        time.Time      `json:"window_end"`
	TotalDecisions   int            `json:"total_decisions"`
	CountsByAction   map[string]int `json:"counts_by_action"`
	AverageRiskScore float64        `json:"average_risk_score"`
	FallbackCount    int            `json:"fallback_count"`
}

// AdminReportFlow produces decision reports for tenant administrators
type AdminReportFlow interface {
	DecisionSummary(ctx context.Context, tenantID uint, since, until time.Time) (*DecisionSummaryReport, error)
	DownloadDecisionAuditExcel(ctx context.Context, tenantID uint, since, until time.Time) (string, []byte, error)
}

// AdminReportFlowImpl implements AdminReportFlow
type AdminReportFlowImpl struct {
	auditRepo repository.DecisionAuditLogRepository
}

// NewAdminReportFlow creates a new admin report flow instance
func NewAdminReportFlow(auditRepo repository.DecisionAuditLogRepository) AdminReportFlow {
	return &AdminReportFlowImpl{auditRepo: auditRepo}
}

func (f *AdminReportFlowImpl) loadWindow(ctx context.Context, tenantID uint, since, until time.Time) ([]*models.DecisionAuditLog, error) {
	rows, err := f.auditRepo.ByFilter(ctx, models.DecisionAuditLogFilter{
		TenantID:      &tenantID,
		CreatedAfter:  &since,
		CreatedBefore: &until,
	}, "created_at ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("FETCH_AUDIT_FAILED", "Failed to fetch decision audit rows", err)
	}
	if len(rows) == 0 {
		return nil, NewBusinessError("NO_AUDIT_ROWS", "No decisions recorded in the requested window", ErrNoAuditRows)
	}
	return rows, nil
}

// DecisionSummary aggregates the audit trail into per-action counts and an
// average risk score.
func (f *AdminReportFlowImpl) DecisionSummary(ctx context.Context, tenantID uint, since, until time.Time) (*DecisionSummaryReport, error) {
	rows, err := f.loadWindow(ctx, tenantID, since, until)
	if err != nil {
		return nil, err
	}

	report := &DecisionSummaryReport{
		TenantID:       tenantID,
		WindowStart:    since,
		WindowEnd:      until,
		CountsByAction: make(map[string]int),
	}

	var riskSum float64
	var scored int
	for _, row := range rows {
		report.CountsByAction[row.Action]++
		if row.Action == models.AuditActionAdvisoryFallback {
			report.FallbackCount++
		}
		if row.RiskScore != nil {
			riskSum += *row.RiskScore
			scored++
		}
	}

	report.TotalDecisions = len(rows)
	if scored > 0 {
		report.AverageRiskScore = riskSum / float64(scored)
	}
	return report, nil
}

// DownloadDecisionAuditExcel builds a workbook with one sheet per audit
// action over the requested window.
func (f *AdminReportFlowImpl) DownloadDecisionAuditExcel(ctx context.Context, tenantID uint, since, until time.Time) (string, []byte, error) {
	rows, err := f.loadWindow(ctx, tenantID, since, until)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	// Group rows by action, keeping first-seen order for sheet layout.
	byAction := make(map[string][]*models.DecisionAuditLog)
	order := make([]string, 0)
	for _, row := range rows {
		if _, ok := byAction[row.Action]; !ok {
			order = append(order, row.Action)
		}
		byAction[row.Action] = append(byAction[row.Action], row)
	}

	for i, action := range order {
		name := sanitizeSheetName(action)
		if i == 0 {
			xl.SetSheetName(xl.GetSheetName(0), name)
		} else {
			_, _ = xl.NewSheet(name)
		}

		header := []string{"id", "request_uuid", "risk_score", "reason", "actor_id", "success", "created_at"}
		_ = xl.SetSheetRow(name, "A1", &header)

		for ri, row := range byAction[action] {
			riskScore := ""
			if row.RiskScore != nil {
				riskScore = strconv.FormatFloat(*row.RiskScore, 'f', 1, 64)
			}
			reason := ""
			if row.Reason != nil {
				reason = *row.Reason
			}
			actorID := ""
			if row.ActorID != nil {
				actorID = strconv.FormatUint(uint64(*row.ActorID), 10)
			}
			record := []string{
				strconv.FormatUint(uint64(row.ID), 10),
				row.RequestUUID.String(),
				riskScore,
				reason,
				actorID,
				strconv.FormatBool(!row.IsFailed()),
				row.CreatedAt.UTC().Format(time.RFC3339),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(name, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("decision_audit_%d_%s.xlsx", tenantID, since.UTC().Format("2006-01-02"))
	return filename, buf.Bytes(), nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	cleaned := replacer.Replace(name)
	if len(cleaned) > 31 {
		cleaned = cleaned[:31]
	}
	if cleaned == "" {
		cleaned = "sheet"
	}
	return cleaned
}
