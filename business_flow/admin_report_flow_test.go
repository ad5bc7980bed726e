package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeAuditRepo serves canned audit rows to the report flow.
type fakeAuditRepo struct {
	rows []*models.DecisionAuditLog
	err  error
}

func (r *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.DecisionAuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(ctx context.Context, filter models.DecisionAuditLogFilter, orderBy string, limit, offset int) ([]*models.DecisionAuditLog, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.rows, nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, entity *models.DecisionAuditLog) error {
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, entities []*models.DecisionAuditLog) error {
	return nil
}

func (r *fakeAuditRepo) Update(ctx context.Context, entity *models.DecisionAuditLog) error {
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.DecisionAuditLogFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeAuditRepo) Exists(ctx context.Context, filter models.DecisionAuditLogFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeAuditRepo) ListByRequest(ctx context.Context, requestUUID uuid.UUID, limit, offset int) ([]*models.DecisionAuditLog, error) {
	return r.rows, nil
}

func (r *fakeAuditRepo) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.DecisionAuditLog, error) {
	return r.rows, nil
}

func auditRow(action string, riskScore *float64) *models.DecisionAuditLog {
	return &models.DecisionAuditLog{
		TenantID:    1,
		RequestUUID: uuid.New(),
		Action:      action,
		RiskScore:   riskScore,
		Success:     utils.ToPtr(true),
		CreatedAt:   time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
}

func reportWindow() (time.Time, time.Time) {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
}

func TestDecisionSummaryAggregatesRows(t *testing.T) {
	repo := &fakeAuditRepo{rows: []*models.DecisionAuditLog{
		auditRow(models.AuditActionAutoApproved, utils.ToPtr(20.0)),
		auditRow(models.AuditActionAutoApproved, utils.ToPtr(40.0)),
		auditRow(models.AuditActionRoutedToHuman, utils.ToPtr(75.0)),
		auditRow(models.AuditActionAdvisoryFallback, nil),
		auditRow(models.AuditActionManuallyRejected, nil),
	}}
	flow := NewAdminReportFlow(repo)

	since, until := reportWindow()
	report, err := flow.DecisionSummary(context.Background(), 1, since, until)
	require.NoError(t, err)

	assert.Equal(t, uint(1), report.TenantID)
	assert.Equal(t, 5, report.TotalDecisions)
	assert.Equal(t, 2, report.CountsByAction[models.AuditActionAutoApproved])
	assert.Equal(t, 1, report.CountsByAction[models.AuditActionRoutedToHuman])
	assert.Equal(t, 1, report.FallbackCount)
	// Only scored rows contribute to the average: (20+40+75)/3.
	assert.InDelta(t, 45, report.AverageRiskScore, 0.001)
}

func TestDecisionSummaryEmptyWindow(t *testing.T) {
	flow := NewAdminReportFlow(&fakeAuditRepo{})

	since, until := reportWindow()
	_, err := flow.DecisionSummary(context.Background(), 1, since, until)
	require.Error(t, err)
	assert.True(t, IsNoAuditRows(err))
}

func TestDownloadDecisionAuditExcel(t *testing.T) {
	repo := &fakeAuditRepo{rows: []*models.DecisionAuditLog{
		auditRow(models.AuditActionAutoApproved, utils.ToPtr(20.0)),
		auditRow(models.AuditActionRoutedToHuman, utils.ToPtr(75.0)),
		auditRow(models.AuditActionAutoApproved, utils.ToPtr(30.0)),
	}}
	flow := NewAdminReportFlow(repo)

	since, until := reportWindow()
	filename, data, err := flow.DownloadDecisionAuditExcel(context.Background(), 1, since, until)
	require.NoError(t, err)
	assert.Equal(t, "decision_audit_1_2026-02-01.xlsx", filename)
	require.NotEmpty(t, data)

	// The workbook must carry one sheet per action with a header row.
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	sheets := xl.GetSheetList()
	assert.ElementsMatch(t, []string{models.AuditActionAutoApproved, models.AuditActionRoutedToHuman}, sheets)

	header, err := xl.GetCellValue(models.AuditActionAutoApproved, "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", header)

	rows, err := xl.GetRows(models.AuditActionAutoApproved)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header plus two auto-approved rows")
}

func TestDownloadDecisionAuditExcelEmptyWindow(t *testing.T) {
	flow := NewAdminReportFlow(&fakeAuditRepo{})

	since, until := reportWindow()
	_, _, err := flow.DownloadDecisionAuditExcel(context.Background(), 1, since, until)
	require.Error(t, err)
	assert.True(t, IsNoAuditRows(err))
}

func TestSanitizeSheetName(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: "auto_approved", expected: "auto_approved"},
		{in: "a/b:c*d", expected: "a_b_c_d"},
		{in: "", expected: "sheet"},
		{in: "this-action-name-is-way-too-long-for-excel", expected: "this-action-name-is-way-too-lon"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, sanitizeSheetName(tc.in))
	}
}
