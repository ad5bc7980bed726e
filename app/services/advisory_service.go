// Package services provides external service integrations and technical concerns like advisory scoring and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
)

// AdvisoryService is the external scoring and recommendation dependency. It
// may be slow or unavailable; callers are expected to go through the
// resilient gateway rather than use an implementation directly.
type AdvisoryService interface {
	RecommendDiscount(ctx context.Context, req *DiscountRecommendationRequest) (*DiscountRecommendation, error)
	CalculateRiskScore(ctx context.Context, req *AdvisoryRiskRequest) (*AdvisoryRiskScore, error)
	ExplainDecision(ctx context.Context, req *DecisionExplanationRequest) (*DecisionExplanation, error)
	TrainModel(ctx context.Context, req *ModelTrainingRequest) (*ModelTrainingJob, error)
	CheckAvailability(ctx context.Context) error
	GetGovernanceSettings(ctx context.Context, tenantID uint) (*GovernanceSettings, error)
	UpdateGovernanceSettings(ctx context.Context, settings *GovernanceSettings) error
}

// Response source markers
const (
	AdvisorySourceModel    = "model"
	AdvisorySourceFallback = "fallback"
	AdvisorySourceDefault  = "default"
)

// DiscountRecommendationRequest asks the advisory model for a discount suggestion
type DiscountRecommendationRequest struct {
	TenantID          uint      `json:"tenantId"`
	RequestUUID       uuid.UUID `json:"requestUuid"`
	CustomerID        uint      `json:"customerId"`
	RequestedDiscount float64   `json:"requestedDiscount"`
	TotalAmount       float64   `json:"totalAmount"`
	Currency          string    `json:"currency"`
	LineItemCount     int       `json:"lineItemCount"`
}

// DiscountRecommendation is the advisory model's discount suggestion
type DiscountRecommendation struct {
	RecommendedDiscount float64 `json:"recommendedDiscount"`
	ExpectedMargin      float64 `json:"expectedMargin"`
	Confidence          float64 `json:"confidence"`
	Rationale           string  `json:"rationale"`
	Source              string  `json:"source"`
}

// AdvisoryRiskRequest asks the advisory model for an independent risk score
type AdvisoryRiskRequest struct {
	TenantID          uint      `json:"tenantId"`
	RequestUUID       uuid.UUID `json:"requestUuid"`
	CustomerID        uint      `json:"customerId"`
	SalespersonID     uint      `json:"salespersonId"`
	RequestedDiscount float64   `json:"requestedDiscount"`
	TotalAmount       float64   `json:"totalAmount"`
	Currency          string    `json:"currency"`
}

// AdvisoryRiskScore is the advisory model's risk verdict
type AdvisoryRiskScore struct {
	Score      float64 `json:"score"`
	Level      string  `json:"level"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// DecisionExplanationRequest asks for a human-readable decision explanation
type DecisionExplanationRequest struct {
	TenantID    uint      `json:"tenantId"`
	RequestUUID uuid.UUID `json:"requestUuid"`
	Decision    string    `json:"decision"`
	RiskScore   float64   `json:"riskScore"`
}

// DecisionExplanation is the human-readable explanation of a decision
type DecisionExplanation struct {
	Summary string   `json:"summary"`
	Factors []string `json:"factors"`
	Source  string   `json:"source"`
}

// ModelTrainingRequest triggers a tenant-scoped model retraining run
type ModelTrainingRequest struct {
	TenantID   uint `json:"tenantId"`
	WindowDays int  `json:"windowDays"`
}

// ModelTrainingJob describes a submitted training run
type ModelTrainingJob struct {
	JobID       string    `json:"jobId"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// GovernanceSettings controls whether and how advisory output may influence
// decisions for one tenant
type GovernanceSettings struct {
	TenantID      uint      `json:"tenantId"`
	AIEnabled     bool      `json:"aiEnabled"`
	MinConfidence float64   `json:"minConfidence"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HTTPAdvisoryService talks to the advisory scoring API over HTTP
type HTTPAdvisoryService struct {
	config *config.AdvisoryConfig
	client *http.Client
}

// NewHTTPAdvisoryService creates an advisory client from configuration.
func NewHTTPAdvisoryService(cfg *config.AdvisoryConfig) AdvisoryService {
	return &HTTPAdvisoryService{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (s *HTTPAdvisoryService) postJSON(ctx context.Context, path string, in, out any) error {
	requestBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal advisory request: %w", err)
	}

	url := fmt.Sprintf("%s%s", s.config.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("advisory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("advisory API returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode advisory response: %w", err)
	}
	return nil
}

// RecommendDiscount asks the model for a discount suggestion
func (s *HTTPAdvisoryService) RecommendDiscount(ctx context.Context, req *DiscountRecommendationRequest) (*DiscountRecommendation, error) {
	var out DiscountRecommendation
	if err := s.postJSON(ctx, "/v1/recommendations", req, &out); err != nil {
		return nil, err
	}
	out.Source = AdvisorySourceModel
	return &out, nil
}

// CalculateRiskScore asks the model for an independent risk score
func (s *HTTPAdvisoryService) CalculateRiskScore(ctx context.Context, req *AdvisoryRiskRequest) (*AdvisoryRiskScore, error) {
	var out AdvisoryRiskScore
	if err := s.postJSON(ctx, "/v1/risk-scores", req, &out); err != nil {
		return nil, err
	}
	out.Source = AdvisorySourceModel
	return &out, nil
}

// ExplainDecision asks the model to explain a decision
func (s *HTTPAdvisoryService) ExplainDecision(ctx context.Context, req *DecisionExplanationRequest) (*DecisionExplanation, error) {
	var out DecisionExplanation
	if err := s.postJSON(ctx, "/v1/explanations", req, &out); err != nil {
		return nil, err
	}
	out.Source = AdvisorySourceModel
	return &out, nil
}

// TrainModel submits a retraining run for one tenant
func (s *HTTPAdvisoryService) TrainModel(ctx context.Context, req *ModelTrainingRequest) (*ModelTrainingJob, error) {
	var out ModelTrainingJob
	if err := s.postJSON(ctx, "/v1/training-jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckAvailability probes the advisory health endpoint
func (s *HTTPAdvisoryService) CheckAvailability(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", s.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("advisory health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("advisory API is unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// GetGovernanceSettings reads the tenant's advisory governance settings
func (s *HTTPAdvisoryService) GetGovernanceSettings(ctx context.Context, tenantID uint) (*GovernanceSettings, error) {
	url := fmt.Sprintf("%s/v1/governance/%d", s.config.BaseURL, tenantID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("governance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory API returned status %d", resp.StatusCode)
	}

	var out GovernanceSettings
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode governance response: %w", err)
	}
	return &out, nil
}

// UpdateGovernanceSettings writes the tenant's advisory governance settings
func (s *HTTPAdvisoryService) UpdateGovernanceSettings(ctx context.Context, settings *GovernanceSettings) error {
	path := fmt.Sprintf("/v1/governance/%d", settings.TenantID)
	return s.postJSON(ctx, path, settings, nil)
}

// MockAdvisoryService implements AdvisoryService for testing. Every method
// counts its calls and honors the configured delay and failure.
type MockAdvisoryService struct {
	RecommendCalls    int
	RiskScoreCalls    int
	ExplainCalls      int
	TrainCalls        int
	AvailabilityCalls int
	GovernanceCalls   int

	// FailWith makes every call return this error after the delay.
	FailWith error
	// Delay simulates a slow upstream; calls respect context cancellation.
	Delay time.Duration

	Recommendation *DiscountRecommendation
	RiskScore      *AdvisoryRiskScore
	Explanation    *DecisionExplanation
	Governance     *GovernanceSettings
}

// NewMockAdvisoryService creates a mock with sensible canned responses.
func NewMockAdvisoryService() *MockAdvisoryService {
	return &MockAdvisoryService{
		Recommendation: &DiscountRecommendation{
			RecommendedDiscount: 8,
			ExpectedMargin:      22,
			Confidence:          0.9,
			Rationale:           "mock recommendation",
			Source:              AdvisorySourceModel,
		},
		RiskScore: &AdvisoryRiskScore{
			Score:      25,
			Level:      "low",
			Confidence: 0.9,
			Source:     AdvisorySourceModel,
		},
		Explanation: &DecisionExplanation{
			Summary: "mock explanation",
			Factors: []string{"mock factor"},
			Source:  AdvisorySourceModel,
		},
		Governance: &GovernanceSettings{
			AIEnabled:     true,
			MinConfidence: 0.75,
		},
	}
}

func (m *MockAdvisoryService) wait(ctx context.Context) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.FailWith != nil {
		return m.FailWith
	}
	return nil
}

func (m *MockAdvisoryService) RecommendDiscount(ctx context.Context, req *DiscountRecommendationRequest) (*DiscountRecommendation, error) {
	m.RecommendCalls++
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := *m.Recommendation
	return &out, nil
}

func (m *MockAdvisoryService) CalculateRiskScore(ctx context.Context, req *AdvisoryRiskRequest) (*AdvisoryRiskScore, error) {
	m.RiskScoreCalls++
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := *m.RiskScore
	return &out, nil
}

func (m *MockAdvisoryService) ExplainDecision(ctx context.Context, req *DecisionExplanationRequest) (*DecisionExplanation, error) {
	m.ExplainCalls++
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := *m.Explanation
	return &out, nil
}

func (m *MockAdvisoryService) TrainModel(ctx context.Context, req *ModelTrainingRequest) (*ModelTrainingJob, error) {
	m.TrainCalls++
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return &ModelTrainingJob{
		JobID:       uuid.New().String(),
		Status:      "submitted",
		SubmittedAt: utils.UTCNow(),
	}, nil
}

func (m *MockAdvisoryService) CheckAvailability(ctx context.Context) error {
	m.AvailabilityCalls++
	return m.wait(ctx)
}

func (m *MockAdvisoryService) GetGovernanceSettings(ctx context.Context, tenantID uint) (*GovernanceSettings, error) {
	m.GovernanceCalls++
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := *m.Governance
	out.TenantID = tenantID
	return &out, nil
}

func (m *MockAdvisoryService) UpdateGovernanceSettings(ctx context.Context, settings *GovernanceSettings) error {
	m.GovernanceCalls++
	if err := m.wait(ctx); err != nil {
		return err
	}
	out := *settings
	m.Governance = &out
	return nil
}
