// Package scheduler contains background loops that keep the decision engine healthy
package scheduler

import (
	"context"
	"log"
	"time"

	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/repository"
)

// sweepBatchSize bounds how many pending requests one sweep picks up per tenant
const sweepBatchSize = 50

// EvaluationSweeper runs the evaluation pipeline over requests that were
// created or resubmitted but never evaluated, so a request cannot sit
// unscored forever when the client drops before calling evaluate.
type EvaluationSweeper struct {
	decisionFlow businessflow.DiscountDecisionFlow
	requestRepo  repository.DiscountRequestRepository
	tenantIDs    func(ctx context.Context) ([]uint, error)
	interval     time.Duration
}

// NewEvaluationSweeper creates the sweeper. tenantIDs supplies the tenants to
// sweep on each tick.
func NewEvaluationSweeper(
	decisionFlow businessflow.DiscountDecisionFlow,
	requestRepo repository.DiscountRequestRepository,
	tenantIDs func(ctx context.Context) ([]uint, error),
	interval time.Duration,
) *EvaluationSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &EvaluationSweeper{
		decisionFlow: decisionFlow,
		requestRepo:  requestRepo,
		tenantIDs:    tenantIDs,
		interval:     interval,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop
// function.
func (s *EvaluationSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *EvaluationSweeper) runOnce(ctx context.Context) {
	tenants, err := s.tenantIDs(ctx)
	if err != nil {
		log.Printf("evaluation sweeper: failed to list tenants: %v", err)
		return
	}

	for _, tenantID := range tenants {
		pending, err := s.requestRepo.ListPendingAnalysis(ctx, tenantID, sweepBatchSize, 0)
		if err != nil {
			log.Printf("evaluation sweeper: tenant %d: failed to list pending requests: %v", tenantID, err)
			continue
		}

		for _, request := range pending {
			// A non-nil risk score means the request was already evaluated and
			// is waiting for a human; skip it.
			if request.RiskScore != nil {
				continue
			}

			if _, err := s.decisionFlow.EvaluateRequest(ctx, tenantID, request.UUID); err != nil {
				log.Printf("evaluation sweeper: tenant %d: failed to evaluate request %s: %v", tenantID, request.UUID, err)
			}
		}
	}
}
