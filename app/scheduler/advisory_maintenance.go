// Package scheduler contains background loops that keep the decision engine healthy
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/services"
)

// cachePruner removes expired response cache entries. The Redis-backed cache
// expires entries natively and does not need pruning.
type cachePruner interface {
	Prune(ctx context.Context) int
}

// AdvisoryMaintenance periodically prunes the in-memory response cache and
// probes the advisory service so operators see availability flapping in logs
// and metrics, not only when a salesperson hits a degraded evaluation.
type AdvisoryMaintenance struct {
	advisorySvc services.AdvisoryService
	pruner      cachePruner
	interval    time.Duration
}

// NewAdvisoryMaintenance creates the maintenance loop. A nil pruner skips
// cache pruning.
func NewAdvisoryMaintenance(advisorySvc services.AdvisoryService, pruner cachePruner, interval time.Duration) *AdvisoryMaintenance {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AdvisoryMaintenance{
		advisorySvc: advisorySvc,
		pruner:      pruner,
		interval:    interval,
	}
}

// Start launches the maintenance loop in a background goroutine and returns a
// stop function.
func (m *AdvisoryMaintenance) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (m *AdvisoryMaintenance) runOnce(ctx context.Context) {
	if m.pruner != nil {
		if removed := m.pruner.Prune(ctx); removed > 0 {
			log.Printf("advisory maintenance: pruned %d expired cache entries", removed)
		}
	}

	if err := m.advisorySvc.CheckAvailability(ctx); err != nil {
		log.Printf("advisory maintenance: availability probe failed: %v", err)
	}
}
