package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/stretchr/testify/assert"
)

type fakePruner struct {
	calls   int
	removed int
}

func (p *fakePruner) Prune(ctx context.Context) int {
	p.calls++
	return p.removed
}

func TestAdvisoryMaintenanceRunOncePrunesAndProbes(t *testing.T) {
	mock := services.NewMockAdvisoryService()
	pruner := &fakePruner{removed: 3}
	maintenance := NewAdvisoryMaintenance(mock, pruner, 0)

	maintenance.runOnce(context.Background())

	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 1, mock.AvailabilityCalls)
}

func TestAdvisoryMaintenanceNilPrunerSkipsPruning(t *testing.T) {
	mock := services.NewMockAdvisoryService()
	maintenance := NewAdvisoryMaintenance(mock, nil, 0)

	// Must not panic without a pruner; the probe still runs.
	maintenance.runOnce(context.Background())
	assert.Equal(t, 1, mock.AvailabilityCalls)
}

func TestAdvisoryMaintenanceSurvivesProbeFailure(t *testing.T) {
	mock := services.NewMockAdvisoryService()
	mock.FailWith = errors.New("advisory down")
	maintenance := NewAdvisoryMaintenance(mock, &fakePruner{}, 0)

	maintenance.runOnce(context.Background())
	assert.Equal(t, 1, mock.AvailabilityCalls)
}
