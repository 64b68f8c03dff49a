package rollback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func testCoordinator(backends map[types.ScenarioType]clients.InjectionBackend) *Coordinator {
	settings := &environment.Settings{
		RollbackRetries: 3,
		RollbackDelay:   time.Millisecond,
		RollbackTimeout: time.Second,
	}
	return NewCoordinator(settings, clients.ClientSets{Backends: backends})
}

func action(runID string, undo func(context.Context) error) types.RollbackAction {
	return types.RollbackAction{ID: "a", RunID: runID, Description: "test action", Undo: undo}
}

func TestRollbackAttemptsEveryAction(t *testing.T) {
	var undone int64
	actions := []types.RollbackAction{
		action("run-1", func(ctx context.Context) error { atomic.AddInt64(&undone, 1); return nil }),
		action("run-1", func(ctx context.Context) error { return errors.Errorf("resource is gone") }),
		action("run-1", func(ctx context.Context) error { atomic.AddInt64(&undone, 1); return nil }),
	}

	attempted := testCoordinator(nil).Rollback(context.Background(), actions)
	// the failing action never blocks or skips the others
	assert.Equal(t, 3, attempted)
	assert.Equal(t, int64(2), atomic.LoadInt64(&undone))
}

func TestRollbackRetriesWithBackoff(t *testing.T) {
	var calls int64
	actions := []types.RollbackAction{
		action("run-1", func(ctx context.Context) error {
			if atomic.AddInt64(&calls, 1) < 3 {
				return errors.Errorf("still busy")
			}
			return nil
		}),
	}

	testCoordinator(nil).Rollback(context.Background(), actions)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestRollbackRunsWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var undone int64
	actions := []types.RollbackAction{
		action("run-1", func(ctx context.Context) error { atomic.AddInt64(&undone, 1); return nil }),
	}

	attempted := testCoordinator(nil).Rollback(ctx, actions)
	assert.Equal(t, 1, attempted)
	assert.Equal(t, int64(1), atomic.LoadInt64(&undone))
}

type sweepBackend struct {
	mu    sync.Mutex
	swept []string
}

func (b *sweepBackend) Targets(ctx context.Context, selector types.TargetSelector) ([]string, error) {
	return nil, nil
}

func (b *sweepBackend) Apply(ctx context.Context, target, runID string, params map[string]string) (func(context.Context) error, error) {
	return nil, nil
}

func (b *sweepBackend) Stop(ctx context.Context) error { return nil }

func (b *sweepBackend) Sweep(ctx context.Context, runID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.swept = append(b.swept, runID)
	return nil
}

func TestEmergencyRollbackSweepsEveryBackend(t *testing.T) {
	latency := &sweepBackend{}
	stress := &sweepBackend{}
	coordinator := testCoordinator(map[types.ScenarioType]clients.InjectionBackend{
		types.ScenarioLatency:        latency,
		types.ScenarioResourceStress: stress,
	})

	run := &types.ExperimentRun{ID: "run-9"}
	coordinator.EmergencyRollback(context.Background(), run, nil)

	assert.Equal(t, []string{"run-9"}, latency.swept)
	assert.Equal(t, []string{"run-9"}, stress.swept)
}
