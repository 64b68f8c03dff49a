package rollback

import (
	"context"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/retry"
	"golang.org/x/sync/errgroup"
)

// Coordinator undoes every injected mutation of a run, best effort and
// always to completion: one failing action never blocks or skips another
type Coordinator struct {
	settings *environment.Settings
	clients  clients.ClientSets
}

//NewCoordinator creates the rollback coordinator
func NewCoordinator(settings *environment.Settings, clients clients.ClientSets) *Coordinator {
	return &Coordinator{settings: settings, clients: clients}
}

//Rollback executes every action concurrently with retry and backoff, it
// returns the number of actions attempted and never an error: rollback
// failures are logged and counted, not propagated
func (coordinator *Coordinator) Rollback(ctx context.Context, actions []types.RollbackAction) int {
	if len(actions) == 0 {
		return 0
	}

	// rollback must be attempted even when the run's context is already
	// cancelled, only the hard timeout bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), coordinator.settings.RollbackTimeout)
	defer cancel()

	log.Infof("[Cleanup]: Rolling back %v injected mutations", len(actions))

	group := new(errgroup.Group)
	for _, action := range actions {
		action := action
		group.Go(func() error {
			err := retry.
				Times(coordinator.settings.RollbackRetries).
				Wait(coordinator.settings.RollbackDelay).
				Backoff(2).
				Try(func(attempt uint) error {
					if attempt > 0 {
						metrics.RollbackRetries.Inc()
						log.Warnf("[Cleanup]: Retrying rollback action '%v' (attempt %v)", action.Description, attempt+1)
					}
					return action.Undo(ctx)
				})
			if err != nil {
				metrics.RollbackFailures.Inc()
				log.Errorf("Unable to rollback action '%v' of run %v, err: %v", action.Description, action.RunID, err)
			}
			return nil
		})
	}
	// the group never carries errors, the wait is only the joint barrier
	_ = group.Wait()

	return len(actions)
}

//EmergencyRollback undoes the tracked actions and additionally asks every
// backend to sweep resources tagged with the run id, covering mutations a
// crash may have left outside the action list
func (coordinator *Coordinator) EmergencyRollback(ctx context.Context, run *types.ExperimentRun, actions []types.RollbackAction) int {
	attempted := coordinator.Rollback(ctx, actions)

	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), coordinator.settings.RollbackTimeout)
	defer cancel()

	for scenario, backend := range coordinator.clients.Backends {
		if err := backend.Sweep(sweepCtx, run.ID); err != nil {
			log.Errorf("Unable to sweep leftover '%v' resources of run %v, err: %v", scenario, run.ID, err)
		}
	}
	return attempted
}
