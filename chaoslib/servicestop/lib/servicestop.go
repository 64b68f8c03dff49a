package lib

import (
	"context"
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy stops the selected service instances outright
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the service stop strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioServiceStop)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject stops each selected instance, the rollback closure restarts it
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	params := map[string]string{
		"grace_period_s": common.GetParam(experiment.Params, "grace_period_s", "0"),
	}

	population, err := strategy.backend.Targets(ctx, experiment.Target)
	if err != nil {
		log.Errorf("Unable to list the service instances, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	targets, err := common.SelectTargets(population, experiment.Target.Percentage)
	if err != nil {
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.Infof("[Chaos]: Stopping %v instances of service '%v'", len(targets), experiment.Target.Service)

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to stop instance '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("servicestop-%v-%v", target, runID),
			RunID:       runID,
			Description: "restart stopped instance " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop is a no-op, a stopped instance stays stopped until its rollback
// closure restarts it
func (strategy *Strategy) Stop(ctx context.Context) error {
	return nil
}
