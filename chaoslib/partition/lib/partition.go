package lib

import (
	"context"
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy cuts the network between the selected targets and their peers
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the network partition strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioNetworkPartition)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject isolates each selected target from the peers named in the
// destination parameter, an empty destination means a full partition
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	params := map[string]string{
		"destination": common.GetParam(experiment.Params, "destination", ""),
		"direction":   common.GetParam(experiment.Params, "direction", "both"),
	}

	population, err := strategy.backend.Targets(ctx, experiment.Target)
	if err != nil {
		log.Errorf("Unable to list the partition population, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	targets, err := common.SelectTargets(population, experiment.Target.Percentage)
	if err != nil {
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.Infof("[Chaos]: Partitioning %v targets (direction: %v)", len(targets), params["direction"])

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to partition target '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("partition-%v-%v", target, runID),
			RunID:       runID,
			Description: "heal network partition around " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop ends the partition
func (strategy *Strategy) Stop(ctx context.Context) error {
	return strategy.backend.Stop(ctx)
}
