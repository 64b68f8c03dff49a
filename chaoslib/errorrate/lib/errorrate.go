package lib

import (
	"context"
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy forces a share of requests on the selected targets to fail
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the error injection strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioErrorRate)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject makes the configured percentage of requests fail with the given
// status code on each selected target
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	params := map[string]string{
		"error_percentage": common.GetParam(experiment.Params, "error_percentage", "25"),
		"status_code":      common.GetParam(experiment.Params, "status_code", "503"),
	}

	population, err := strategy.backend.Targets(ctx, experiment.Target)
	if err != nil {
		log.Errorf("Unable to list the error injection population, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	targets, err := common.SelectTargets(population, experiment.Target.Percentage)
	if err != nil {
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.Infof("[Chaos]: Forcing %v%% of requests to fail with status %v on %v targets",
		params["error_percentage"], params["status_code"], len(targets))

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to inject errors into target '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("errorrate-%v-%v", target, runID),
			RunID:       runID,
			Description: "remove forced errors from " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop ends the error injection
func (strategy *Strategy) Stop(ctx context.Context) error {
	return strategy.backend.Stop(ctx)
}
