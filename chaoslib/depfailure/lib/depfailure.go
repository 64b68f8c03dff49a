package lib

import (
	"context"
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy makes a named dependency fail for the selected targets, the
// targets themselves stay untouched
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the dependency failure strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioDependencyFailure)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject breaks the calls from each selected target to the dependency named
// in the experiment parameters, the dependency parameter is mandatory
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	dependency := common.GetParam(experiment.Params, "dependency", "")
	if dependency == "" {
		err := cerrors.Error{
			ErrorCode: cerrors.ErrorTypeChaosInjection,
			Reason:    "the dependency-failure scenario requires the 'dependency' parameter",
		}
		log.Errorf("Invalid dependency failure parameters, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	params := map[string]string{
		"dependency":   dependency,
		"failure_mode": common.GetParam(experiment.Params, "failure_mode", "reject"),
	}

	population, err := strategy.backend.Targets(ctx, experiment.Target)
	if err != nil {
		log.Errorf("Unable to list the dependency failure population, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	targets, err := common.SelectTargets(population, experiment.Target.Percentage)
	if err != nil {
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.Infof("[Chaos]: Failing dependency '%v' for %v targets (mode: %v)", dependency, len(targets), params["failure_mode"])

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to fail dependency for target '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("depfailure-%v-%v", target, runID),
			RunID:       runID,
			Description: "restore dependency '" + dependency + "' for " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop ends the dependency failure
func (strategy *Strategy) Stop(ctx context.Context) error {
	return strategy.backend.Stop(ctx)
}
