package lib

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy exhausts cpu or memory on the selected targets
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the resource stress strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioResourceStress)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject starts the stressors on a random subset of the population, the
// cpu_cores and memory_mb parameters are validated up front so a bad
// definition fails every target the same way
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	params := map[string]string{
		"cpu_cores": common.GetParam(experiment.Params, "cpu_cores", "1"),
		"memory_mb": common.GetParam(experiment.Params, "memory_mb", "256"),
	}
	if err := validateStressors(params); err != nil {
		log.Errorf("Invalid stress parameters, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	population, err := strategy.backend.Targets(ctx, experiment.Target)
	if err != nil {
		log.Errorf("Unable to list the stress population, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}
	targets, err := common.SelectTargets(population, experiment.Target.Percentage)
	if err != nil {
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.InfoWithValues("[Chaos]: Starting resource stressors", map[string]interface{}{
		"CPU Cores": params["cpu_cores"],
		"Memory MB": params["memory_mb"],
		"Targets":   len(targets),
	})

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to start stressors on target '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("stress-%v-%v", target, runID),
			RunID:       runID,
			Description: "kill stressors on " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop kills the stressors, stress faults never expire on their own
func (strategy *Strategy) Stop(ctx context.Context) error {
	return strategy.backend.Stop(ctx)
}

func validateStressors(params map[string]string) error {
	for _, key := range []string{"cpu_cores", "memory_mb"} {
		value, err := strconv.Atoi(params[key])
		if err != nil || value < 0 {
			return cerrors.Error{
				ErrorCode: cerrors.ErrorTypeChaosInjection,
				Reason:    fmt.Sprintf("stressor parameter '%v' must be a non-negative integer, got '%v'", key, params[key]),
			}
		}
	}
	return nil
}
