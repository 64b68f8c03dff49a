package lib

import (
	"context"
	"fmt"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/common"
)

// Strategy injects artificial response latency into the selected targets
type Strategy struct {
	backend clients.InjectionBackend
}

//New creates the latency injection strategy
func New(clientSets clients.ClientSets) (*Strategy, error) {
	backend, err := clientSets.BackendFor(types.ScenarioLatency)
	if err != nil {
		return nil, err
	}
	return &Strategy{backend: backend}, nil
}

//Inject applies the latency fault to a random subset of the target
// population, every target attempt is recorded independently and a rollback
// closure is registered for each successful mutation before returning
func (strategy *Strategy) Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult) {
	params := map[string]string{
		"latency_ms": common.GetParam(experiment.Params, "latency_ms", "2000"),
		"jitter_ms":  common.GetParam(experiment.Params, "jitter_ms", "0"),
	}

	targets, err := selectTargets(ctx, strategy.backend, experiment.Target)
	if err != nil {
		log.Errorf("Unable to select the latency targets, err: %v", err)
		return nil, []types.InjectionResult{{Target: experiment.Target.Service, Success: false, Reason: err.Error()}}
	}

	log.Infof("[Chaos]: Injecting %vms latency into %v targets", params["latency_ms"], len(targets))

	actions := []types.RollbackAction{}
	results := []types.InjectionResult{}
	for _, target := range targets {
		undo, err := strategy.backend.Apply(ctx, target, runID, params)
		if err != nil {
			log.Errorf("Unable to inject latency into target '%v', err: %v", target, err)
			results = append(results, types.InjectionResult{Target: target, Success: false, Reason: err.Error()})
			continue
		}
		actions = append(actions, types.RollbackAction{
			ID:          fmt.Sprintf("latency-%v-%v", target, runID),
			RunID:       runID,
			Description: "remove injected latency from " + target,
			Undo:        undo,
		})
		results = append(results, types.InjectionResult{Target: target, Success: true})
	}
	return actions, results
}

//Stop ends the latency injection, latency faults are not self-expiring so
// the backend is told explicitly
func (strategy *Strategy) Stop(ctx context.Context) error {
	return strategy.backend.Stop(ctx)
}

func selectTargets(ctx context.Context, backend clients.InjectionBackend, selector types.TargetSelector) ([]string, error) {
	population, err := backend.Targets(ctx, selector)
	if err != nil {
		return nil, err
	}
	return common.SelectTargets(population, selector.Percentage)
}
