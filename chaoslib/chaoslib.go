// Package chaoslib resolves the injection strategy variant for a scenario
// type, the orchestrator only ever sees the Strategy capability set.
package chaoslib

import (
	"context"

	depfailureLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/depfailure/lib"
	errorrateLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/errorrate/lib"
	latencyLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/latency/lib"
	partitionLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/partition/lib"
	servicestopLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/servicestop/lib"
	stressLib "github.com/PatClay7325/manufacturing-analytics-platform-sub015/chaoslib/stress/lib"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// Strategy is the capability set every injection variant provides
type Strategy interface {
	// Inject applies the fault to the experiment's targets, it returns one
	// rollback action per successful mutation and one result per attempt
	Inject(ctx context.Context, experiment *types.ChaosExperiment, runID string) ([]types.RollbackAction, []types.InjectionResult)
	// Stop signals the end of the injection, a no-op for faults that only
	// end via rollback
	Stop(ctx context.Context) error
}

//Resolve returns the injection strategy variant for the scenario type
func Resolve(scenario types.ScenarioType, clientSets clients.ClientSets) (Strategy, error) {
	switch scenario {
	case types.ScenarioLatency:
		return latencyLib.New(clientSets)
	case types.ScenarioErrorRate:
		return errorrateLib.New(clientSets)
	case types.ScenarioResourceStress:
		return stressLib.New(clientSets)
	case types.ScenarioNetworkPartition:
		return partitionLib.New(clientSets)
	case types.ScenarioServiceStop:
		return servicestopLib.New(clientSets)
	case types.ScenarioDependencyFailure:
		return depfailureLib.New(clientSets)
	}
	return nil, cerrors.Error{
		ErrorCode: cerrors.ErrorTypeChaosInjection,
		Reason:    "no injection strategy for scenario '" + string(scenario) + "'",
	}
}
