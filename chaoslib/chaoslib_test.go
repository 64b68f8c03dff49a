package chaoslib

import (
	"context"
	"testing"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBackend struct{}

func (nopBackend) Targets(ctx context.Context, selector types.TargetSelector) ([]string, error) {
	return nil, nil
}

func (nopBackend) Apply(ctx context.Context, target, runID string, params map[string]string) (func(context.Context) error, error) {
	return func(ctx context.Context) error { return nil }, nil
}

func (nopBackend) Stop(ctx context.Context) error { return nil }

func (nopBackend) Sweep(ctx context.Context, runID string) error { return nil }

func TestResolveEveryScenario(t *testing.T) {
	scenarios := []types.ScenarioType{
		types.ScenarioLatency,
		types.ScenarioErrorRate,
		types.ScenarioResourceStress,
		types.ScenarioNetworkPartition,
		types.ScenarioServiceStop,
		types.ScenarioDependencyFailure,
	}
	backends := map[types.ScenarioType]clients.InjectionBackend{}
	for _, scenario := range scenarios {
		backends[scenario] = nopBackend{}
	}
	clientSets := clients.ClientSets{Backends: backends}

	for _, scenario := range scenarios {
		strategy, err := Resolve(scenario, clientSets)
		require.NoError(t, err, "scenario %v", scenario)
		assert.NotNil(t, strategy)
	}
}

func TestResolveUnknownScenario(t *testing.T) {
	_, err := Resolve(types.ScenarioType("moon-eclipse"), clients.ClientSets{})
	assert.Equal(t, cerrors.ErrorTypeChaosInjection, cerrors.GetErrorType(err))
}

func TestResolveMissingBackend(t *testing.T) {
	_, err := Resolve(types.ScenarioLatency, clients.ClientSets{})
	assert.Equal(t, cerrors.ErrorTypeChaosInjection, cerrors.GetErrorType(err))
}
