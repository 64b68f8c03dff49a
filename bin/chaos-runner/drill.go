package main

import (
	"context"
	"math/rand"
	"strings"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/clients"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
)

// drillBackend rehearses injections without mutating anything, every apply
// is logged and the undo closure logs the matching restore
type drillBackend struct {
	pool []string
}

func newDrillBackend() *drillBackend {
	pool := strings.Split(environment.Getenv("DRILL_TARGET_POOL", "checkout-0,checkout-1,checkout-2"), ",")
	for index := range pool {
		pool[index] = strings.TrimSpace(pool[index])
	}
	return &drillBackend{pool: pool}
}

func (backend *drillBackend) Targets(ctx context.Context, selector types.TargetSelector) ([]string, error) {
	if selector.Service == "" {
		return backend.pool, nil
	}
	targets := []string{}
	for _, target := range backend.pool {
		if strings.HasPrefix(target, selector.Service) {
			targets = append(targets, target)
		}
	}
	return targets, nil
}

func (backend *drillBackend) Apply(ctx context.Context, target, runID string, params map[string]string) (func(context.Context) error, error) {
	log.InfoWithValues("[Drill]: Would inject chaos into target", map[string]interface{}{
		"Target": target,
		"Run ID": runID,
		"Params": params,
	})
	return func(ctx context.Context) error {
		log.Infof("[Drill]: Would restore target %v of run %v", target, runID)
		return nil
	}, nil
}

func (backend *drillBackend) Stop(ctx context.Context) error {
	log.Info("[Drill]: Would stop the active injections")
	return nil
}

func (backend *drillBackend) Sweep(ctx context.Context, runID string) error {
	log.Infof("[Drill]: Would sweep leftovers tagged with run %v", runID)
	return nil
}

// drillMetrics serves a steady snapshot with a little jitter so hypothesis
// and impact math have something realistic to chew on
type drillMetrics struct{}

func (drillMetrics) CurrentMetrics(ctx context.Context) (types.MetricsSnapshot, error) {
	jitter := func(base, spread float64) float64 {
		return base + (rand.Float64()-0.5)*spread
	}
	return types.MetricsSnapshot{
		ErrorRate:    jitter(0.5, 0.2),
		ResponseTime: jitter(120, 10),
		Throughput:   jitter(2400, 60),
		CPU:          jitter(35, 4),
		Memory:       jitter(55, 4),
	}, nil
}

type drillHealth struct {
	pool []string
}

func (health drillHealth) Checks(ctx context.Context) (map[string]bool, error) {
	checks := map[string]bool{}
	for _, target := range health.pool {
		checks[target] = true
	}
	return checks, nil
}

type drillAlerts struct{}

func (drillAlerts) Raise(severity, title, description string, tags map[string]string) {
	log.WarnWithValues("[Alert]: "+title, map[string]interface{}{
		"Severity":    severity,
		"Description": description,
		"Tags":        tags,
	})
}

func drillClientSets() clients.ClientSets {
	backend := newDrillBackend()
	backends := map[types.ScenarioType]clients.InjectionBackend{}
	for _, scenario := range []types.ScenarioType{
		types.ScenarioLatency,
		types.ScenarioErrorRate,
		types.ScenarioResourceStress,
		types.ScenarioNetworkPartition,
		types.ScenarioServiceStop,
		types.ScenarioDependencyFailure,
	} {
		backends[scenario] = backend
	}
	return clients.ClientSets{
		Metrics:  drillMetrics{},
		Health:   drillHealth{pool: backend.pool},
		Backends: backends,
		Alerts:   drillAlerts{},
	}
}
