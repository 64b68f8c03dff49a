package registry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	validator "github.com/go-playground/validator/v10"
)

// TriggerFunc starts a run for the experiment id, the scheduler calls it
// with manual=false so scheduled runs get no safeguard waivers
type TriggerFunc func(id string) error

// Registry stores the experiment definitions and arms one scheduler loop
// per scheduled, enabled experiment
type Registry struct {
	mu          sync.Mutex
	experiments map[string]*types.ChaosExperiment
	stoppers    map[string]chan struct{}
	trigger     TriggerFunc
	validate    *validator.Validate
	rand        *rand.Rand
}

//New creates the experiment registry
func New() *Registry {
	return &Registry{
		experiments: map[string]*types.ChaosExperiment{},
		stoppers:    map[string]chan struct{}{},
		validate:    validator.New(),
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

//SetTrigger wires the run entrypoint the scheduler invokes, it must be set
// before any scheduled experiment is registered
func (registry *Registry) SetTrigger(trigger TriggerFunc) {
	registry.mu.Lock()
	registry.trigger = trigger
	registry.mu.Unlock()
}

//Register validates and stores a definition by id, overwriting any previous
// one, and arms the schedule when present and enabled
func (registry *Registry) Register(experiment *types.ChaosExperiment) error {
	if err := registry.validate.Struct(experiment); err != nil {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeGeneric,
			Reason:    "invalid experiment definition: " + err.Error(),
		}
	}
	if experiment.Schedule != nil {
		if err := registry.validate.Struct(experiment.Schedule); err != nil {
			return cerrors.Error{
				ErrorCode: cerrors.ErrorTypeGeneric,
				Reason:    "invalid experiment schedule: " + err.Error(),
			}
		}
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	// re-registration disarms the previous schedule first
	registry.disarmLocked(experiment.ID)
	registry.experiments[experiment.ID] = experiment

	if experiment.Schedule != nil && experiment.Enabled {
		stop := make(chan struct{})
		registry.stoppers[experiment.ID] = stop
		go registry.scheduleLoop(experiment.ID, *experiment.Schedule, stop)
		log.Infof("[PreReq]: Armed schedule for experiment '%v' (interval: %v, probability: %v)",
			experiment.ID, experiment.Schedule.Interval, experiment.Schedule.Probability)
	}
	return nil
}

//Unregister disarms the schedule and forgets the definition, in-flight runs
// are unaffected
func (registry *Registry) Unregister(id string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.disarmLocked(id)
	delete(registry.experiments, id)
}

//Get returns the definition with the given id
func (registry *Registry) Get(id string) (*types.ChaosExperiment, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	experiment, ok := registry.experiments[id]
	if !ok {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeExperimentGet,
			Reason:    "no experiment registered with id '" + id + "'",
		}
	}
	return experiment, nil
}

//List returns every registered definition
func (registry *Registry) List() []*types.ChaosExperiment {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	experiments := make([]*types.ChaosExperiment, 0, len(registry.experiments))
	for _, experiment := range registry.experiments {
		experiments = append(experiments, experiment)
	}
	return experiments
}

// scheduleLoop fires the trigger probabilistically on every tick, a blocked
// or failed trigger is logged and never disarms the schedule
func (registry *Registry) scheduleLoop(id string, schedule types.Schedule, stop chan struct{}) {
	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			registry.mu.Lock()
			trigger := registry.trigger
			selected := registry.rand.Float64() < schedule.Probability
			registry.mu.Unlock()

			if !selected {
				continue
			}
			if trigger == nil {
				log.Warnf("[Schedule]: No trigger wired, skipping scheduled run of '%v'", id)
				continue
			}
			if err := trigger(id); err != nil {
				log.Errorf("Unable to trigger the scheduled run of '%v', err: %v", id, err)
			}
		}
	}
}

func (registry *Registry) disarmLocked(id string) {
	if stop, ok := registry.stoppers[id]; ok {
		close(stop)
		delete(registry.stoppers, id)
	}
}
