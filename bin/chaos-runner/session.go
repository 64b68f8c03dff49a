package main

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/orchestrator"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/registry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/utils/stringutils"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// session is one runner invocation, engine plus the archive the runs are
// persisted into
type session struct {
	engine      *orchestrator.Engine
	settings    *environment.Settings
	experiments []types.ChaosExperiment
	archivePath string
	controlPath string
}

func newSession(definitions string) (*session, error) {
	settings := environment.GetSettings()
	experiments, err := environment.LoadExperiments(definitions)
	if err != nil {
		return nil, err
	}

	engine := orchestrator.New(settings, drillClientSets(), registry.New())
	for index := range experiments {
		if experiments[index].ID == "" {
			experiments[index].ID = string(experiments[index].Scenario) + "-" + stringutils.GetRunID()
		}
		if err := engine.RegisterExperiment(&experiments[index]); err != nil {
			return nil, err
		}
	}

	return &session{
		engine:      engine,
		settings:    settings,
		experiments: experiments,
		archivePath: environment.Getenv("RUN_ARCHIVE", "chaos-runs.yaml"),
		controlPath: environment.Getenv("SESSION_CONTROL_FILE", "chaos-session.yaml"),
	}, nil
}

// archivedRun is the on-disk form of a finalized run, just enough to rebuild
// the report later
type archivedRun struct {
	ID           string   `yaml:"id"`
	Experiment   string   `yaml:"experiment"`
	Status       string   `yaml:"status"`
	StartedAt    string   `yaml:"startedAt"`
	EndedAt      string   `yaml:"endedAt"`
	Observations int      `yaml:"observations"`
	Availability float64  `yaml:"availabilityImpact"`
	ResponseTime float64  `yaml:"responseTimeImpact"`
	ErrorRate    float64  `yaml:"errorRateIncrease"`
	Cascades     []string `yaml:"cascadeFailures,omitempty"`
	Succeeded    int      `yaml:"injectionsSucceeded"`
	Failed       int      `yaml:"injectionsFailed"`
	Recovery     string   `yaml:"recoveryLatency,omitempty"`
	Lessons      []string `yaml:"lessons,omitempty"`
}

type archiveFile struct {
	Runs []archivedRun `yaml:"runs"`
}

func (sess *session) archiveRun(run *types.ExperimentRun) error {
	archive := archiveFile{}
	if raw, err := ioutil.ReadFile(sess.archivePath); err == nil {
		if err := yaml.Unmarshal(raw, &archive); err != nil {
			return errors.Errorf("Unable to parse the run archive, err: %v", err)
		}
	}

	archive.Runs = append(archive.Runs, archivedRun{
		ID:           run.ID,
		Experiment:   run.ExperimentID,
		Status:       string(run.Status),
		StartedAt:    run.StartedAt.Format(time.RFC3339),
		EndedAt:      run.EndedAt.Format(time.RFC3339),
		Observations: len(run.Observations),
		Availability: run.Impact.AvailabilityImpact,
		ResponseTime: run.Impact.ResponseTimeImpact,
		ErrorRate:    run.Impact.ErrorRateIncrease,
		Cascades:     run.CascadeFailuresCopy(),
		Succeeded:    len(run.InjectionResults) - run.FailedInjections(),
		Failed:       run.FailedInjections(),
		Recovery:     run.RecoveryLatency.String(),
		Lessons:      run.Lessons,
	})

	raw, err := yaml.Marshal(&archive)
	if err != nil {
		return errors.Errorf("Unable to serialize the run archive, err: %v", err)
	}
	return ioutil.WriteFile(sess.archivePath, raw, 0644)
}

// loadArchivedRun rebuilds a run from the archive, observation and injection
// slices carry only their counts since that is all the reporter reads
func loadArchivedRun(path, runID string) (*types.ExperimentRun, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("Unable to read the run archive, err: %v", err)
	}
	archive := archiveFile{}
	if err := yaml.Unmarshal(raw, &archive); err != nil {
		return nil, errors.Errorf("Unable to parse the run archive, err: %v", err)
	}

	for _, archived := range archive.Runs {
		if archived.ID != runID {
			continue
		}
		run := &types.ExperimentRun{
			ID:           archived.ID,
			ExperimentID: archived.Experiment,
			Status:       types.RunStatus(archived.Status),
			Observations: make([]types.Observation, archived.Observations),
			Impact: types.ImpactMetrics{
				AvailabilityImpact: archived.Availability,
				ResponseTimeImpact: archived.ResponseTime,
				ErrorRateIncrease:  archived.ErrorRate,
				CascadeFailures:    archived.Cascades,
			},
			Lessons: archived.Lessons,
		}
		for i := 0; i < archived.Succeeded; i++ {
			run.InjectionResults = append(run.InjectionResults, types.InjectionResult{Success: true})
		}
		for i := 0; i < archived.Failed; i++ {
			run.InjectionResults = append(run.InjectionResults, types.InjectionResult{Success: false})
		}
		return run, nil
	}
	return nil, errors.Errorf("no archived run with id '%v' in %v", runID, path)
}

// controlRecord lets a second runner invocation find the process owning the
// live run, the abort command signals it
type controlRecord struct {
	PID   int    `yaml:"pid"`
	RunID string `yaml:"runId"`
}

func (sess *session) writeControl(runID string) {
	raw, err := yaml.Marshal(&controlRecord{PID: os.Getpid(), RunID: runID})
	if err != nil {
		return
	}
	_ = ioutil.WriteFile(sess.controlPath, raw, 0644)
}

func (sess *session) clearControl() {
	_ = os.Remove(sess.controlPath)
}

func readControl(path string) (*controlRecord, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("no active runner session found, err: %v", err)
	}
	record := controlRecord{}
	if err := yaml.Unmarshal(raw, &record); err != nil {
		return nil, errors.Errorf("Unable to parse the session control file, err: %v", err)
	}
	return &record, nil
}
