package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/environment"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/history"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/log"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/telemetry"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	// Log as JSON instead of the default ASCII formatter.
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	var definitions string

	rootCmd := &cobra.Command{
		Use:           "chaos-runner",
		Short:         "Run chaos experiments against a target environment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&definitions, "definitions", "f", "chaos-experiments.yaml", "path to the experiment definitions file")
	rootCmd.AddCommand(runCommand(&definitions), listCommand(&definitions), abortCommand(), reportCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func runCommand(definitions *string) *cobra.Command {
	var scheduled bool

	cmd := &cobra.Command{
		Use:   "run [experiment-id...]",
		Short: "Run experiments by id, or every enabled experiment when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(*definitions)
			if err != nil {
				return err
			}
			if endpoint := environment.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
				shutdown, err := telemetry.InitOTelSDK(cmd.Context(), endpoint)
				if err != nil {
					return err
				}
				defer func() {
					_ = shutdown(context.Background())
				}()
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

			if scheduled {
				return runScheduled(sess, signals)
			}

			ids := args
			if len(ids) == 0 {
				for _, experiment := range sess.experiments {
					if experiment.Enabled {
						ids = append(ids, experiment.ID)
					}
				}
			}
			if len(ids) == 0 {
				return errors.Errorf("no enabled experiments in %v", *definitions)
			}

			failed := 0
			for _, id := range ids {
				runID, err := sess.engine.RunExperiment(id, true)
				if err != nil {
					log.Errorf("Unable to start experiment %v, err: %v", id, err)
					failed++
					continue
				}
				sess.writeControl(runID)
				run := awaitRun(sess, runID, signals)
				sess.clearControl()
				finishRun(sess, run)
				if run.Status != types.RunStatusCompleted {
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%v of %v experiments did not complete", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "stay resident and serve the experiments' schedules")
	return cmd
}

// awaitRun blocks until the run finalizes, an interrupt aborts the run and
// the wait continues until rollback and finalization are through
func awaitRun(sess *session, runID string, signals <-chan os.Signal) *types.ExperimentRun {
	for {
		select {
		case run := <-sess.engine.Completions():
			if run.ID == runID {
				return run
			}
		case sig := <-signals:
			log.Warnf("[Abort]: Received %v, aborting run %v", sig, runID)
			if err := sess.engine.AbortExperiment(runID, "operator interrupt"); err != nil {
				log.Errorf("Unable to abort run %v, err: %v", runID, err)
			}
		}
	}
}

// runScheduled blocks forever serving the armed schedules, interrupts abort
// the in-flight runs and drain before returning
func runScheduled(sess *session, signals <-chan os.Signal) error {
	addr := environment.Getenv("METRICS_LISTEN_ADDR", ":8080")
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Errorf("Unable to serve metrics on %v, err: %v", addr, err)
		}
	}()

	log.Infof("[Schedule]: Resident mode, %v experiments registered, metrics on %v", len(sess.experiments), addr)
	for {
		select {
		case run := <-sess.engine.Completions():
			finishRun(sess, run)
		case sig := <-signals:
			log.Warnf("[Abort]: Received %v, shutting down", sig)
			running := sess.engine.ListRunning()
			for _, run := range running {
				if err := sess.engine.AbortExperiment(run.ID, "runner shutting down"); err != nil {
					log.Errorf("Unable to abort run %v, err: %v", run.ID, err)
				}
			}
			deadline := time.After(30 * time.Second)
			for range running {
				select {
				case run := <-sess.engine.Completions():
					finishRun(sess, run)
				case <-deadline:
					return errors.Errorf("timed out waiting for the in-flight runs to finalize")
				}
			}
			return nil
		}
	}
}

func finishRun(sess *session, run *types.ExperimentRun) {
	printReport(history.BuildReport(run, sess.settings.ImpactReportThreshold), run.Lessons)
	if err := sess.archiveRun(run); err != nil {
		log.Errorf("Unable to archive run %v, err: %v", run.ID, err)
	}
}

func printReport(report history.Report, lessons []string) {
	fmt.Println(report.Summary)
	for _, cascade := range report.CascadeFailures {
		fmt.Printf("  cascade: %v\n", cascade)
	}
	for _, recommendation := range report.Recommendations {
		fmt.Printf("  recommendation: %v\n", recommendation)
	}
	for _, lesson := range lessons {
		fmt.Printf("  lesson: %v\n", lesson)
	}
}

func listCommand(definitions *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered experiment definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(*definitions)
			if err != nil {
				return err
			}
			experiments := sess.experiments
			sort.Slice(experiments, func(i, j int) bool {
				return experiments[i].ID < experiments[j].ID
			})

			fmt.Printf("%-32s %-20s %-10s %-8s %s\n", "ID", "SCENARIO", "DURATION", "ENABLED", "NAME")
			for _, experiment := range experiments {
				schedule := ""
				if experiment.Schedule != nil {
					schedule = fmt.Sprintf(" (every %v, p=%.2f)", experiment.Schedule.Interval, experiment.Schedule.Probability)
				}
				fmt.Printf("%-32s %-20s %-10s %-8v %s%s\n",
					experiment.ID, experiment.Scenario, experiment.Duration, experiment.Enabled, experiment.Name, schedule)
			}
			return nil
		},
	}
}

func abortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <run-id>",
		Short: "Abort the run owned by the resident runner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readControl(environment.Getenv("SESSION_CONTROL_FILE", "chaos-session.yaml"))
			if err != nil {
				return err
			}
			if record.RunID != args[0] {
				return errors.Errorf("the active session owns run %v, not %v", record.RunID, args[0])
			}
			process, err := os.FindProcess(record.PID)
			if err != nil {
				return errors.Errorf("Unable to find the runner process %v, err: %v", record.PID, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return errors.Errorf("Unable to signal the runner process %v, err: %v", record.PID, err)
			}
			log.Infof("[Abort]: Requested abort of run %v from process %v", args[0], record.PID)
			return nil
		},
	}
}

func reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <run-id>",
		Short: "Print the report of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := loadArchivedRun(environment.Getenv("RUN_ARCHIVE", "chaos-runs.yaml"), args[0])
			if err != nil {
				return err
			}
			settings := environment.GetSettings()
			printReport(history.BuildReport(run, settings.ImpactReportThreshold), run.Lessons)
			return nil
		},
	}
}
