// Package controller sequences a whole run: preflight, inventory, job
// construction, scheduling, aggregation, and finalization. It owns the run's
// lifecycle and exit status.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/storenstra/facebatch/internal/aggregate"
	"github.com/storenstra/facebatch/internal/config"
	"github.com/storenstra/facebatch/internal/inventory"
	"github.com/storenstra/facebatch/internal/jobs"
	"github.com/storenstra/facebatch/internal/metrics"
	"github.com/storenstra/facebatch/internal/preflight"
	"github.com/storenstra/facebatch/internal/scheduler"
	"github.com/storenstra/facebatch/pkg/logging"
	"github.com/storenstra/facebatch/pkg/models"
)

// Outcome is the run's final status.
type Outcome int

const (
	// OutcomeSuccess: every attempted job succeeded and statistics were written.
	OutcomeSuccess Outcome = iota
	// OutcomePartialFailure: the run completed but one or more jobs failed.
	OutcomePartialFailure
	// OutcomeFatalAbort: an inventory error or scheduler escalation ended the
	// run early. Whatever statistics and log state existed is still written.
	OutcomeFatalAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeFatalAbort:
		return "fatal_abort"
	default:
		return "unknown"
	}
}

// Result is what a finished run hands back to the CLI.
type Result struct {
	Outcome Outcome
	Stats   *models.RunStatistics
	// FatalErr is set when Outcome is OutcomeFatalAbort.
	FatalErr error
}

// Controller drives one run end to end.
type Controller struct {
	cfg    *config.Config
	log    *logging.Logger
	runner scheduler.Runner
}

// New creates a controller. runner is the inference adapter (or a test
// double).
func New(cfg *config.Config, log *logging.Logger, runner scheduler.Runner) *Controller {
	return &Controller{cfg: cfg, log: log, runner: runner}
}

// Run executes the whole batch. The context is the cooperative cancel
// signal: cancelling stops dispatch, drains in-flight jobs, and still
// finalizes artifacts.
func (c *Controller) Run(ctx context.Context) Result {
	runID := uuid.New().String()
	c.log.Info(fmt.Sprintf("Run %s starting", runID))
	c.log.Info(fmt.Sprintf("Input: %s", c.cfg.InputDir))
	c.log.Info(fmt.Sprintf("Output: %s", c.cfg.OutputDir))

	report := preflight.Detect()
	report.Log(c.log, c.cfg.Concurrency)

	inv, err := inventory.Scan(c.cfg.InputDir, inventory.Options{
		ReferenceName: c.cfg.ReferenceName,
		MinRefWidth:   config.MinReferenceWidth,
		MinRefHeight:  config.MinReferenceHeight,
	})
	if err != nil {
		c.log.Error(fmt.Sprintf("Inventory failed: %v", err))
		c.writeAbortArtifacts(runID, err)
		return Result{Outcome: OutcomeFatalAbort, FatalErr: err}
	}

	c.log.Info(fmt.Sprintf("Reference face: %s (%dx%d)",
		filepath.Base(inv.Reference.Path), inv.Reference.Width, inv.Reference.Height))
	c.log.Info(fmt.Sprintf("Found %d media files (%d ignored)", len(inv.Items), len(inv.Ignored)))

	jobList := jobs.Build(inv.Items, c.cfg.OutputDir, c.cfg.OutputSuffix)

	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		err = fmt.Errorf("cannot create output directory: %w", err)
		c.log.Error(err.Error())
		return Result{Outcome: OutcomeFatalAbort, FatalErr: err}
	}

	collector := metrics.NewCollector()
	agg, err := aggregate.New(runID, c.cfg.OutputDir, len(jobList), collector)
	if err != nil {
		c.log.Error(fmt.Sprintf("Cannot open run artifacts: %v", err))
		return Result{Outcome: OutcomeFatalAbort, FatalErr: err}
	}

	var srv *metrics.Server
	if c.cfg.MetricsListen != "" {
		srv = metrics.NewServer(c.cfg.MetricsListen, collector, agg)
		srv.Start()
		c.log.Info(fmt.Sprintf("Metrics listening on %s", c.cfg.MetricsListen))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(c.runner, c.cfg.Concurrency, c.log)
	schedErr := sched.Execute(ctx, jobList, inv.Reference, agg)

	stats, finErr := agg.Finalize()
	if finErr != nil {
		c.log.Error(fmt.Sprintf("Failed to write statistics: %v", finErr))
	} else {
		c.log.Info(fmt.Sprintf("Statistics written to %s", agg.StatisticsPath()))
	}

	if schedErr != nil {
		var fatal *scheduler.FatalError
		if errors.As(schedErr, &fatal) {
			c.log.Error(fatal.Error())
			return Result{Outcome: OutcomeFatalAbort, Stats: stats, FatalErr: fatal}
		}
		c.log.Error(fmt.Sprintf("Scheduler error: %v", schedErr))
		return Result{Outcome: OutcomeFatalAbort, Stats: stats, FatalErr: schedErr}
	}

	c.logSummary(stats)

	if stats != nil && stats.Failed > 0 {
		return Result{Outcome: OutcomePartialFailure, Stats: stats}
	}
	return Result{Outcome: OutcomeSuccess, Stats: stats}
}

// writeAbortArtifacts persists whatever state exists when the run dies
// before scheduling, so even a pre-flight abort leaves a trace on disk.
func (c *Controller) writeAbortArtifacts(runID string, cause error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
		return
	}
	agg, err := aggregate.New(runID, c.cfg.OutputDir, 0, nil)
	if err != nil {
		return
	}
	if _, err := agg.Finalize(); err != nil {
		c.log.Error(fmt.Sprintf("Failed to write abort statistics: %v", err))
	}
}

func (c *Controller) logSummary(stats *models.RunStatistics) {
	if stats == nil {
		return
	}
	c.log.Info("==============================")
	c.log.Info("PROCESSING COMPLETE")
	c.log.Info(fmt.Sprintf("Successful: %d/%d (%.1f%%)", stats.Succeeded, stats.Total, stats.SuccessRate()))
	c.log.Info(fmt.Sprintf("Failed: %d/%d", stats.Failed, stats.Total))
	c.log.Info(fmt.Sprintf("Duration: %.1f minutes", stats.ElapsedSeconds/60))
	for kind, n := range stats.FailuresByKind {
		c.log.Info(fmt.Sprintf("  %s: %d", kind, n))
	}
}
