// Package aggregate accumulates per-job outcomes into run statistics and the
// chronological event log, and writes both artifacts out at finalize.
package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/storenstra/facebatch/internal/metrics"
	"github.com/storenstra/facebatch/pkg/models"
)

const (
	// StatisticsFileName is the statistics artifact written into the output
	// directory at finalize.
	StatisticsFileName = "statistics.json"

	// EventLogFileName is the chronological event artifact.
	EventLogFileName = "events.log"
)

// Aggregator is the single writer for RunStatistics and the RunLog. Workers
// never touch it directly; the scheduler reports each terminal job exactly
// once and the mutex serializes those updates.
type Aggregator struct {
	mu sync.Mutex

	stats        models.RunStatistics
	runLog       *RunLog
	collector    *metrics.Collector
	statsPath    string
	lastTerminal time.Time

	finalized bool
	artifact  []byte
}

// New opens the run log and seeds statistics for a run of total jobs.
// collector may be nil when metrics are disabled.
func New(runID, outputDir string, total int, collector *metrics.Collector) (*Aggregator, error) {
	runLog, err := OpenRunLog(outputDir, EventLogFileName)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		stats: models.RunStatistics{
			RunID:          runID,
			StartTime:      time.Now(),
			Total:          total,
			FailuresByKind: make(map[models.FailureKind]int),
			Errors:         []models.FailedItem{},
		},
		runLog:    runLog,
		collector: collector,
		statsPath: filepath.Join(outputDir, StatisticsFileName),
	}

	if collector != nil {
		collector.RecordDiscovered(total)
	}
	a.runLog.Append("run_started", "run_id=%s total=%d", runID, total)
	return a, nil
}

// JobStarted logs the dispatch of one job.
func (a *Aggregator) JobStarted(job *models.Job) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.collector != nil {
		a.collector.RecordStart()
	}
	a.runLog.Append("job_started", "job=%s source=%s size=%d",
		job.ID, filepath.Base(job.SourcePath), job.SourceBytes)
}

// Record folds one terminal job into the running counters and appends the
// corresponding event. Called exactly once per job, in completion order.
func (a *Aggregator) Record(job *models.Job, result models.JobResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastTerminal = result.CompletedAt
	if a.collector != nil {
		a.collector.RecordResult(result)
	}

	if result.Succeeded() {
		a.stats.Succeeded++
		a.runLog.Append("job_succeeded", "job=%s dest=%s duration=%s",
			job.ID, filepath.Base(job.DestPath), result.Duration.Round(time.Millisecond))
		return
	}

	a.stats.Failed++
	a.stats.FailuresByKind[result.Failure]++
	a.stats.Errors = append(a.stats.Errors, models.FailedItem{
		JobID:  job.ID,
		File:   job.SourcePath,
		Reason: result.Failure,
		Error:  result.Error,
	})
	a.runLog.Append("job_failed", "job=%s source=%s reason=%s duration=%s",
		job.ID, filepath.Base(job.SourcePath), result.Failure, result.Duration.Round(time.Millisecond))
}

// Progress implements metrics.ProgressSource.
func (a *Aggregator) Progress() metrics.Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	done := a.stats.Succeeded + a.stats.Failed
	p := metrics.Progress{
		RunID:     a.stats.RunID,
		Total:     a.stats.Total,
		Succeeded: a.stats.Succeeded,
		Failed:    a.stats.Failed,
		Remaining: a.stats.Total - done,
	}
	if a.stats.Total > 0 {
		p.Percent = float64(done) / float64(a.stats.Total) * 100
	}
	return p
}

// Finalize freezes the statistics, writes the artifact, and closes out the
// run log. Idempotent: a second call rewrites byte-identical output and
// appends nothing new. Must only be called once the scheduler reports all
// jobs terminal (or the run aborted).
func (a *Aggregator) Finalize() (*models.RunStatistics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.finalized {
		end := a.lastTerminal
		if end.IsZero() {
			end = time.Now()
		}
		a.stats.EndTime = end
		a.stats.ElapsedSeconds = end.Sub(a.stats.StartTime).Seconds()

		data, err := json.MarshalIndent(&a.stats, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal statistics: %w", err)
		}
		a.artifact = data
		a.finalized = true

		a.runLog.Append("run_finished", "successful=%d failed=%d elapsed=%.1fs",
			a.stats.Succeeded, a.stats.Failed, a.stats.ElapsedSeconds)
		if err := a.runLog.Close(); err != nil {
			return nil, fmt.Errorf("failed to close run log: %w", err)
		}
	}

	if err := os.WriteFile(a.statsPath, a.artifact, 0644); err != nil {
		return nil, fmt.Errorf("failed to write statistics to %s: %w", a.statsPath, err)
	}

	statsCopy := a.stats
	return &statsCopy, nil
}

// StatisticsPath returns where the statistics artifact is written.
func (a *Aggregator) StatisticsPath() string {
	return a.statsPath
}
