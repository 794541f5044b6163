package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/storenstra/facebatch/pkg/models"
	"github.com/storenstra/facebatch/pkg/retry"
)

// Adapter drives one Engine call per job and converts "may fail" into
// "always yields a terminal result": every failure path comes back as a
// Failed JobResult, never as an error or panic past this boundary.
type Adapter struct {
	engine        Engine
	timeout       time.Duration
	retryTimeouts int
	backoff       retry.Config
}

// NewAdapter wraps an engine with the per-job timeout and the opt-in
// timeout-retry policy (0 retries by default).
func NewAdapter(eng Engine, timeout time.Duration, retryTimeouts int) *Adapter {
	return &Adapter{
		engine:        eng,
		timeout:       timeout,
		retryTimeouts: retryTimeouts,
		backoff: retry.Config{
			MaxRetries:     retryTimeouts,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// Run executes one job end-to-end and returns its terminal result.
//
// The per-job context deliberately derives from context.Background(), not
// from the run context: a run-level cancel stops new dispatches but never
// kills a mid-inference job, which could leave the engine in an
// unrecoverable state.
func (a *Adapter) Run(job *models.Job, ref *models.ReferenceFace) models.JobResult {
	start := time.Now()
	attempts := 0

	swapOnce := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		err := a.engine.Swap(ctx, job, ref)
		if err != nil {
			a.cleanupPartial(job.DestPath)
			return err
		}
		return a.verifyOutput(job.DestPath)
	}

	var err error
	if a.retryTimeouts > 0 {
		onlyTimeouts := func(e error) bool {
			return Classify(e) == models.FailureTimeout
		}
		err = retry.Do(context.Background(), a.backoff, onlyTimeouts, swapOnce)
	} else {
		err = swapOnce()
	}

	result := models.JobResult{
		JobID:       job.ID,
		Duration:    time.Since(start),
		Attempts:    attempts,
		CompletedAt: time.Now(),
	}

	if err != nil {
		result.State = models.JobStateFailed
		result.Failure = Classify(err)
		result.Error = err.Error()
		return result
	}

	result.State = models.JobStateSucceeded
	if fi, statErr := os.Stat(job.DestPath); statErr == nil {
		result.OutputBytes = fi.Size()
	}
	return result
}

// verifyOutput enforces the success contract: the destination exists and is
// non-empty. An engine that exits zero without producing output is still a
// failure.
func (a *Adapter) verifyOutput(destPath string) error {
	fi, err := os.Stat(destPath)
	if err != nil {
		return &ExecError{ExitCode: 0, Err: fmt.Errorf("engine reported success but output is missing: %w", err)}
	}
	if fi.Size() == 0 {
		a.cleanupPartial(destPath)
		return &ExecError{ExitCode: 0, Err: fmt.Errorf("engine reported success but output %s is empty", destPath)}
	}
	return nil
}

// cleanupPartial removes whatever partial destination a failed attempt left
// behind. Failure means no destination file, full stop.
func (a *Adapter) cleanupPartial(destPath string) {
	if _, err := os.Stat(destPath); err == nil {
		os.Remove(destPath)
	}
}
