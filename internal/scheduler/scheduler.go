// Package scheduler drives the ordered, concurrent execution of all jobs
// against the inference adapter under a fixed concurrency ceiling.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/storenstra/facebatch/internal/inventory"
	"github.com/storenstra/facebatch/pkg/logging"
	"github.com/storenstra/facebatch/pkg/models"
)

// Runner executes one job end-to-end and always yields a terminal result.
// The engine adapter implements it; tests substitute stubs.
type Runner interface {
	Run(job *models.Job, ref *models.ReferenceFace) models.JobResult
}

// Sink receives job lifecycle events. Calls are made from the scheduler's
// collector goroutine (Record) and from workers (JobStarted); the aggregator
// serializes internally.
type Sink interface {
	JobStarted(job *models.Job)
	Record(job *models.Job, result models.JobResult)
}

// FatalError is the one way a local failure becomes global: systemic
// conditions abort the rest of the batch instead of failing every remaining
// job one at a time.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal run abort: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal run abort: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Scheduler owns job state while jobs run. Jobs are pulled from a shared
// queue in inventory order; each worker processes one job end-to-end before
// pulling the next.
type Scheduler struct {
	runner      Runner
	concurrency int
	log         *logging.Logger

	// checkReference is swappable for tests; defaults to an os.Open probe.
	checkReference func(*models.ReferenceFace) error

	mu       sync.Mutex
	fatal    *FatalError
	abortCh  chan struct{}
	abortOne sync.Once
}

// New creates a scheduler with the given worker count.
func New(runner Runner, concurrency int, log *logging.Logger) *Scheduler {
	return &Scheduler{
		runner:         runner,
		concurrency:    concurrency,
		log:            log,
		checkReference: inventory.CheckReferenceReadable,
		abortCh:        make(chan struct{}),
	}
}

type completion struct {
	job    *models.Job
	result models.JobResult
}

// Execute runs every job through the worker pool and reports each terminal
// (job, result) pair to the sink in completion order. A single job's failure
// never halts the batch. Cancelling ctx stops dispatching new jobs but lets
// in-flight jobs finish.
//
// Returns a *FatalError when a systemic condition aborted the run: the
// reference face became unreadable mid-run, or the engine failed to start on
// the very first job.
func (s *Scheduler) Execute(ctx context.Context, jobs []*models.Job, ref *models.ReferenceFace, sink Sink) error {
	if len(jobs) == 0 {
		return nil
	}

	jobCh := make(chan *models.Job)
	resCh := make(chan completion)

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				job.Transition(models.JobStateRunning, "dispatched")
				sink.JobStarted(job)
				resCh <- completion{job: job, result: s.runner.Run(job, ref)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	go s.dispatch(ctx, jobs, ref, jobCh)

	firstJob := jobs[0]
	for c := range resCh {
		s.applyTerminal(c.job, c.result)
		sink.Record(c.job, c.result)

		// A crash on the very first dispatched job suggests the engine cannot
		// start at all; later crashes stay per-job.
		if c.job == firstJob && c.result.Failure == models.FailureEngineCrash {
			s.setFatal(&FatalError{Reason: "engine failed to start on first job"})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal != nil {
		return s.fatal
	}
	return nil
}

// dispatch feeds jobs in inventory order until done, cancelled, or aborted.
// The reference is probed before every dispatch so a storage failure under
// the reference aborts instead of failing every remaining job one by one.
func (s *Scheduler) dispatch(ctx context.Context, jobs []*models.Job, ref *models.ReferenceFace, jobCh chan<- *models.Job) {
	defer close(jobCh)

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			s.log.Warn("Run cancelled, no further jobs will be dispatched")
			return
		case <-s.abortCh:
			return
		default:
		}

		if err := s.checkReference(ref); err != nil {
			s.setFatal(&FatalError{Reason: "reference face unreadable mid-run", Err: err})
			return
		}

		select {
		case jobCh <- job:
		case <-ctx.Done():
			s.log.Warn("Run cancelled, no further jobs will be dispatched")
			return
		case <-s.abortCh:
			return
		}
	}
}

// applyTerminal moves a job into its terminal state exactly once.
func (s *Scheduler) applyTerminal(job *models.Job, result models.JobResult) {
	if result.Succeeded() {
		job.Transition(models.JobStateSucceeded, "")
		return
	}
	job.Failure = result.Failure
	job.Error = result.Error
	job.Transition(models.JobStateFailed, string(result.Failure))
}

func (s *Scheduler) setFatal(fatal *FatalError) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = fatal
	}
	s.mu.Unlock()
	s.abortOne.Do(func() { close(s.abortCh) })
}
