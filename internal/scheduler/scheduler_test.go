package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storenstra/facebatch/pkg/logging"
	"github.com/storenstra/facebatch/pkg/models"
)

// stubRunner scripts one result per job id and tracks concurrency.
type stubRunner struct {
	results map[string]models.JobResult
	delay   time.Duration

	inFlight    int64
	maxInFlight int64
}

func (r *stubRunner) Run(job *models.Job, _ *models.ReferenceFace) models.JobResult {
	n := atomic.AddInt64(&r.inFlight, 1)
	for {
		max := atomic.LoadInt64(&r.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt64(&r.maxInFlight, max, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	atomic.AddInt64(&r.inFlight, -1)

	if res, ok := r.results[job.ID]; ok {
		res.JobID = job.ID
		res.CompletedAt = time.Now()
		return res
	}
	return models.JobResult{
		JobID:       job.ID,
		State:       models.JobStateSucceeded,
		Duration:    r.delay,
		Attempts:    1,
		CompletedAt: time.Now(),
	}
}

// recordingSink collects lifecycle calls.
type recordingSink struct {
	mu       sync.Mutex
	started  []string
	recorded []models.JobResult
}

func (s *recordingSink) JobStarted(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, job.ID)
}

func (s *recordingSink) Record(job *models.Job, result models.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, result)
}

func makeJobs(n int) []*models.Job {
	jobs := make([]*models.Job, n)
	for i := range jobs {
		jobs[i] = &models.Job{
			ID:         string(rune('a' + i)),
			SourcePath: "/in/" + string(rune('a'+i)) + ".mp4",
			DestPath:   "/out/" + string(rune('a'+i)) + "_swapped.mp4",
			State:      models.JobStatePending,
		}
	}
	return jobs
}

func newTestScheduler(runner Runner, concurrency int) *Scheduler {
	s := New(runner, concurrency, logging.NewLogger(logging.ERROR, false))
	s.checkReference = func(*models.ReferenceFace) error { return nil }
	return s
}

func TestExecute_AllJobsReachTerminalState(t *testing.T) {
	jobs := makeJobs(5)
	sink := &recordingSink{}
	s := newTestScheduler(&stubRunner{}, 2)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err)

	assert.Len(t, sink.recorded, 5)
	assert.Len(t, sink.started, 5)
	for _, job := range jobs {
		assert.True(t, job.State.Terminal(), "job %s not terminal: %s", job.ID, job.State)
	}
}

func TestExecute_SingleFailureDoesNotHaltBatch(t *testing.T) {
	jobs := makeJobs(6)
	runner := &stubRunner{results: map[string]models.JobResult{
		"c": {State: models.JobStateFailed, Failure: models.FailureCorruptInput, Error: "bad moov atom"},
	}}
	sink := &recordingSink{}
	s := newTestScheduler(runner, 1)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err)

	require.Len(t, sink.recorded, 6, "failure on one item must not stop the rest")

	var failed, succeeded int
	for _, res := range sink.recorded {
		if res.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 1, failed)
}

func TestExecute_StateMachineNeverSkipsRunning(t *testing.T) {
	jobs := makeJobs(3)
	sink := &recordingSink{}
	s := newTestScheduler(&stubRunner{}, 2)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err)

	for _, job := range jobs {
		require.GreaterOrEqual(t, len(job.StateTransitions), 2, "job %s", job.ID)
		assert.Equal(t, models.JobStateRunning, job.StateTransitions[0].To)
		assert.True(t, job.StateTransitions[len(job.StateTransitions)-1].To.Terminal())
	}
}

func TestExecute_RespectsConcurrencyCeiling(t *testing.T) {
	jobs := makeJobs(8)
	runner := &stubRunner{delay: 20 * time.Millisecond}
	sink := &recordingSink{}
	s := newTestScheduler(runner, 2)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err)

	assert.LessOrEqual(t, runner.maxInFlight, int64(2), "worker pool exceeded its ceiling")
	assert.Len(t, sink.recorded, 8)
}

func TestExecute_FirstJobEngineCrashEscalates(t *testing.T) {
	jobs := makeJobs(10)
	runner := &stubRunner{
		delay: 5 * time.Millisecond,
		results: map[string]models.JobResult{
			"a": {State: models.JobStateFailed, Failure: models.FailureEngineCrash, Error: "engine failed to start"},
		},
	}
	sink := &recordingSink{}
	s := newTestScheduler(runner, 1)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Less(t, len(sink.recorded), 10, "remaining jobs should not all burn after a first-job crash")
}

func TestExecute_LaterEngineCrashStaysLocal(t *testing.T) {
	jobs := makeJobs(5)
	runner := &stubRunner{results: map[string]models.JobResult{
		"d": {State: models.JobStateFailed, Failure: models.FailureEngineCrash, Error: "cuda oom"},
	}}
	sink := &recordingSink{}
	s := newTestScheduler(runner, 1)

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err, "a crash after the first job is a per-job failure")
	assert.Len(t, sink.recorded, 5)
}

func TestExecute_ReferenceUnreadableAborts(t *testing.T) {
	jobs := makeJobs(10)
	sink := &recordingSink{}
	s := newTestScheduler(&stubRunner{delay: 5 * time.Millisecond}, 1)

	var checks int64
	s.checkReference = func(*models.ReferenceFace) error {
		if atomic.AddInt64(&checks, 1) > 3 {
			return context.DeadlineExceeded // any error works here
		}
		return nil
	}

	err := s.Execute(context.Background(), jobs, &models.ReferenceFace{}, sink)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, fatal.Reason, "reference")
	assert.Less(t, len(sink.recorded), 10)
}

func TestExecute_CancelStopsDispatchButDrainsInFlight(t *testing.T) {
	jobs := makeJobs(10)
	runner := &stubRunner{delay: 30 * time.Millisecond}
	sink := &recordingSink{}
	s := newTestScheduler(runner, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(45 * time.Millisecond)
		cancel()
	}()

	err := s.Execute(ctx, jobs, &models.ReferenceFace{}, sink)
	require.NoError(t, err, "cancellation is cooperative, not fatal")

	assert.Greater(t, len(sink.recorded), 0, "in-flight jobs must finish")
	assert.Less(t, len(sink.recorded), 10, "no new dispatches after cancel")
	// Every started job got a terminal result: nothing was force-killed.
	assert.Equal(t, len(sink.started), len(sink.recorded))
}

func TestExecute_EmptyJobList(t *testing.T) {
	sink := &recordingSink{}
	s := newTestScheduler(&stubRunner{}, 2)

	err := s.Execute(context.Background(), nil, &models.ReferenceFace{}, sink)
	require.NoError(t, err)
	assert.Empty(t, sink.recorded)
}
