package models

import (
	"time"
)

// JobState represents the lifecycle state of a job
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the state is final (no further transitions).
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// FailureKind classifies why a job failed. The set is closed: the scheduler
// and aggregator only ever see these values, never engine-specific detail.
type FailureKind string

const (
	FailureCorruptInput           FailureKind = "corrupt_input"
	FailureUnsupportedFormat      FailureKind = "unsupported_format"
	FailureTimeout                FailureKind = "timeout"
	FailureEngineCrash            FailureKind = "engine_crash"
	FailureInsufficientResolution FailureKind = "insufficient_resolution"
	FailureUnknown                FailureKind = "unknown"
)

// FailureKinds lists every failure classification in a stable order, used
// for statistics output and metric label initialization.
func FailureKinds() []FailureKind {
	return []FailureKind{
		FailureCorruptInput,
		FailureUnsupportedFormat,
		FailureTimeout,
		FailureEngineCrash,
		FailureInsufficientResolution,
		FailureUnknown,
	}
}

// Job represents one unit of work: swap the reference face into a single
// media file, producing one output file.
type Job struct {
	ID               string            `json:"id"`
	SourcePath       string            `json:"source_path"`
	DestPath         string            `json:"dest_path"`
	Kind             MediaKind         `json:"kind"`
	SourceBytes      int64             `json:"source_bytes,omitempty"`
	State            JobState          `json:"state"`
	Failure          FailureKind       `json:"failure,omitempty"`
	Error            string            `json:"error,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	StateTransitions []StateTransition `json:"state_transitions,omitempty"`
}

// Transition moves the job to a new state and records the change. The caller
// (the scheduler) owns the job while it is running, so no locking here.
func (j *Job) Transition(to JobState, reason string) {
	now := time.Now()
	j.StateTransitions = append(j.StateTransitions, StateTransition{
		From:      j.State,
		To:        to,
		Timestamp: now,
		Reason:    reason,
	})
	j.State = to
	switch to {
	case JobStateRunning:
		j.StartedAt = &now
	case JobStateSucceeded, JobStateFailed:
		j.CompletedAt = &now
	}
}

// Duration returns the wall time the job spent running, or zero if it never
// started or never finished.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// StateTransition tracks job state changes with timestamps
type StateTransition struct {
	From      JobState  `json:"from"`
	To        JobState  `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// JobResult is the normalized outcome of one job as produced by the
// inference adapter. Exactly one result exists per job.
type JobResult struct {
	JobID       string        `json:"job_id"`
	State       JobState      `json:"state"`
	Failure     FailureKind   `json:"failure,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	OutputBytes int64         `json:"output_bytes,omitempty"`
	Attempts    int           `json:"attempts"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Succeeded reports whether the job completed with output.
func (r JobResult) Succeeded() bool {
	return r.State == JobStateSucceeded
}
