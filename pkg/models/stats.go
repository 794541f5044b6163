package models

import "time"

// FailedItem records one failed job for the statistics artifact.
type FailedItem struct {
	JobID  string      `json:"job_id"`
	File   string      `json:"file"`
	Reason FailureKind `json:"reason"`
	Error  string      `json:"error,omitempty"`
}

// RunStatistics is the aggregate outcome of a batch run. It is mutated
// incrementally by the run aggregator as jobs reach terminal states and
// frozen at finalize.
type RunStatistics struct {
	RunID          string              `json:"run_id"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	Total          int                 `json:"total"`
	Succeeded      int                 `json:"successful"`
	Failed         int                 `json:"failed"`
	FailuresByKind map[FailureKind]int `json:"failures_by_kind"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
	Errors         []FailedItem        `json:"errors"`
}

// SuccessRate returns the percentage of jobs that succeeded, or zero when
// nothing was discovered.
func (s *RunStatistics) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}
