// Package engine is the sole caller of the external face-swap operation. It
// wraps one job at a time, applies the per-job timeout, and normalizes both
// success and failure into a structured result the scheduler can rely on.
package engine

import (
	"context"
	"fmt"

	"github.com/storenstra/facebatch/pkg/models"
)

// Engine abstracts the external face-swap operation. Implementations take a
// source file, the reference face, and a destination path; on return without
// error the destination must exist. The real engine shells out to an
// inference process, tests substitute a mock.
type Engine interface {
	// Name returns the engine name
	Name() string

	// Swap performs one face-swap. The context carries the per-job timeout.
	Swap(ctx context.Context, job *models.Job, ref *models.ReferenceFace) error
}

// ExecError carries what the external process left behind when it failed.
// The classifier turns it into a FailureKind; nothing engine-specific leaks
// past this package.
type ExecError struct {
	ExitCode int // -1 when the process never ran or died on a signal
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("engine exited with code %d", e.ExitCode)
}

func (e *ExecError) Unwrap() error { return e.Err }

// StartError means the engine process could not be started at all. The
// scheduler treats this on the first job as a systemic condition.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("engine %q failed to start: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
