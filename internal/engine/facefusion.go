package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/storenstra/facebatch/pkg/models"
)

// FaceFusionEngine invokes a FaceFusion-style CLI:
//
//	<command> [extra args...] -s <reference> -t <source> -o <destination>
//
// stderr is captured for failure classification.
type FaceFusionEngine struct {
	command   string
	extraArgs []string
	workDir   string
}

// NewFaceFusionEngine creates an engine around the given executable.
func NewFaceFusionEngine(command string, extraArgs []string, workDir string) *FaceFusionEngine {
	return &FaceFusionEngine{
		command:   command,
		extraArgs: extraArgs,
		workDir:   workDir,
	}
}

// Name returns the engine name
func (e *FaceFusionEngine) Name() string {
	return "facefusion"
}

// BuildArgs generates the command line arguments for one job.
func (e *FaceFusionEngine) BuildArgs(job *models.Job, ref *models.ReferenceFace) []string {
	args := make([]string, 0, len(e.extraArgs)+6)
	args = append(args, e.extraArgs...)
	args = append(args,
		"-s", ref.Path,
		"-t", job.SourcePath,
		"-o", job.DestPath,
	)
	return args
}

// Swap runs the external process. The context deadline is the per-job
// timeout; a killed process surfaces as context.DeadlineExceeded.
func (e *FaceFusionEngine) Swap(ctx context.Context, job *models.Job, ref *models.ReferenceFace) error {
	cmd := exec.CommandContext(ctx, e.command, e.BuildArgs(job, ref)...)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return &StartError{Command: e.command, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	// The context deadline wins over whatever exit status the kill produced.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &ExecError{
		ExitCode: exitCode,
		Stderr:   stderrBuf.String(),
		Err:      err,
	}
}
