package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/storenstra/facebatch/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.FailureKind
	}{
		{
			name: "timeout",
			err:  context.DeadlineExceeded,
			want: models.FailureTimeout,
		},
		{
			name: "wrapped timeout",
			err:  fmt.Errorf("max retries (1) exceeded: %w", context.DeadlineExceeded),
			want: models.FailureTimeout,
		},
		{
			name: "start failure",
			err:  &StartError{Command: "facefusion", Err: errors.New("executable file not found")},
			want: models.FailureEngineCrash,
		},
		{
			name: "corrupt input",
			err:  &ExecError{ExitCode: 1, Stderr: "Invalid data found when processing input"},
			want: models.FailureCorruptInput,
		},
		{
			name: "truncated file",
			err:  &ExecError{ExitCode: 1, Stderr: "moov atom not found"},
			want: models.FailureCorruptInput,
		},
		{
			name: "unsupported codec",
			err:  &ExecError{ExitCode: 1, Stderr: "Unsupported codec with id 98314"},
			want: models.FailureUnsupportedFormat,
		},
		{
			name: "no decoder",
			err:  &ExecError{ExitCode: 1, Stderr: "no decoder found for av1"},
			want: models.FailureUnsupportedFormat,
		},
		{
			name: "no face detected",
			err:  &ExecError{ExitCode: 1, Stderr: "No face detected in target frame"},
			want: models.FailureInsufficientResolution,
		},
		{
			name: "cuda out of memory",
			err:  &ExecError{ExitCode: 1, Stderr: "CUDA error: out of memory"},
			want: models.FailureEngineCrash,
		},
		{
			name: "segfault",
			err:  &ExecError{ExitCode: 139, Stderr: "Segmentation fault (core dumped)"},
			want: models.FailureEngineCrash,
		},
		{
			name: "killed by signal without output",
			err:  &ExecError{ExitCode: -1, Stderr: ""},
			want: models.FailureEngineCrash,
		},
		{
			name: "unrecognized stderr",
			err:  &ExecError{ExitCode: 1, Stderr: "something else entirely"},
			want: models.FailureUnknown,
		},
		{
			name: "arbitrary error",
			err:  errors.New("mystery"),
			want: models.FailureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %s, want empty", got)
	}
}
