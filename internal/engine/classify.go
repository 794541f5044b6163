package engine

import (
	"context"
	"errors"
	"regexp"

	"github.com/storenstra/facebatch/pkg/models"
)

// Pre-compiled regexes for classifying engine stderr into the closed failure
// taxonomy. Checked in order; the first match wins. The patterns cover
// FaceFusion's own messages plus the ffmpeg/onnxruntime output it forwards.
var (
	reCorruptInput = regexp.MustCompile(
		`(?i)invalid data found when processing input|` +
			`moov atom not found|` +
			`could not find corresponding|` +
			`error while decoding|` +
			`corrupt|truncated|` +
			`cannot identify image file|` +
			`image file is truncated|` +
			`premature end`)

	reUnsupportedFormat = regexp.MustCompile(
		`(?i)unsupported codec|codec not currently supported|` +
			`unknown format|invalid pixel format|` +
			`unsupported pixel format|` +
			`no decoder (found )?for|` +
			`unknown encoder|` +
			`format not recognised|unsupported file type`)

	reInsufficientResolution = regexp.MustCompile(
		`(?i)no face detected|face could not be detected|` +
			`resolution too (low|small)|` +
			`frame too small|below minimum resolution`)

	reEngineCrash = regexp.MustCompile(
		`(?i)cuda (error|out of memory)|cudnn|` +
			`segmentation fault|core dumped|` +
			`onnxruntime.*(fail|error)|` +
			`device-side assert|` +
			`out of memory`)
)

// Classify normalizes any error coming back from an Engine into the closed
// failure-kind set. It never returns an empty kind for a non-nil error.
func Classify(err error) models.FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}

	var startErr *StartError
	if errors.As(err, &startErr) {
		return models.FailureEngineCrash
	}

	var execErr *ExecError
	if errors.As(err, &execErr) {
		switch {
		case reCorruptInput.MatchString(execErr.Stderr):
			return models.FailureCorruptInput
		case reUnsupportedFormat.MatchString(execErr.Stderr):
			return models.FailureUnsupportedFormat
		case reInsufficientResolution.MatchString(execErr.Stderr):
			return models.FailureInsufficientResolution
		case reEngineCrash.MatchString(execErr.Stderr):
			return models.FailureEngineCrash
		case execErr.ExitCode < 0:
			// Killed by a signal without recognizable output.
			return models.FailureEngineCrash
		default:
			return models.FailureUnknown
		}
	}

	return models.FailureUnknown
}
