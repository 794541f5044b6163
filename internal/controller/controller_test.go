package controller

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storenstra/facebatch/internal/aggregate"
	"github.com/storenstra/facebatch/internal/config"
	"github.com/storenstra/facebatch/internal/inventory"
	"github.com/storenstra/facebatch/pkg/logging"
	"github.com/storenstra/facebatch/pkg/models"
)

// scriptedRunner fails jobs whose source basename appears in failures and
// writes the expected output file for everything else.
type scriptedRunner struct {
	failures map[string]models.FailureKind
}

func (r *scriptedRunner) Run(job *models.Job, _ *models.ReferenceFace) models.JobResult {
	base := filepath.Base(job.SourcePath)
	if kind, ok := r.failures[base]; ok {
		return models.JobResult{
			JobID:       job.ID,
			State:       models.JobStateFailed,
			Failure:     kind,
			Error:       "scripted failure",
			Attempts:    1,
			CompletedAt: time.Now(),
		}
	}
	if err := os.WriteFile(job.DestPath, []byte("output"), 0644); err != nil {
		return models.JobResult{
			JobID:       job.ID,
			State:       models.JobStateFailed,
			Failure:     models.FailureUnknown,
			Error:       err.Error(),
			Attempts:    1,
			CompletedAt: time.Now(),
		}
	}
	return models.JobResult{
		JobID:       job.ID,
		State:       models.JobStateSucceeded,
		OutputBytes: 6,
		Attempts:    1,
		CompletedAt: time.Now(),
	}
}

func writeReference(t *testing.T, dir string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "refmodel.jpg"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeMedia(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("media"), 0644))
	}
}

func testConfig(inputDir, outputDir string) *config.Config {
	return &config.Config{
		InputDir:      inputDir,
		OutputDir:     outputDir,
		ReferenceName: config.DefaultReferenceName,
		OutputSuffix:  config.DefaultOutputSuffix,
		Concurrency:   2,
		JobTimeout:    time.Minute,
	}
}

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, false)
}

func TestRun_AllSucceed(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeReference(t, inputDir)
	writeMedia(t, inputDir, "a.mp4", "b.jpg")

	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), &scriptedRunner{})
	res := ctrl.Run(context.Background())

	require.Equal(t, OutcomeSuccess, res.Outcome, "outcome: %v", res.FatalErr)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Succeeded)
	assert.Equal(t, 0, res.Stats.Failed)

	assert.FileExists(t, filepath.Join(outputDir, "a_swapped.mp4"))
	assert.FileExists(t, filepath.Join(outputDir, "b_swapped.jpg"))
	assert.FileExists(t, filepath.Join(outputDir, aggregate.StatisticsFileName))
	assert.FileExists(t, filepath.Join(outputDir, aggregate.EventLogFileName))
}

func TestRun_PartialFailure(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeReference(t, inputDir)
	writeMedia(t, inputDir, "a.mp4", "b.mov", "corrupt.mp4")

	runner := &scriptedRunner{failures: map[string]models.FailureKind{
		"corrupt.mp4": models.FailureCorruptInput,
	}}
	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), runner)
	res := ctrl.Run(context.Background())

	require.Equal(t, OutcomePartialFailure, res.Outcome)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Succeeded)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.FailuresByKind[models.FailureCorruptInput])

	data, err := os.ReadFile(filepath.Join(outputDir, aggregate.StatisticsFileName))
	require.NoError(t, err)
	var stats models.RunStatistics
	require.NoError(t, json.Unmarshal(data, &stats))
	require.Len(t, stats.Errors, 1)
	assert.True(t, strings.HasSuffix(stats.Errors[0].File, "corrupt.mp4"))
	assert.Equal(t, models.FailureCorruptInput, stats.Errors[0].Reason)
}

func TestRun_MissingReferenceAborts(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeMedia(t, inputDir, "a.mp4")

	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), &scriptedRunner{})
	res := ctrl.Run(context.Background())

	require.Equal(t, OutcomeFatalAbort, res.Outcome)
	var missing *inventory.MissingReferenceError
	assert.ErrorAs(t, res.FatalErr, &missing)

	// Even a pre-flight abort leaves artifacts behind.
	assert.FileExists(t, filepath.Join(outputDir, aggregate.StatisticsFileName))
	assert.FileExists(t, filepath.Join(outputDir, aggregate.EventLogFileName))
}

func TestRun_EmptyInventoryAborts(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeReference(t, inputDir)
	writeMedia(t, inputDir, "notes.txt", "data.csv")

	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), &scriptedRunner{})
	res := ctrl.Run(context.Background())

	require.Equal(t, OutcomeFatalAbort, res.Outcome)
	var empty *inventory.EmptyInventoryError
	assert.ErrorAs(t, res.FatalErr, &empty)
}

func TestRun_StatisticsCarryRunID(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeReference(t, inputDir)
	writeMedia(t, inputDir, "a.mp4")

	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), &scriptedRunner{})
	res := ctrl.Run(context.Background())

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.NotNil(t, res.Stats)
	assert.NotEmpty(t, res.Stats.RunID)
	assert.Equal(t, 36, len(res.Stats.RunID), "run id should be a UUID")
}

func TestRun_CancelledContextStillFinalizes(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeReference(t, inputDir)
	writeMedia(t, inputDir, "a.mp4", "b.mp4", "c.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctrl := New(testConfig(inputDir, outputDir), quietLogger(), &scriptedRunner{})
	res := ctrl.Run(ctx)

	// Cancellation is cooperative: nothing dispatched, nothing failed,
	// artifacts still written.
	require.NotEqual(t, OutcomeFatalAbort, res.Outcome)
	assert.FileExists(t, filepath.Join(outputDir, aggregate.StatisticsFileName))
}
