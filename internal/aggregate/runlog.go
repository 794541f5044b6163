package aggregate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLog is the append-only chronological event artifact. Lines are written
// straight through to the file descriptor on every append so a crash loses
// at most the event being written.
type RunLog struct {
	file *os.File
	path string
}

// OpenRunLog creates (or appends to) the event log in the output directory.
func OpenRunLog(outputDir, name string) (*RunLog, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	return &RunLog{file: f, path: path}, nil
}

// Append writes one timestamped event line.
func (rl *RunLog) Append(event string, format string, args ...interface{}) error {
	line := fmt.Sprintf("%s %s %s\n",
		time.Now().Format(time.RFC3339),
		event,
		fmt.Sprintf(format, args...),
	)
	_, err := rl.file.WriteString(line)
	return err
}

// Sync forces the log to durable storage.
func (rl *RunLog) Sync() error {
	return rl.file.Sync()
}

// Path returns the artifact location.
func (rl *RunLog) Path() string {
	return rl.path
}

// Close syncs and closes the log file.
func (rl *RunLog) Close() error {
	if err := rl.file.Sync(); err != nil {
		rl.file.Close()
		return err
	}
	return rl.file.Close()
}
