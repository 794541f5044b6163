package inventory

import "fmt"

// MissingReferenceError reports that the reserved reference file does not
// exist in the input directory. This aborts the run before any job starts.
type MissingReferenceError struct {
	Dir  string
	Name string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("reference face %q not found in %s", e.Name, e.Dir)
}

// InvalidReferenceError reports that the reference file exists but is
// unusable: unreadable, not an image, or below the minimum resolution.
type InvalidReferenceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidReferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid reference face %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid reference face %s: %s", e.Path, e.Reason)
}

func (e *InvalidReferenceError) Unwrap() error { return e.Err }

// EmptyInventoryError reports that classification left zero processable
// items.
type EmptyInventoryError struct {
	Dir string
}

func (e *EmptyInventoryError) Error() string {
	return fmt.Sprintf("no processable media files found in %s", e.Dir)
}
