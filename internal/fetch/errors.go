package fetch

import (
	"errors"
	"fmt"
)

// ErrShortTransfer is returned when the stream ends before the declared size
// is on disk. The part file is kept so the next run can resume.
var ErrShortTransfer = errors.New("fetch: transfer ended before the declared size")

// ErrLongTransfer is returned when more bytes arrive than the probe declared.
// The destination is left untouched.
var ErrLongTransfer = errors.New("fetch: transfer exceeded the declared size")

// StatusError represents an HTTP response the transfer cannot use.
type StatusError struct {
	Operation  string // "probe" or "transfer"
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response during %s of %s (HTTP %d): %s", e.Operation, e.URL, e.StatusCode, e.Status)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
