package download

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned when an Orchestrator is built without a
	// transfer strategy.
	ErrNotImplemented = errors.New("download: transfer strategy not implemented")

	// ErrSizeConflict marks a local file whose size disagrees with the remote
	// resource. Callers must stop all work when they see it.
	ErrSizeConflict = errors.New("download: size conflict")
)

// SizeConflictError reports an existing destination whose size is too far
// from the size declared by the remote to belong to the same resource.
type SizeConflictError struct {
	Path       string // Local file that conflicts
	LocalSize  int64  // Size of the file on disk
	RemoteSize int64  // Size declared by the remote
}

func (e *SizeConflictError) Error() string {
	return fmt.Sprintf("total size mismatch for %s (remote %d, local %d): the existing file probably comes from a different source",
		e.Path, e.RemoteSize, e.LocalSize)
}

func (e *SizeConflictError) Is(target error) bool {
	return target == ErrSizeConflict
}
