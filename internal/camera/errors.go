package camera

import "errors"

// Error taxonomy for the capture controller. Callers match with errors.Is.
var (
	// ErrMisuse marks an operation that is invalid for the current state
	// (Open called twice, Save while recording). A contract violation:
	// never retried.
	ErrMisuse = errors.New("camera: invalid operation for current state")

	// ErrNotReady marks a missing collaborator handle (no frame source,
	// no stream metadata yet). The caller must establish preconditions
	// before retrying.
	ErrNotReady = errors.New("camera: not ready")

	// ErrOperation marks a failed interaction with a collaborator, such
	// as muxing to an unwritable path. Retriable with different input.
	ErrOperation = errors.New("camera: operation failed")
)
