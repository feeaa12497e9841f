package engine

import "errors"

var (
	// ErrComputeFailed wraps every failure of the remote compute service.
	ErrComputeFailed = errors.New("emission compute failed")

	// ErrUnknownUnit is returned when a unit is not part of the activity.
	ErrUnknownUnit = errors.New("unit not recorded on activity")

	// ErrClosed is returned by operations on a closed Orchestrator.
	ErrClosed = errors.New("orchestrator closed")
)
