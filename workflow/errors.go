package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a task is moved to a status its
	// current status cannot reach.
	ErrInvalidTransition = errors.New("workflow: invalid task transition")

	// ErrMaxRetries wraps the last step error once every attempt has failed.
	ErrMaxRetries = errors.New("workflow: retries exhausted")
)

// ErrSinkFailed is the attempt error of a sink that returned Outcome.OK=false.
var ErrSinkFailed = errors.New("sink reported failure")
