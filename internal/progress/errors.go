package progress

import "errors"

var (
	// ErrSimulatedFailure ends a task when the counter lands on a multiple of the failure period.
	ErrSimulatedFailure = errors.New("simulated failure")

	ErrUnknownScope = errors.New("unknown counter scope")
)
