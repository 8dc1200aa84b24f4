package hue

import "errors"

// Domain errors for the Hue adapter package.
var (
	// ErrHardware is returned when the Hue bridge rejects or fails a call.
	ErrHardware = errors.New("hue: hardware call failed")

	// ErrNoData is returned when the bridge answers without the requested resource.
	ErrNoData = errors.New("hue: resource not found on bridge")

	// ErrTimeout is returned when a hardware call exceeds the command timeout.
	ErrTimeout = errors.New("hue: operation timed out")

	// ErrNotStarted is returned when an operation requires a started adapter.
	ErrNotStarted = errors.New("hue: adapter not started")
)
