package bus

import "errors"

var (
	// ErrInvalidPayload is returned when a command payload cannot be decoded.
	ErrInvalidPayload = errors.New("bus: invalid command payload")

	// ErrAlreadyStarted is returned when Start is called twice on a binding.
	ErrAlreadyStarted = errors.New("bus: binding already started")
)
