package bus

import "time"

// Event type identifiers used by the dispatcher.
const (
	TypeSignal uint32 = iota + 1
	TypeStateBroadcast
)

// Broadcast sources.
const (
	// SourceCommand marks a broadcast that follows an acknowledged command.
	SourceCommand = "command"

	// SourcePoll marks a broadcast produced by a status refresh.
	SourcePoll = "poll"
)

// Event is implemented by everything published on a Bus.
type Event interface {
	Type() uint32
}

// Signal asks for a device to be switched.
//
// State is carried as received; the adapter decides whether it is valid.
type Signal struct {
	DeviceID   string    `json:"device_id"`
	State      string    `json:"state"`
	ReceivedAt time.Time `json:"received_at"`
}

// Type returns the event type identifier for Signal.
func (Signal) Type() uint32 { return TypeSignal }

// StateBroadcast reports the state of a device after a command or poll.
type StateBroadcast struct {
	DeviceID  string    `json:"device_id"`
	State     string    `json:"state"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for StateBroadcast.
func (StateBroadcast) Type() uint32 { return TypeStateBroadcast }
