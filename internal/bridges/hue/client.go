package hue

import "context"

// LightCommand is the state change sent to a light or group.
type LightCommand struct {
	On bool
}

// GroupState is a group's state as reported by the bridge.
type GroupState struct {
	LastAction LastAction
}

// LastAction is the group's on/off flag as the bridge reports it. On is
// true when any light in the group is on.
type LastAction struct {
	On bool
}

// HardwareClient is the set of Hue bridge operations the adapter uses.
//
// Addresses are native Hue ids without the type tag: a CLIP v2 resource
// id or a numeric v1 id.
type HardwareClient interface {
	SetLightState(ctx context.Context, address string, cmd LightCommand) error
	SetGroupLightState(ctx context.Context, address string, cmd LightCommand) error
	LightStatus(ctx context.Context, address string) (bool, error)
	GroupStatus(ctx context.Context, address string) (GroupState, error)
}
