package device

import "time"

// State values persisted for a device.
const (
	StateOn  = "on"
	StateOff = "off"
)

// Device is one Hue light or group managed by an adapter instance.
type Device struct {
	// ID is the registry's own identifier (UUID).
	ID string `json:"id"`

	// PluginID scopes the device to one adapter instance.
	PluginID string `json:"plugin_id"`

	// DeviceID is the tagged Hue identifier, e.g. "L3" or "G1".
	DeviceID string `json:"device_id"`

	Name string `json:"name"`

	// State is the last broadcast state ("on" or "off"), nil until first seen.
	State *string `json:"state,omitempty"`

	// StateSource records whether State came from a command or a poll.
	StateSource    string     `json:"state_source,omitempty"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.State != nil {
		s := *d.State
		cpy.State = &s
	}
	if d.StateUpdatedAt != nil {
		ts := *d.StateUpdatedAt
		cpy.StateUpdatedAt = &ts
	}
	return &cpy
}

// Seed declares a device that should exist for a plugin.
type Seed struct {
	DeviceID string
	Name     string
}

// SyncResult summarises what SyncPlugin changed.
type SyncResult struct {
	Created int
	Updated int
	Deleted int
}
