package device

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxNameLength     = 100
	maxDeviceIDLength = 64
)

// ValidateDevice checks the fields the registry relies on.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.PluginID) == "" {
		return fmt.Errorf("%w: plugin_id is required", ErrInvalidDevice)
	}
	if d.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidDevice)
	}
	if len(d.DeviceID) > maxDeviceIDLength {
		return fmt.Errorf("%w: device_id exceeds %d characters", ErrInvalidDevice, maxDeviceIDLength)
	}
	// device_id becomes an MQTT topic level.
	if strings.ContainsAny(d.DeviceID, "/+#") {
		return fmt.Errorf("%w: device_id %q contains MQTT topic characters", ErrInvalidDevice, d.DeviceID)
	}
	if utf8.RuneCountInString(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if d.State != nil && *d.State != StateOn && *d.State != StateOff {
		return fmt.Errorf("%w: state %q", ErrInvalidDevice, *d.State)
	}
	return nil
}

// GenerateID creates a new registry identifier.
func GenerateID() string {
	return uuid.New().String()
}
