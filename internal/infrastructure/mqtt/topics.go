package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the Hue adapter.
//
// All bridge topics use the flat scheme: graylogic/{category}/{protocol}/{device_id}
// where protocol is always "hue" and device_id is the tagged identifier
// (e.g. "L3", "G1").
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by this adapter.
	Protocol = "hue"
)

// Topics provides builders for the adapter's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("L3")
//	// Returns: "graylogic/state/hue/L3"
type Topics struct{}

// State returns the topic a device's state broadcast is published on.
//
// Example: graylogic/state/hue/L3
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Command returns the topic commands for a device arrive on.
//
// Example: graylogic/command/hue/G1
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Health returns the retained adapter health topic.
//
// Example: graylogic/health/hue
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// AllCommands returns a pattern matching commands for every device.
//
// Pattern: graylogic/command/hue/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllStates returns a pattern matching every device state topic.
//
// Pattern: graylogic/state/hue/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

// DeviceIDFromTopic extracts the device segment from a command or state
// topic. Returns "" if the topic does not belong to this adapter.
func (Topics) DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != Protocol {
		return ""
	}
	return parts[3]
}
