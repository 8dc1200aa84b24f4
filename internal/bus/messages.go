package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CommandMessage is the payload received on graylogic/command/hue/{device_id}.
//
//	{"device_id": "L3", "data": {"state": "on"}}
type CommandMessage struct {
	DeviceID string      `json:"device_id,omitempty"`
	Data     CommandData `json:"data"`
}

// CommandData holds the requested device attributes.
type CommandData struct {
	State string `json:"state"`
}

// StateMessage is the retained payload published on graylogic/state/hue/{device_id}.
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Data      StateData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// StateData holds the reported device attributes.
type StateData struct {
	State string `json:"state"`
}

// DecodeCommand parses a command payload. topicDeviceID is used when the
// payload does not name a device itself; when both are present they must
// agree. The device id must be usable as a single MQTT topic level.
func DecodeCommand(payload []byte, topicDeviceID string) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	switch {
	case msg.DeviceID == "":
		msg.DeviceID = topicDeviceID
	case topicDeviceID != "" && msg.DeviceID != topicDeviceID:
		return CommandMessage{}, fmt.Errorf("%w: device_id %q does not match topic device %q",
			ErrInvalidPayload, msg.DeviceID, topicDeviceID)
	}
	if msg.DeviceID == "" {
		return CommandMessage{}, fmt.Errorf("%w: missing device_id", ErrInvalidPayload)
	}
	if strings.ContainsAny(msg.DeviceID, "/+#") {
		return CommandMessage{}, fmt.Errorf("%w: device_id %q contains MQTT topic characters",
			ErrInvalidPayload, msg.DeviceID)
	}
	return msg, nil
}

// NewStateMessage builds the wire form of a state broadcast.
func NewStateMessage(s StateBroadcast) StateMessage {
	return StateMessage{
		DeviceID:  s.DeviceID,
		Data:      StateData{State: s.State},
		Timestamp: s.Timestamp.UTC(),
		Source:    s.Source,
	}
}
