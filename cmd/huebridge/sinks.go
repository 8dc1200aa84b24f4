package main

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-hue/internal/bus"
	"github.com/nerrad567/gray-logic-hue/internal/device"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/logging"
)

// stateRecorder persists the last state of a device.
type stateRecorder interface {
	SetDeviceState(ctx context.Context, pluginID, deviceID, state, source string, at time.Time) error
}

// historyWriter appends a state change to the time-series store.
type historyWriter interface {
	WriteDeviceState(deviceID, kind, source string, on bool, ts time.Time)
}

// attachStateSinks subscribes the registry and history store to state
// broadcasts. Either may be nil. Returns the unsubscribe function.
func attachStateSinks(b *bus.Bus, pluginID string, recorder stateRecorder, history *influxdb.Client, log *logging.Logger) func() {
	var writer historyWriter
	if history != nil {
		writer = history
	}
	return b.SubscribeStates(newStateSink(pluginID, recorder, writer, log))
}

func newStateSink(pluginID string, recorder stateRecorder, history historyWriter, log *logging.Logger) func(bus.StateBroadcast) {
	return func(s bus.StateBroadcast) {
		if recorder != nil {
			err := recorder.SetDeviceState(context.Background(), pluginID, s.DeviceID, s.State, s.Source, s.Timestamp)
			switch {
			case errors.Is(err, device.ErrDeviceNotFound):
				log.Debug("state for unregistered device not persisted", "device_id", s.DeviceID)
			case err != nil:
				log.Error("persisting device state failed", "device_id", s.DeviceID, "error", err)
			}
		}
		if history != nil {
			history.WriteDeviceState(s.DeviceID, s.Kind, s.Source, s.State == device.StateOn, s.Timestamp)
		}
	}
}
