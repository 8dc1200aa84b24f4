package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StateMeasurement is the measurement every device state change is written to.
const StateMeasurement = "hue_device_state"

// WriteDeviceState records one broadcast on/off state.
//
// Tags: device_id, kind (light|group), source (command|poll).
// Fields: on (bool), value (0/1, for aggregation).
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteDeviceState(deviceID, kind, source string, on bool, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newStatePoint(deviceID, kind, source, on, timestamp))
}

func newStatePoint(deviceID, kind, source string, on bool, timestamp time.Time) *write.Point {
	value := 0
	if on {
		value = 1
	}
	return write.NewPoint(
		StateMeasurement,
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
			"source":    source,
		},
		map[string]interface{}{
			"on":    on,
			"value": value,
		},
		timestamp,
	)
}
