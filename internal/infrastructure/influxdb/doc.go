// Package influxdb records Hue device state history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every state the
// adapter broadcasts (after a command or a poll) becomes one point in the
// hue_device_state measurement, so on/off history can be charted per
// device.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history turned off
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("L3", "light", "command", true, time.Now())
package influxdb
