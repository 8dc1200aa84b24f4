// Package bus carries device signals and state broadcasts inside the process.
//
// Two event types flow through a Bus:
//
//   - Signal: an inbound request to set a device's state, normally decoded
//     from an MQTT command topic by MQTTBinding.
//   - StateBroadcast: an outbound report that a device is now on or off,
//     fanned out to every subscriber (MQTT state topic, device registry,
//     InfluxDB history, WebSocket clients).
//
// Publishing never blocks on subscribers. Each subscriber receives events
// in publish order on its own goroutine.
package bus
