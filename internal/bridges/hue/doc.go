// Package hue implements the Philips Hue device adapter for Gray Logic.
//
// The adapter translates between the Gray Logic signal bus and a Hue bridge.
// It switches lights and light groups on or off, and reports their state
// back onto the bus.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   Hue Adapter   │  HTTPS
//	│      Core       │◄────────►│   (this pkg)    │◄────────► Hue Bridge
//	└─────────────────┘          └─────────────────┘
//
// # Device Identifiers
//
// A device identifier is the native Hue resource id prefixed with a one
// character type tag:
//
//   - "L" + id: a single light, e.g. "L3"
//   - "G" + id: a light group, e.g. "G1"
//
// Identifiers with any other tag are ignored. The id is either a CLIP v2
// resource id (UUID) or the numeric id of the bridge's v1 API, which
// OpenHueClient resolves through the resource's id_v1.
//
// # Commands and Status
//
// ApplyState dispatches an on/off command and broadcasts the new state only
// after the bridge acknowledges it. RefreshAll queries every registered
// device concurrently and broadcasts each result; one device failing never
// stops the others.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package hue
