// Package api implements the admin HTTP API and WebSocket stream for the
// Hue adapter.
//
// Endpoints:
//
//	GET  /healthz                       adapter health
//	GET  /metrics                       Prometheus metrics
//	GET  /api/devices                   registered devices with last state
//	POST /api/refresh                   run a status refresh now
//	PUT  /api/devices/{deviceID}/state  switch a device on or off
//	GET  /ws                            stream of state broadcasts
//
// The API listens on loopback by default and has no authentication; expose
// it only on trusted networks.
package api
