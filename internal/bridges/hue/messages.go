package hue

import (
	"time"

	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/mqtt"
)

// HealthStatus is the adapter health reported on the health topic.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on graylogic/health/hue.
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version,omitempty"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	DevicesManaged int               `json:"devices_managed"`
	Statistics     AdapterStatistics `json:"statistics"`
	Reason         string            `json:"reason,omitempty"`
}

// AdapterStatistics are the adapter's running counters.
type AdapterStatistics struct {
	Commands   uint64 `json:"commands"`
	Broadcasts uint64 `json:"broadcasts"`
	Errors     uint64 `json:"errors"`

	// HardwareOK is false when no query of the last refresh reached the bridge.
	HardwareOK bool `json:"-"`
}

// NewHealthMessage builds a health message for the given status.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats AdapterStatistics, deviceCount int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: deviceCount,
		Statistics:     stats,
	}
}

// HealthTopic returns the retained health topic.
func HealthTopic() string {
	return mqtt.Topics{}.Health()
}
