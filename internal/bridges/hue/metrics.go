package hue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command results recorded by Metrics.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the adapter's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands       *prometheus.CounterVec
	broadcasts     *prometheus.CounterVec
	hardwareErrors *prometheus.CounterVec
	devices        prometheus.Gauge
}

// NewMetrics registers the adapter collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graylogic",
			Subsystem: "hue",
			Name:      "commands_total",
			Help:      "State commands dispatched to the Hue bridge",
		}, []string{"kind", "result"}),

		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graylogic",
			Subsystem: "hue",
			Name:      "broadcasts_total",
			Help:      "Device state broadcasts published on the bus",
		}, []string{"source"}),

		hardwareErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graylogic",
			Subsystem: "hue",
			Name:      "hardware_errors_total",
			Help:      "Failed Hue bridge calls",
		}, []string{"operation"}),

		devices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "graylogic",
			Subsystem: "hue",
			Name:      "devices_managed",
			Help:      "Devices registered for this adapter at the last refresh",
		}),
	}
}

func (m *Metrics) commandResult(kind Kind, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind.String(), result).Inc()
}

func (m *Metrics) broadcast(source string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(source).Inc()
}

func (m *Metrics) hardwareError(operation string) {
	if m == nil {
		return
	}
	m.hardwareErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) setDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}
