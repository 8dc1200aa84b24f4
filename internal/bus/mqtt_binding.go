package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the MQTT client the binding needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the binding.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTBindingOptions configures an MQTTBinding.
type MQTTBindingOptions struct {
	Bus    *Bus
	Client MQTTClient

	// QoS for the command subscription and state publications. Default 1.
	QoS byte

	Logger Logger
}

// MQTTBinding maps the bus onto MQTT topics.
//
// Commands received on graylogic/command/hue/+ become Signal events and
// every StateBroadcast is published retained on graylogic/state/hue/{id}.
type MQTTBinding struct {
	bus    *Bus
	client MQTTClient
	qos    byte
	topics mqtt.Topics
	logger Logger

	mu          sync.Mutex
	started     bool
	unsubStates func()
}

// NewMQTTBinding creates a binding. Call Start to begin forwarding.
func NewMQTTBinding(opts MQTTBindingOptions) (*MQTTBinding, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}

	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &MQTTBinding{
		bus:    opts.Bus,
		client: opts.Client,
		qos:    qos,
		logger: logger,
	}, nil
}

// Start subscribes to the command topics and begins publishing broadcasts.
func (m *MQTTBinding) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.client.Subscribe(m.topics.AllCommands(), m.qos, m.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	m.unsubStates = m.bus.SubscribeStates(m.publishState)
	m.started = true
	return nil
}

// Stop unsubscribes from MQTT and the bus. Safe to call more than once.
func (m *MQTTBinding) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}
	m.started = false

	if m.unsubStates != nil {
		m.unsubStates()
		m.unsubStates = nil
	}
	if err := m.client.Unsubscribe(m.topics.AllCommands()); err != nil {
		m.logger.Warn("unsubscribing from commands failed", "error", err)
	}
}

func (m *MQTTBinding) handleCommand(topic string, payload []byte) error {
	msg, err := DecodeCommand(payload, m.topics.DeviceIDFromTopic(topic))
	if err != nil {
		m.logger.Warn("dropping command", "topic", topic, "error", err)
		return err
	}

	m.logger.Debug("command received", "device_id", msg.DeviceID, "state", msg.Data.State)
	m.bus.PublishSignal(Signal{
		DeviceID:   msg.DeviceID,
		State:      msg.Data.State,
		ReceivedAt: time.Now(),
	})
	return nil
}

func (m *MQTTBinding) publishState(s StateBroadcast) {
	payload, err := json.Marshal(NewStateMessage(s))
	if err != nil {
		m.logger.Error("marshalling state failed", "device_id", s.DeviceID, "error", err)
		return
	}
	if err := m.client.Publish(m.topics.State(s.DeviceID), payload, m.qos, true); err != nil {
		m.logger.Error("publishing state failed", "device_id", s.DeviceID, "error", err)
	}
}
