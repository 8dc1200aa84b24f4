// Package mqtt provides MQTT connectivity for the Hue adapter.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - An offline Last Will on the adapter health topic
//
// # Architecture
//
// MQTT is the Gray Logic signal bus. The adapter receives set-state
// commands and publishes device state:
//
//	graylogic/command/hue/{device_id}  → adapter
//	graylogic/state/hue/{device_id}    ← adapter (retained)
//	graylogic/health/hue               ← adapter (retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
