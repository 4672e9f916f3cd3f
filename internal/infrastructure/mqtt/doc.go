// Package mqtt wraps paho.mqtt.golang for Pulseline's control surface.
//
// External systems bind lines, write control attributes, and observe
// retained per-line state entirely through the broker:
//
//	Controllers ↔ MQTT broker ↔ Pulseline
//
// The wrapper adds what the control surface needs on top of paho:
// subscription tracking with restore on reconnect, panic recovery
// around handlers, a Last Will that marks the daemon offline if it
// dies, and validated publish/subscribe with sentinel errors.
//
// TLS and broker credentials come from cfg.MQTT; anonymous plaintext is
// for local development only.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllLineSets(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
