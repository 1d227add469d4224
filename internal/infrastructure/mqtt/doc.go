// Package mqtt wraps the paho client with the connection management
// the hub needs: auto-reconnect with backoff, re-subscription after a
// reconnect, a retained last-will so watchers notice an unclean exit,
// and publish/subscribe helpers with timeouts and QoS validation.
//
// MQTT is the hub's transport to MQTT-native devices. Vendor
// integrations (Shelly, Z-Wave gateways) subscribe to their device
// namespaces for button events and telemetry, and the hub publishes
// commands and canonical entity state under amber/.
//
//	Device firmware / gateways ↔ MQTT Broker ↔ Amber Hub
//
// Production brokers should require TLS (broker.tls: true) and
// credentials; anonymous access is for local development only.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("shellies/+/input_event/+", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	topic := mqtt.Topics{}.Command("shelly", "shelly1-kitchen")
//	client.Publish(topic, []byte(`{"turn":"on"}`), 1, false)
package mqtt
