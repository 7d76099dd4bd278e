// Package mqtt provides MQTT client connectivity for the state relay.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// musiccastd mirrors device state onto an MQTT broker so that home
// automation systems can consume it without speaking the Yamaha HTTP/UDP
// protocol themselves. State topics are retained, so a subscriber that
// connects late immediately sees the current state of every zone. The
// relay also subscribes to command topics, translating inbound messages
// into device commands.
//
//	MusicCast devices ↔ musiccastd ↔ MQTT Broker ↔ automation systems
//
// # Security Considerations
//
//   - TLS is available for remote brokers (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Root: cfg.MQTT.TopicRoot}
//
//	// Subscribe to inbound commands
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish retained zone state
//	client.PublishRetained(topics.ZoneState("dev-1", "main"), []byte(`{"volume":42}`))
package mqtt
