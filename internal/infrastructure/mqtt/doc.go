// Package mqtt provides MQTT client connectivity for the pulse sensor feed.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The meter-attached sensor publishes one MQTT message per LED flash of the
// electricity meter. This package is the transport only; interpreting the
// payload and recording the pulse belongs to the sensor package.
//
//	Pulse Sensor → MQTT Broker → Electric Monitor
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Sensor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.SensorPulse(), 1,
//	    func(topic string, payload []byte) error {
//	        return handlePulse(payload)
//	    })
//
// # Security Considerations
//
//   - TLS is recommended whenever the broker is not on the same host
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
package mqtt
