package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/geoawd/electricmonitor/internal/infrastructure/config"
	"github.com/geoawd/electricmonitor/internal/infrastructure/mqtt"
)

// Source delivers pulse timestamps from the physical sensor. The hardware
// that detects the meter's light/dark transition lives outside this
// process; a Source is whatever transport carries its events here.
type Source interface {
	// Start begins delivering pulse timestamps to emit. It returns once
	// delivery is set up; emit may be called from other goroutines until
	// Stop.
	Start(ctx context.Context, emit func(ts time.Time)) error

	// Stop ends delivery. No emit calls are made after Stop returns.
	Stop() error
}

// pulsePayload is the optional JSON body of a pulse message. Sensors that
// timestamp at the edge send {"timestamp": "..."}; bare sensors send an
// empty payload and the monitor stamps arrival time.
type pulsePayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSource delivers pulses published by a meter-attached sensor over MQTT.
type MQTTSource struct {
	client *mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTSource creates a source subscribing to the configured pulse topic.
func NewMQTTSource(client *mqtt.Client, cfg config.SensorConfig) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
	}
}

// Start subscribes to the pulse topic. Each message becomes one pulse:
// an empty payload is stamped with the arrival time, a JSON payload may
// carry the sensor's own timestamp. Malformed payloads are treated as
// bare pulses rather than dropped; losing a billing event over a framing
// quirk is worse than a slightly coarse timestamp.
func (s *MQTTSource) Start(_ context.Context, emit func(ts time.Time)) error {
	err := s.client.Subscribe(s.topic, s.qos, func(_ string, payload []byte) error {
		emit(parseTimestamp(payload))
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to pulse topic: %w", err)
	}
	return nil
}

// Stop unsubscribes from the pulse topic.
func (s *MQTTSource) Stop() error {
	if !s.client.IsConnected() {
		return nil
	}
	if err := s.client.Unsubscribe(s.topic); err != nil {
		return fmt.Errorf("unsubscribing from pulse topic: %w", err)
	}
	return nil
}

// parseTimestamp extracts the sensor timestamp from a pulse payload,
// falling back to the arrival time.
func parseTimestamp(payload []byte) time.Time {
	if len(payload) == 0 {
		return time.Now()
	}

	var p pulsePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Timestamp.IsZero() {
		return time.Now()
	}
	return p.Timestamp
}
