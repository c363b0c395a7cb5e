package mqtt

import "fmt"

// Topic prefixes for the Electric Monitor MQTT namespace.
//
// The sensor publishes one message per meter LED pulse on the sensor topic.
// The monitor publishes its own lifecycle status on the system topic.
const (
	// TopicPrefix is the base for all Electric Monitor topics.
	TopicPrefix = "electricmonitor"

	// TopicPrefixSensor is the base for sensor-originated topics.
	TopicPrefixSensor = "electricmonitor/sensor"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "electricmonitor/system"
)

// Topics provides builders for Electric Monitor MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// SensorPulse returns the topic a pulse sensor publishes on.
//
// Example: electricmonitor/sensor/pulse
func (Topics) SensorPulse() string {
	return fmt.Sprintf("%s/pulse", TopicPrefixSensor)
}

// SensorHealth returns the topic for sensor health reports.
//
// Example: electricmonitor/sensor/health
func (Topics) SensorHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixSensor)
}

// SystemStatus returns the monitor's own status topic.
//
// Example: electricmonitor/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSensors returns a pattern matching every sensor topic.
// Useful when multiple pulse sensors publish under distinct subtopics.
//
// Pattern: electricmonitor/sensor/#
func (Topics) AllSensors() string {
	return fmt.Sprintf("%s/#", TopicPrefixSensor)
}
