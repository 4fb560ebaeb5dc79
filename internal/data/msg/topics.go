package msg

import "fmt"

// MQTT topic layout for control telemetry.
const (
	// TelemetryTopicPrefix roots every device telemetry topic.
	TelemetryTopicPrefix = "speaking-stone/device/"
	// StateTopicSuffix carries connectivity state transitions.
	StateTopicSuffix = "/state"
)

// DeviceStateTopic returns the state topic for one device.
func DeviceStateTopic(deviceID string) string {
	return fmt.Sprintf("%s%s%s", TelemetryTopicPrefix, deviceID, StateTopicSuffix)
}

// DeviceTopicRoot returns the telemetry subtree owned by one device.
func DeviceTopicRoot(deviceID string) string {
	return TelemetryTopicPrefix + deviceID + "/"
}
