package mqtt

import "fmt"

// Availability payloads shared by the bridge and per-device topics.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds mbus-bridge MQTT topics under a configurable base topic.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("mbus2mqtt")
//	topics.DeviceState("12345678") // "mbus2mqtt/device/12345678/state"
type Topics struct {
	base string
}

// NewTopics returns a Topics builder rooted at the given base topic.
func NewTopics(base string) Topics {
	return Topics{base: base}
}

// Base returns the base topic.
func (t Topics) Base() string {
	return t.base
}

// BridgeState returns the bridge availability topic.
// Retained "online"/"offline"; also the LWT topic.
//
// Example: mbus2mqtt/bridge/state
func (t Topics) BridgeState() string {
	return fmt.Sprintf("%s/bridge/state", t.base)
}

// BridgeInfo returns the bridge info topic carrying aggregate counters.
//
// Example: mbus2mqtt/bridge/info
func (t Topics) BridgeInfo() string {
	return fmt.Sprintf("%s/bridge/info", t.base)
}

// DeviceState returns the state topic for a device.
// One retained JSON document per device, keyed by record identifier.
//
// Example: mbus2mqtt/device/12345678/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.base, deviceID)
}

// DeviceAvailability returns the availability topic for a device.
//
// Example: mbus2mqtt/device/12345678/availability
func (t Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/availability", t.base, deviceID)
}

// CommandRescan returns the inbound rescan command topic.
// Any payload triggers a rescan.
//
// Example: mbus2mqtt/command/rescan
func (t Topics) CommandRescan() string {
	return fmt.Sprintf("%s/command/rescan", t.base)
}

// CommandLogLevel returns the inbound log level command topic.
// Payload must be one of DEBUG, INFO, WARNING, ERROR.
//
// Example: mbus2mqtt/command/log_level
func (t Topics) CommandLogLevel() string {
	return fmt.Sprintf("%s/command/log_level", t.base)
}

// CommandPollInterval returns the inbound poll interval command topic.
// Payload must be an integer number of seconds within [10, 3600].
//
// Example: mbus2mqtt/command/poll_interval
func (t Topics) CommandPollInterval() string {
	return fmt.Sprintf("%s/command/poll_interval", t.base)
}
