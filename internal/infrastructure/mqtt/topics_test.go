package mqtt

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("mbus2mqtt")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BridgeState", topics.BridgeState(), "mbus2mqtt/bridge/state"},
		{"BridgeInfo", topics.BridgeInfo(), "mbus2mqtt/bridge/info"},
		{"DeviceState", topics.DeviceState("12345678"), "mbus2mqtt/device/12345678/state"},
		{"DeviceAvailability", topics.DeviceAvailability("12345678"), "mbus2mqtt/device/12345678/availability"},
		{"CommandRescan", topics.CommandRescan(), "mbus2mqtt/command/rescan"},
		{"CommandLogLevel", topics.CommandLogLevel(), "mbus2mqtt/command/log_level"},
		{"CommandPollInterval", topics.CommandPollInterval(), "mbus2mqtt/command/poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicsCustomBase(t *testing.T) {
	topics := NewTopics("home/meters")

	if got := topics.DeviceState("7"); got != "home/meters/device/7/state" {
		t.Errorf("DeviceState() = %q, want %q", got, "home/meters/device/7/state")
	}
	if got := topics.Base(); got != "home/meters" {
		t.Errorf("Base() = %q, want %q", got, "home/meters")
	}
}

func TestGenerateClientID(t *testing.T) {
	id := generateClientID()

	if !strings.HasPrefix(id, "mbus2mqtt-") {
		t.Errorf("generateClientID() = %q, want mbus2mqtt- prefix", id)
	}
	if len(id) != len("mbus2mqtt-")+8 {
		t.Errorf("generateClientID() = %q, want 8-char suffix", id)
	}

	// Suffixes must differ between calls.
	if other := generateClientID(); other == id {
		t.Errorf("generateClientID() returned duplicate %q", id)
	}
}
