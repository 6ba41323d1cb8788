package bridge

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevelCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		wantErr bool
	}{
		{"DEBUG", "DEBUG", false},
		{"info", "INFO", false},
		{" warning \n", "WARNING", false},
		{"Error", "ERROR", false},
		{"VERBOSE", "", true},
		{"WARN", "", true},
		{"", "", true},
		{"2", "", true},
	}

	for _, tt := range tests {
		got, err := parseLogLevelCommand([]byte(tt.payload))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidLogLevel) {
				t.Errorf("parseLogLevelCommand(%q) err = %v, want ErrInvalidLogLevel", tt.payload, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevelCommand(%q) err = %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevelCommand(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestParsePollIntervalCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    int
		wantErr bool
	}{
		{"60", 60, false},
		{" 300 ", 300, false},
		{"10", 10, false},
		{"3600", 3600, false},
		{"9", 0, true},
		{"3601", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"60.5", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePollIntervalCommand([]byte(tt.payload))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPollInterval) {
				t.Errorf("parsePollIntervalCommand(%q) err = %v, want ErrInvalidPollInterval", tt.payload, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePollIntervalCommand(%q) err = %v", tt.payload, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePollIntervalCommand(%q) = %d, want %d", tt.payload, got, tt.want)
		}
	}
}

func TestRegisterCommandsSubscribesAllTopics(t *testing.T) {
	client := newMockClient()
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, client)

	if err := s.RegisterCommands(); err != nil {
		t.Fatalf("RegisterCommands() = %v", err)
	}

	for _, topic := range []string{
		"mbus2mqtt/command/rescan",
		"mbus2mqtt/command/log_level",
		"mbus2mqtt/command/poll_interval",
	} {
		if _, ok := client.subs[topic]; !ok {
			t.Errorf("missing subscription for %s", topic)
		}
	}
}

func TestHandleRescanQueuesRequest(t *testing.T) {
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, newMockClient())

	if err := s.handleRescan("mbus2mqtt/command/rescan", []byte("anything")); err != nil {
		t.Fatalf("handleRescan() = %v", err)
	}
	if !s.takePendingRescan() {
		t.Error("rescan command should queue a rescan request")
	}
}

func TestHandleLogLevelAppliesAndRepublishesInfo(t *testing.T) {
	client := newMockClient()
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, client)

	if err := s.handleLogLevel("mbus2mqtt/command/log_level", []byte("debug")); err != nil {
		t.Fatalf("handleLogLevel() = %v", err)
	}

	payload, err := s.info.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if want := `"log_level":"DEBUG"`; !strings.Contains(string(payload), want) {
		t.Errorf("info payload %s missing %s", payload, want)
	}
	if len(client.payloads("mbus2mqtt/bridge/info")) == 0 {
		t.Error("log level change should republish bridge info")
	}
}

func TestHandleLogLevelIgnoresInvalidPayload(t *testing.T) {
	client := newMockClient()
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, client)

	if err := s.handleLogLevel("mbus2mqtt/command/log_level", []byte("LOUD")); err != nil {
		t.Fatalf("invalid payloads must be ignored, got error: %v", err)
	}

	payload, err := s.info.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if want := `"log_level":"INFO"`; !strings.Contains(string(payload), want) {
		t.Errorf("info payload %s should keep level INFO", payload)
	}
	if len(client.payloads("mbus2mqtt/bridge/info")) != 0 {
		t.Error("ignored command should not republish bridge info")
	}
}

func TestHandlePollIntervalQueuesOverride(t *testing.T) {
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, newMockClient())

	if err := s.handlePollInterval("mbus2mqtt/command/poll_interval", []byte("120")); err != nil {
		t.Fatalf("handlePollInterval() = %v", err)
	}
	if got := <-s.intervalCh; got != 120*time.Second {
		t.Errorf("queued override = %v, want 120s", got)
	}
}

func TestHandlePollIntervalIgnoresInvalidPayload(t *testing.T) {
	s, _ := newTestScheduler(testConfig(), &mockTransport{}, newMockClient())

	for _, payload := range []string{"5", "notanumber", ""} {
		if err := s.handlePollInterval("mbus2mqtt/command/poll_interval", []byte(payload)); err != nil {
			t.Fatalf("invalid payloads must be ignored, got error: %v", err)
		}
	}

	select {
	case d := <-s.intervalCh:
		t.Errorf("unexpected queued override %v", d)
	default:
	}
	if got := s.EffectiveInterval(); got != 60*time.Second {
		t.Errorf("EffectiveInterval = %v, want 60s unchanged", got)
	}
}
