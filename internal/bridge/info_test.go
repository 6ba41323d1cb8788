package bridge

import (
	"encoding/json"
	"testing"
	"time"
)

func TestInfoPayload(t *testing.T) {
	info := NewInfo("1.2.0", "INFO", 60)
	info.SetDeviceCounts(3, 2)
	info.SetLastPollDuration(1500 * time.Millisecond)

	payload, err := info.Payload()
	if err != nil {
		t.Fatalf("Payload() = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	if got["version"] != "1.2.0" {
		t.Errorf("version = %v, want 1.2.0", got["version"])
	}
	if got["discovered_devices"] != float64(3) {
		t.Errorf("discovered_devices = %v, want 3", got["discovered_devices"])
	}
	if got["online_devices"] != float64(2) {
		t.Errorf("online_devices = %v, want 2", got["online_devices"])
	}
	if got["log_level"] != "INFO" {
		t.Errorf("log_level = %v, want INFO", got["log_level"])
	}
	if got["poll_interval"] != float64(60) {
		t.Errorf("poll_interval = %v, want 60", got["poll_interval"])
	}
	if got["last_poll_duration_ms"] != float64(1500) {
		t.Errorf("last_poll_duration_ms = %v, want 1500", got["last_poll_duration_ms"])
	}

	// No scan has completed yet, so the field is absent entirely.
	if _, present := got["last_scan"]; present {
		t.Error("last_scan should be omitted before the first scan")
	}
}

func TestInfoPayloadLastScan(t *testing.T) {
	info := NewInfo("1.2.0", "INFO", 60)
	scanned := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	info.SetLastScan(scanned)

	payload, err := info.Payload()
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["last_scan"] != "2026-08-25T10:30:00Z" {
		t.Errorf("last_scan = %v, want 2026-08-25T10:30:00Z", got["last_scan"])
	}
}

func TestInfoSetters(t *testing.T) {
	info := NewInfo("dev", "INFO", 60)

	info.SetLogLevel("DEBUG")
	info.SetPollInterval(300)

	if got := info.PollInterval(); got != 300 {
		t.Errorf("PollInterval() = %d, want 300", got)
	}

	payload, err := info.Payload()
	if err != nil {
		t.Fatal(err)
	}
	var got infoPayload
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.LogLevel != "DEBUG" {
		t.Errorf("log_level = %s, want DEBUG", got.LogLevel)
	}
	if got.PollInterval != 300 {
		t.Errorf("poll_interval = %d, want 300", got.PollInterval)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{0, "0s"},
		{5*time.Minute + 3*time.Second, "5m 3s"},
		{2*time.Hour + 15*time.Minute + 9*time.Second, "2h 15m 9s"},
		{26 * time.Hour, "1d 2h 0m"},
		{73*time.Hour + 5*time.Minute, "3d 1h 5m"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
