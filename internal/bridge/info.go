package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Info holds the bridge-level counters published to <base>/bridge/info.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the scheduler writes and
//     the command handlers read/write concurrently.
type Info struct {
	version   string
	startTime time.Time

	mu               sync.Mutex
	discovered       int
	online           int
	lastScan         time.Time
	lastPollDuration time.Duration
	logLevel         string
	pollInterval     int
}

// infoPayload is the JSON document published to the info topic.
type infoPayload struct {
	Version            string `json:"version"`
	DiscoveredDevices  int    `json:"discovered_devices"`
	OnlineDevices      int    `json:"online_devices"`
	Uptime             string `json:"uptime"`
	LogLevel           string `json:"log_level"`
	PollInterval       int    `json:"poll_interval"`
	LastScan           string `json:"last_scan,omitempty"`
	LastPollDurationMS int64  `json:"last_poll_duration_ms"`
}

// NewInfo creates bridge info state starting its uptime clock now.
func NewInfo(version, logLevel string, pollInterval int) *Info {
	return &Info{
		version:      version,
		startTime:    time.Now(),
		logLevel:     logLevel,
		pollInterval: pollInterval,
	}
}

// SetDeviceCounts updates the discovered and online device counters.
func (i *Info) SetDeviceCounts(discovered, online int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.discovered = discovered
	i.online = online
}

// SetLastScan records a completed scan.
func (i *Info) SetLastScan(t time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastScan = t
}

// SetLastPollDuration records the duration of the most recent poll cycle.
func (i *Info) SetLastPollDuration(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastPollDuration = d
}

// SetLogLevel records the effective log level.
func (i *Info) SetLogLevel(level string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.logLevel = level
}

// SetPollInterval records the effective poll interval in seconds.
func (i *Info) SetPollInterval(seconds int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pollInterval = seconds
}

// PollInterval returns the effective poll interval in seconds.
func (i *Info) PollInterval() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pollInterval
}

// Payload renders the info document.
func (i *Info) Payload() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	p := infoPayload{
		Version:            i.version,
		DiscoveredDevices:  i.discovered,
		OnlineDevices:      i.online,
		Uptime:             formatUptime(time.Since(i.startTime)),
		LogLevel:           i.logLevel,
		PollInterval:       i.pollInterval,
		LastPollDurationMS: i.lastPollDuration.Milliseconds(),
	}
	if !i.lastScan.IsZero() {
		p.LastScan = i.lastScan.UTC().Format(time.RFC3339)
	}

	return json.Marshal(p)
}

// formatUptime renders a duration the way meters read it: largest units
// first, finer units dropped as uptime grows.
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
