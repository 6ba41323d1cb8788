package device

import (
	"fmt"
	"time"

	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

// Availability is the published availability state of a device.
type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityOffline Availability = "offline"
)

// Device is one entry in the device table.
//
// Fields are mutated only through Table methods; callers outside the polling
// path must not modify them directly.
type Device struct {
	// Address is the M-Bus primary address (0-254).
	Address int

	// Name is the friendly name from config, if any.
	Name string

	// Enabled devices are polled; disabled devices stay in the table with
	// their config identity but are skipped by the scheduler.
	Enabled bool

	// TemplateName forces a specific template file for this device.
	TemplateName string

	// Configured marks devices that come from the config file rather than
	// a bus scan.
	Configured bool

	// Identity learned from the last successful poll. Zero until the
	// device answers for the first time.
	Identity mbus.SlaveInfo

	// LastReading is the snapshot from the most recent successful poll.
	// A failed poll never merges with this snapshot.
	LastReading *mbus.Reading

	// LastSeen is the time of the most recent successful poll.
	LastSeen time.Time

	// DiscoveryPublished marks devices whose Home Assistant discovery
	// configs were already published this run.
	DiscoveryPublished bool

	// consecutiveFails drives availability. Held at the threshold for
	// devices that have never answered.
	consecutiveFails int
	timeoutPolls     int
}

// newDevice returns a Device in the initial offline state.
func newDevice(address, timeoutPolls int) *Device {
	return &Device{
		Address:          address,
		Enabled:          true,
		consecutiveFails: timeoutPolls,
		timeoutPolls:     timeoutPolls,
	}
}

// Availability derives the availability state from the failure counter.
func (d *Device) Availability() Availability {
	if d.consecutiveFails >= d.timeoutPolls {
		return AvailabilityOffline
	}
	return AvailabilityOnline
}

// IsOnline reports whether the device is currently online.
func (d *Device) IsOnline() bool {
	return d.Availability() == AvailabilityOnline
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (d *Device) ConsecutiveFailures() int {
	return d.consecutiveFails
}

// recordSuccess applies a successful poll and reports whether the
// availability state changed.
func (d *Device) recordSuccess(reading *mbus.Reading, now time.Time) bool {
	wasOnline := d.IsOnline()

	d.consecutiveFails = 0
	d.LastReading = reading
	d.LastSeen = now
	d.Identity = reading.Slave

	return !wasOnline
}

// recordFailure applies a failed poll and reports whether the availability
// state changed. The counter saturates at the threshold so repeated
// failures produce at most one transition.
func (d *Device) recordFailure() bool {
	wasOnline := d.IsOnline()

	if d.consecutiveFails < d.timeoutPolls {
		d.consecutiveFails++
	}

	return wasOnline && !d.IsOnline()
}

// ObjectID returns the identifier used in MQTT topics: the serial number
// once known, otherwise the bus address.
func (d *Device) ObjectID() string {
	if d.Identity.ID != "" {
		return d.Identity.ID
	}
	return fmt.Sprintf("%d", d.Address)
}

// DisplayName returns the human-readable device name.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Identity.ProductName != "" && d.Identity.ID != "" {
		return fmt.Sprintf("%s (%s)", d.Identity.ProductName, d.Identity.ID)
	}
	return fmt.Sprintf("M-Bus Device %d", d.Address)
}
