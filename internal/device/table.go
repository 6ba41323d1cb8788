package device

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

// Table is the in-memory device table.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The polling scheduler is the
//     sole mutator; concurrent readers see a consistent view.
type Table struct {
	mu           sync.RWMutex
	devices      map[int]*Device
	timeoutPolls int
}

// NewTable creates an empty device table.
//
// timeoutPolls is the consecutive-failure threshold at which a device
// transitions to offline.
func NewTable(timeoutPolls int) *Table {
	return &Table{
		devices:      make(map[int]*Device),
		timeoutPolls: timeoutPolls,
	}
}

// AddConfigured inserts a statically configured device. Configured devices
// exist in the table even if never seen on the bus, starting offline with
// no reading.
//
// Returns the device and true when it was newly added.
func (t *Table) AddConfigured(cfg config.DeviceConfig) (*Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.devices[cfg.ID]; ok {
		existing.Name = cfg.Name
		existing.Enabled = cfg.IsEnabled()
		existing.TemplateName = cfg.Template
		existing.Configured = true
		return existing, false
	}

	d := newDevice(cfg.ID, t.timeoutPolls)
	d.Name = cfg.Name
	d.Enabled = cfg.IsEnabled()
	d.TemplateName = cfg.Template
	d.Configured = true
	t.devices[cfg.ID] = d
	return d, true
}

// AddDiscovered inserts a device found by a bus scan. Re-discovering a known
// address is a no-op that preserves runtime state.
//
// Returns the device and true when it was newly added.
func (t *Table) AddDiscovered(address int) (*Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.devices[address]; ok {
		return existing, false
	}

	d := newDevice(address, t.timeoutPolls)
	t.devices[address] = d
	return d, true
}

// Get returns the device at the given bus address.
func (t *Table) Get(address int) (*Device, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.devices[address]
	if !ok {
		return nil, fmt.Errorf("%w: address %d", ErrNotFound, address)
	}
	return d, nil
}

// RecordSuccess applies a successful poll to the device at address and
// reports whether its availability changed (offline to online).
func (t *Table) RecordSuccess(address int, reading *mbus.Reading, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices[address]
	if !ok {
		return false, fmt.Errorf("%w: address %d", ErrNotFound, address)
	}
	return d.recordSuccess(reading, now), nil
}

// RecordFailure applies a failed poll to the device at address and reports
// whether its availability changed (online to offline). The transition fires
// exactly once when the threshold is reached; further failures saturate.
func (t *Table) RecordFailure(address int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices[address]
	if !ok {
		return false, fmt.Errorf("%w: address %d", ErrNotFound, address)
	}
	return d.recordFailure(), nil
}

// MarkDiscoveryPublished records that the device's discovery configs were
// published this run.
func (t *Table) MarkDiscoveryPublished(address int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices[address]
	if !ok {
		return fmt.Errorf("%w: address %d", ErrNotFound, address)
	}
	d.DiscoveryPublished = true
	return nil
}

// All returns every device ordered by bus address.
func (t *Table) All() []*Device {
	t.mu.RLock()
	defer t.mu.RUnlock()

	devices := make([]*Device, 0, len(t.devices))
	for _, d := range t.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Address < devices[j].Address
	})
	return devices
}

// PollSet returns the enabled devices ordered by bus address. Disabled
// devices stay in the table but are never polled.
func (t *Table) PollSet() []*Device {
	all := t.All()
	set := make([]*Device, 0, len(all))
	for _, d := range all {
		if d.Enabled {
			set = append(set, d)
		}
	}
	return set
}

// Count returns the number of devices in the table.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.devices)
}

// OnlineCount returns the number of devices currently online.
func (t *Table) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, d := range t.devices {
		if d.IsOnline() {
			count++
		}
	}
	return count
}
