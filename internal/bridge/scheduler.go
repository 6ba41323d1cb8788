package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/mbus-bridge/internal/device"
	"github.com/nerrad567/mbus-bridge/internal/homeassistant"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/mbus-bridge/internal/mbus"
	"github.com/nerrad567/mbus-bridge/internal/template"
)

// State is the scheduler's current phase.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StatePolling  State = "polling"
	StateSleeping State = "sleeping"
)

// MQTTClient is the MQTT surface the scheduler needs.
type MQTTClient interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// DiscoveryPublisher publishes Home Assistant discovery configs.
type DiscoveryPublisher interface {
	Enabled() bool
	PublishBridgeDiscovery() error
	PublishDeviceDiscovery(dev *device.Device, tmpl *template.Template) error
}

// TemplateResolver picks a template for a device identity.
type TemplateResolver interface {
	Resolve(staticName string, slave mbus.SlaveInfo) (*template.Template, error)
}

// Scheduler owns the scan/poll loop and all device table mutations.
//
// Thread Safety:
//   - Run executes on a single goroutine; the bus is never used
//     concurrently.
//   - RequestRescan and OverridePollInterval are safe to call from MQTT
//     handler goroutines and never block on bus operations.
type Scheduler struct {
	cfg       *config.Config
	transport mbus.Transport
	table     *device.Table
	client    MQTTClient
	topics    mqtt.Topics
	discovery DiscoveryPublisher
	resolver  TemplateResolver
	logger    *logging.Logger
	info      *Info

	mu           sync.RWMutex
	state        State
	pollInterval time.Duration

	// rescanCh coalesces rescan requests: capacity 1, drained when a
	// scan completes so requests during a scan are no-ops.
	rescanCh chan struct{}

	// intervalCh is the poll-interval override mailbox.
	intervalCh chan time.Duration

	// reconnectCh queues a retained-document republish after an MQTT
	// reconnect. The republish itself runs on the scheduler goroutine,
	// which owns the device table.
	reconnectCh chan struct{}
}

// NewScheduler wires the scheduler. The device table is seeded with the
// statically configured devices.
func NewScheduler(
	cfg *config.Config,
	transport mbus.Transport,
	table *device.Table,
	client MQTTClient,
	discovery DiscoveryPublisher,
	resolver TemplateResolver,
	logger *logging.Logger,
	info *Info,
) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		transport:    transport,
		table:        table,
		client:       client,
		topics:       mqtt.NewTopics(cfg.MQTT.BaseTopic),
		discovery:    discovery,
		resolver:     resolver,
		logger:       logger,
		info:         info,
		state:        StateIdle,
		pollInterval: cfg.GetPollInterval(),
		rescanCh:     make(chan struct{}, 1),
		intervalCh:   make(chan time.Duration, 1),
		reconnectCh:  make(chan struct{}, 1),
	}
}

// State returns the scheduler's current phase.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// EffectiveInterval returns the poll interval currently in force,
// including any runtime override.
func (s *Scheduler) EffectiveInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollInterval
}

// RequestRescan queues a rescan for the next decision point. Requests
// coalesce: while a rescan is pending or a scan is running, further
// requests are no-ops.
func (s *Scheduler) RequestRescan() {
	select {
	case s.rescanCh <- struct{}{}:
	default:
	}
}

// OverridePollInterval queues a runtime poll-interval override. The value
// must be within the configured bounds; the override is applied at the
// scheduler's next decision point and is never persisted.
func (s *Scheduler) OverridePollInterval(seconds int) error {
	if seconds < config.PollIntervalMin || seconds > config.PollIntervalMax {
		return ErrInvalidPollInterval
	}

	d := time.Duration(seconds) * time.Second
	// Replace any pending override; the newest value wins.
	for {
		select {
		case s.intervalCh <- d:
			return nil
		default:
			select {
			case <-s.intervalCh:
			default:
			}
		}
	}
}

// Run executes the scheduler until ctx is cancelled.
//
// Startup: seed configured devices, publish bridge discovery, wait the
// startup delay, then scan if autoscan is enabled. After that the loop is
// rescan-check, poll cycle, info publish, interruptible sleep.
func (s *Scheduler) Run(ctx context.Context) error {
	s.seedConfiguredDevices()

	if err := s.discovery.PublishBridgeDiscovery(); err != nil {
		s.logger.Warn("bridge discovery publish failed", "error", err)
	}
	s.publishInfo()

	if delay := s.cfg.GetStartupDelay(); delay > 0 {
		s.logger.Info("waiting before first bus operation", "delay", delay)
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-time.After(delay):
		}
	}

	if s.cfg.MBus.Autoscan {
		s.runScan(ctx)
	}

	for ctx.Err() == nil {
		cycleStart := time.Now()

		if s.takePendingReconnect() {
			s.republishRetained()
		}
		if s.takePendingRescan() {
			s.runScan(ctx)
		}

		s.pollCycle(ctx)
		s.finishCycle(cycleStart)

		if !s.sleep(ctx, cycleStart) {
			break
		}
	}

	s.shutdown()
	return nil
}

// seedConfiguredDevices populates the table from config. Configured
// devices exist even if never seen on the bus; their initial offline
// availability is published retained so consumers see a state immediately.
func (s *Scheduler) seedConfiguredDevices() {
	for _, dc := range s.cfg.Devices {
		dev, created := s.table.AddConfigured(dc)
		if !created {
			continue
		}
		s.logger.Debug("added configured device", "address", dc.ID, "enabled", dev.Enabled)
		s.publishAvailability(dev)
	}
	s.info.SetDeviceCounts(s.table.Count(), s.table.OnlineCount())
}

// runScan performs one bus scan. Failures are logged, never fatal; the
// existing poll set persists.
func (s *Scheduler) runScan(ctx context.Context) {
	s.setState(StateScanning)
	s.logger.Info("scanning bus for devices")

	start := time.Now()
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.GetScanTimeout())
	addresses, err := s.transport.Scan(scanCtx)
	cancel()

	metrics.ObserveScan(err == nil, time.Since(start))

	if err != nil {
		s.logger.Error("bus scan failed", "error", err, "duration", time.Since(start))
	} else {
		for _, addr := range addresses {
			dev, created := s.table.AddDiscovered(addr)
			if created {
				s.logger.Info("discovered device", "address", addr)
				s.publishAvailability(dev)
			}
		}
		s.info.SetLastScan(time.Now())
		s.logger.Info("scan complete",
			"found", len(addresses),
			"devices", s.table.Count(),
			"duration", time.Since(start),
		)
	}

	// Requests that arrived while scanning coalesce into this scan.
	s.takePendingRescan()
}

// pollCycle polls every enabled device sequentially.
func (s *Scheduler) pollCycle(ctx context.Context) {
	s.setState(StatePolling)

	for _, dev := range s.table.PollSet() {
		if ctx.Err() != nil {
			return
		}
		s.pollDevice(ctx, dev)
	}
}

// pollDevice polls one device with the per-cycle retry policy and applies
// the outcome to the availability tracker, publishing at most one
// availability edge.
func (s *Scheduler) pollDevice(ctx context.Context, dev *device.Device) {
	attempts := 1 + s.cfg.MBus.RetryCount

	var reading *mbus.Reading
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.GetRetryDelay()):
			}
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.cfg.GetPollTimeout())
		reading, err = s.transport.Poll(pollCtx, dev.Address)
		cancel()
		if err == nil {
			break
		}
		s.logger.Debug("poll attempt failed",
			"address", dev.Address,
			"attempt", attempt,
			"error", err,
		)
	}

	if err != nil {
		s.recordFailure(dev)
		return
	}
	s.recordSuccess(dev, reading)
}

// recordSuccess applies a successful poll: availability, first-poll
// discovery, and the retained state publish.
func (s *Scheduler) recordSuccess(dev *device.Device, reading *mbus.Reading) {
	metrics.IncPoll(true)

	firstReading := dev.LastReading == nil
	cameOnline, err := s.table.RecordSuccess(dev.Address, reading, time.Now())
	if err != nil {
		s.logger.Error("recording poll success", "address", dev.Address, "error", err)
		return
	}

	if firstReading && s.discovery.Enabled() && !dev.DiscoveryPublished {
		tmpl := s.resolveTemplate(dev)
		if err := s.discovery.PublishDeviceDiscovery(dev, tmpl); err != nil {
			s.logger.Warn("device discovery publish failed",
				"device", dev.ObjectID(),
				"error", err,
			)
		} else if err := s.table.MarkDiscoveryPublished(dev.Address); err != nil {
			s.logger.Error("recording discovery publish", "address", dev.Address, "error", err)
		}
	}

	payload, err := homeassistant.StatePayload(reading)
	if err != nil {
		s.logger.Error("encoding device state", "device", dev.ObjectID(), "error", err)
	} else if err := s.client.PublishRetained(s.topics.DeviceState(dev.ObjectID()), payload); err != nil {
		s.logger.Warn("state publish failed", "device", dev.ObjectID(), "error", err)
	}

	if cameOnline {
		s.logger.Info("device online", "address", dev.Address, "device", dev.ObjectID())
		s.publishAvailability(dev)
	}
}

// recordFailure applies a failed poll and publishes the offline edge when
// the failure threshold is crossed.
func (s *Scheduler) recordFailure(dev *device.Device) {
	metrics.IncPoll(false)

	wentOffline, err := s.table.RecordFailure(dev.Address)
	if err != nil {
		s.logger.Error("recording poll failure", "address", dev.Address, "error", err)
		return
	}

	s.logger.Warn("poll failed",
		"address", dev.Address,
		"consecutive_failures", dev.ConsecutiveFailures(),
	)

	if wentOffline {
		s.logger.Warn("device offline", "address", dev.Address, "device", dev.ObjectID())
		s.publishAvailability(dev)
	}
}

// resolveTemplate picks the device's template, falling back to generic
// entities (nil) when nothing matches or the matched template is broken.
func (s *Scheduler) resolveTemplate(dev *device.Device) *template.Template {
	tmpl, err := s.resolver.Resolve(dev.TemplateName, dev.Identity)
	if err != nil {
		if errors.Is(err, template.ErrNoMatch) {
			s.logger.Debug("no template match, using generic entities",
				"device", dev.ObjectID(),
				"manufacturer", dev.Identity.Manufacturer,
			)
		} else {
			s.logger.Warn("template resolution failed, using generic entities",
				"device", dev.ObjectID(),
				"error", err,
			)
		}
		return nil
	}
	return tmpl
}

// finishCycle updates counters, gauges and the retained info document.
func (s *Scheduler) finishCycle(cycleStart time.Time) {
	duration := time.Since(cycleStart)
	s.info.SetLastPollDuration(duration)
	s.info.SetDeviceCounts(s.table.Count(), s.table.OnlineCount())
	metrics.ObservePollCycle(duration)
	metrics.SetDeviceCounts(s.table.Count(), s.table.OnlineCount())
	s.publishInfo()
}

// sleep waits out the remainder of the poll interval. It returns false
// when ctx was cancelled. A rescan request truncates the sleep (the
// request is re-queued for the loop top); an interval override re-arms
// the wait against the new interval, measured from the cycle start; a
// reconnect republish runs in place without ending the sleep.
func (s *Scheduler) sleep(ctx context.Context, cycleStart time.Time) bool {
	s.setState(StateSleeping)

	deadline := cycleStart.Add(s.EffectiveInterval())
	wait := time.Until(deadline)
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false

		case <-timer.C:
			return true

		case <-s.rescanCh:
			s.RequestRescan()
			return true

		case <-s.reconnectCh:
			// Republish without ending the sleep; the timer stays armed.
			s.republishRetained()

		case d := <-s.intervalCh:
			s.applyInterval(d)
			deadline = cycleStart.Add(d)
			if !timer.Stop() {
				<-timer.C
			}
			wait := time.Until(deadline)
			if wait <= 0 {
				return true
			}
			timer.Reset(wait)
		}
	}
}

// takePendingRescan consumes a pending rescan request, if any.
func (s *Scheduler) takePendingRescan() bool {
	select {
	case <-s.rescanCh:
		return true
	default:
		return false
	}
}

// applyInterval makes a queued override the effective interval.
func (s *Scheduler) applyInterval(d time.Duration) {
	s.mu.Lock()
	s.pollInterval = d
	s.mu.Unlock()

	s.info.SetPollInterval(int(d.Seconds()))
	s.logger.Info("poll interval changed", "interval", d)
	s.publishInfo()
}

// publishAvailability publishes the device's retained availability state.
func (s *Scheduler) publishAvailability(dev *device.Device) {
	topic := s.topics.DeviceAvailability(dev.ObjectID())
	if err := s.client.PublishRetained(topic, []byte(dev.Availability())); err != nil {
		s.logger.Warn("availability publish failed", "device", dev.ObjectID(), "error", err)
	}
}

// publishInfo publishes the retained bridge info document.
func (s *Scheduler) publishInfo() {
	payload, err := s.info.Payload()
	if err != nil {
		s.logger.Error("encoding bridge info", "error", err)
		return
	}
	if err := s.client.PublishRetained(s.topics.BridgeInfo(), payload); err != nil {
		s.logger.Warn("bridge info publish failed", "error", err)
	}
}

// HandleReconnect queues a republish of the retained documents after an
// MQTT reconnect. Safe to call from the MQTT client's goroutines: only
// the request crosses goroutines, the republish itself runs at the
// scheduler's next decision point, so device state is never read off the
// scheduler goroutine. Requests coalesce like rescans.
func (s *Scheduler) HandleReconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

// takePendingReconnect consumes a pending reconnect request, if any.
func (s *Scheduler) takePendingReconnect() bool {
	select {
	case <-s.reconnectCh:
		return true
	default:
		return false
	}
}

// republishRetained republishes the retained documents lost to a broker
// restart: bridge discovery, known-device discovery, availability and
// info. Runs on the scheduler goroutine only.
func (s *Scheduler) republishRetained() {
	s.logger.Info("republishing retained state after reconnect")

	if err := s.discovery.PublishBridgeDiscovery(); err != nil {
		s.logger.Warn("bridge discovery publish failed", "error", err)
	}

	for _, dev := range s.table.All() {
		if dev.Enabled && dev.LastReading != nil && dev.DiscoveryPublished {
			if err := s.discovery.PublishDeviceDiscovery(dev, s.resolveTemplate(dev)); err != nil {
				s.logger.Warn("device discovery publish failed",
					"device", dev.ObjectID(),
					"error", err,
				)
			}
		}
		s.publishAvailability(dev)
	}

	s.publishInfo()
}

// shutdown publishes offline availability for every device currently
// online. The bridge's own offline state is published by the MQTT client
// on Close.
func (s *Scheduler) shutdown() {
	s.setState(StateIdle)
	s.logger.Info("scheduler stopping, marking online devices offline")

	for _, dev := range s.table.All() {
		if dev.IsOnline() {
			topic := s.topics.DeviceAvailability(dev.ObjectID())
			if err := s.client.PublishRetained(topic, []byte(device.AvailabilityOffline)); err != nil {
				s.logger.Warn("shutdown availability publish failed",
					"device", dev.ObjectID(),
					"error", err,
				)
			}
		}
	}
}
