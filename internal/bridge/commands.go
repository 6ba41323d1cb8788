package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/metrics"
)

const (
	commandRescan       = "rescan"
	commandLogLevel     = "log_level"
	commandPollInterval = "poll_interval"
)

// RegisterCommands subscribes the runtime command topics. Handlers run on
// the MQTT client's goroutines; they only validate payloads and hand work
// to the scheduler, so a command never blocks behind a bus operation.
//
// Invalid payloads are logged and ignored; they never return an error to
// the MQTT layer.
func (s *Scheduler) RegisterCommands() error {
	qos := byte(s.cfg.MQTT.QoS)

	if err := s.client.Subscribe(s.topics.CommandRescan(), qos, s.handleRescan); err != nil {
		return fmt.Errorf("subscribing rescan command: %w", err)
	}
	if err := s.client.Subscribe(s.topics.CommandLogLevel(), qos, s.handleLogLevel); err != nil {
		return fmt.Errorf("subscribing log level command: %w", err)
	}
	if err := s.client.Subscribe(s.topics.CommandPollInterval(), qos, s.handlePollInterval); err != nil {
		return fmt.Errorf("subscribing poll interval command: %w", err)
	}

	return nil
}

// handleRescan queues a rescan. Any payload triggers it.
func (s *Scheduler) handleRescan(topic string, payload []byte) error {
	s.logger.Info("rescan requested via mqtt")
	s.RequestRescan()
	metrics.IncCommand(commandRescan, true)
	return nil
}

// handleLogLevel applies a runtime log level change.
func (s *Scheduler) handleLogLevel(topic string, payload []byte) error {
	level, err := parseLogLevelCommand(payload)
	if err != nil {
		s.logger.Warn("ignoring invalid log level command",
			"payload", string(payload),
			"error", err,
		)
		metrics.IncCommand(commandLogLevel, false)
		return nil
	}

	s.logger.SetLevel(logging.ParseLevel(level))
	s.info.SetLogLevel(level)
	s.logger.Info("log level changed via mqtt", "level", level)
	s.publishInfo()
	metrics.IncCommand(commandLogLevel, true)
	return nil
}

// handlePollInterval queues a runtime poll interval override.
func (s *Scheduler) handlePollInterval(topic string, payload []byte) error {
	seconds, err := parsePollIntervalCommand(payload)
	if err != nil {
		s.logger.Warn("ignoring invalid poll interval command",
			"payload", string(payload),
			"error", err,
		)
		metrics.IncCommand(commandPollInterval, false)
		return nil
	}

	if err := s.OverridePollInterval(seconds); err != nil {
		s.logger.Warn("ignoring invalid poll interval command",
			"payload", string(payload),
			"error", err,
		)
		metrics.IncCommand(commandPollInterval, false)
		return nil
	}

	s.logger.Info("poll interval override queued", "seconds", seconds)
	metrics.IncCommand(commandPollInterval, true)
	return nil
}

// parseLogLevelCommand validates a log level payload and returns the
// canonical upper-case level name.
func parseLogLevelCommand(payload []byte) (string, error) {
	level := strings.ToUpper(strings.TrimSpace(string(payload)))
	switch level {
	case "DEBUG", "INFO", "WARNING", "ERROR":
		return level, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}

// parsePollIntervalCommand validates a poll interval payload and returns
// the interval in seconds.
func parsePollIntervalCommand(payload []byte) (int, error) {
	text := strings.TrimSpace(string(payload))
	seconds, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPollInterval, text)
	}
	if seconds < config.PollIntervalMin || seconds > config.PollIntervalMax {
		return 0, fmt.Errorf("%w: %d outside %d-%d",
			ErrInvalidPollInterval, seconds, config.PollIntervalMin, config.PollIntervalMax)
	}
	return seconds, nil
}
