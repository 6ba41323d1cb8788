package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// M-Bus addressing and polling limits.
const (
	// AddressMin is the lowest valid M-Bus primary address.
	// Address 0 is valid but is the factory-default address, so polling it
	// generates a warning.
	AddressMin = 0

	// AddressMax is the highest valid M-Bus primary address.
	AddressMax = 254

	// PollIntervalMin and PollIntervalMax bound the poll interval in seconds,
	// both for the config file and for runtime overrides via MQTT.
	PollIntervalMin = 10
	PollIntervalMax = 3600
)

// validBaudRates are the baud rates supported by M-Bus serial endpoints.
var validBaudRates = []int{300, 2400, 9600}

// Config is the root configuration structure for mbus-bridge.
// All configuration is loaded from YAML and can be overridden by environment
// variables.
type Config struct {
	MBus          MBusConfig          `yaml:"mbus"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Polling       PollingConfig       `yaml:"polling"`
	Devices       []DeviceConfig      `yaml:"devices"`
	Availability  AvailabilityConfig  `yaml:"availability"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// MBusConfig contains M-Bus transport settings.
type MBusConfig struct {
	// Device is a serial device path (e.g. /dev/ttyUSB0) or an IPv4:port
	// TCP endpoint (e.g. 192.168.1.50:9999).
	Device string `yaml:"device"`

	// Baudrate applies to serial endpoints only. One of 300, 2400, 9600.
	Baudrate int `yaml:"baudrate"`

	// Timeout is the per-poll timeout in seconds.
	Timeout int `yaml:"timeout"`

	// ScanTimeout bounds a full bus scan in seconds. A degraded TCP scan of
	// the full primary address range can take close to twenty minutes.
	ScanTimeout int `yaml:"scan_timeout"`

	// RetryCount is the number of immediate retries after a failed poll
	// attempt within one cycle.
	RetryCount int `yaml:"retry_count"`

	// RetryDelay is the spacing between retries in seconds.
	RetryDelay int `yaml:"retry_delay"`

	// Autoscan enables the bus scan on startup.
	Autoscan bool `yaml:"autoscan"`

	// BinaryPath is the directory holding the libmbus CLI tools.
	// Empty means resolve via PATH.
	BinaryPath string `yaml:"binary_path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	BaseTopic string              `yaml:"base_topic"`
	Keepalive int                 `yaml:"keepalive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HomeAssistantConfig contains Home Assistant discovery settings.
type HomeAssistantConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// PollingConfig contains poll cycle settings.
type PollingConfig struct {
	// Interval is the poll interval in seconds. Runtime overrides via the
	// poll_interval command topic do not modify this value.
	Interval int `yaml:"interval"`

	// StartupDelay is the wait before the first scan/poll in seconds.
	StartupDelay int `yaml:"startup_delay"`
}

// DeviceConfig contains a statically configured M-Bus device.
// Configured devices are always present in the device table, even if never
// seen on the bus.
type DeviceConfig struct {
	// ID is the M-Bus primary address (0-254).
	ID int `yaml:"id"`

	// Name is an optional friendly name.
	Name string `yaml:"name"`

	// Enabled controls whether the device is polled. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Template forces a specific template file for this device.
	// A missing template named here fails startup.
	Template string `yaml:"template"`
}

// IsEnabled reports whether the device should be polled.
func (d DeviceConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// AvailabilityConfig contains device availability tracking settings.
type AvailabilityConfig struct {
	// TimeoutPolls is the number of consecutive failed polls before a
	// device transitions to offline.
	TimeoutPolls int `yaml:"timeout_polls"`
}

// TemplatesConfig contains entity-template settings.
type TemplatesConfig struct {
	// Dir is the user template directory. User templates take precedence
	// over the bundled set.
	Dir string `yaml:"dir"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MBUS2MQTT_SECTION_KEY
// For example: MBUS2MQTT_MBUS_DEVICE, MBUS2MQTT_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// mbus.device and mqtt.broker.host have no defaults and must be configured.
func defaultConfig() *Config {
	return &Config{
		MBus: MBusConfig{
			Baudrate:    2400,
			Timeout:     5,
			ScanTimeout: 1200,
			RetryCount:  3,
			RetryDelay:  1,
			Autoscan:    true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port: 1883,
			},
			QoS:       1,
			BaseTopic: "mbus2mqtt",
			Keepalive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		HomeAssistant: HomeAssistantConfig{
			Enabled:         false,
			DiscoveryPrefix: "homeassistant",
		},
		Polling: PollingConfig{
			Interval:     60,
			StartupDelay: 5,
		},
		Availability: AvailabilityConfig{
			TimeoutPolls: 3,
		},
		Templates: TemplatesConfig{
			Dir: "/data/templates",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9641",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// MBUS2MQTT_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	// M-Bus
	if v := os.Getenv("MBUS2MQTT_MBUS_DEVICE"); v != "" {
		cfg.MBus.Device = v
	}
	if v, ok := envInt("MBUS2MQTT_MBUS_BAUDRATE"); ok {
		cfg.MBus.Baudrate = v
	}
	if v, ok := envInt("MBUS2MQTT_MBUS_TIMEOUT"); ok {
		cfg.MBus.Timeout = v
	}
	if v, ok := envBool("MBUS2MQTT_MBUS_AUTOSCAN"); ok {
		cfg.MBus.Autoscan = v
	}

	// MQTT
	if v := os.Getenv("MBUS2MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v, ok := envInt("MBUS2MQTT_MQTT_PORT"); ok {
		cfg.MQTT.Broker.Port = v
	}
	if v := os.Getenv("MBUS2MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MBUS2MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("MBUS2MQTT_MQTT_BASE_TOPIC"); v != "" {
		cfg.MQTT.BaseTopic = v
	}

	// Home Assistant
	if v, ok := envBool("MBUS2MQTT_HOMEASSISTANT_ENABLED"); ok {
		cfg.HomeAssistant.Enabled = v
	}

	// Polling
	if v, ok := envInt("MBUS2MQTT_POLLING_INTERVAL"); ok {
		cfg.Polling.Interval = v
	}
	if v, ok := envInt("MBUS2MQTT_POLLING_STARTUP_DELAY"); ok {
		cfg.Polling.StartupDelay = v
	}

	// Availability
	if v, ok := envInt("MBUS2MQTT_AVAILABILITY_TIMEOUT_POLLS"); ok {
		cfg.Availability.TimeoutPolls = v
	}

	// Logging
	if v := os.Getenv("MBUS2MQTT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// M-Bus validation
	if c.MBus.Device == "" {
		errs = append(errs, "mbus.device is required")
	}
	if !isTCPEndpoint(c.MBus.Device) && !validBaudRate(c.MBus.Baudrate) {
		errs = append(errs, fmt.Sprintf("mbus.baudrate must be one of %v", validBaudRates))
	}
	if c.MBus.Timeout < 1 {
		errs = append(errs, "mbus.timeout must be at least 1 second")
	}
	if c.MBus.RetryCount < 0 {
		errs = append(errs, "mbus.retry_count must not be negative")
	}
	if c.MBus.RetryDelay < 0 {
		errs = append(errs, "mbus.retry_delay must not be negative")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required")
	}

	// Polling validation
	if c.Polling.Interval < PollIntervalMin || c.Polling.Interval > PollIntervalMax {
		errs = append(errs, fmt.Sprintf("polling.interval must be between %d and %d seconds",
			PollIntervalMin, PollIntervalMax))
	}
	if c.Polling.StartupDelay < 0 {
		errs = append(errs, "polling.startup_delay must not be negative")
	}

	// Availability validation
	if c.Availability.TimeoutPolls < 1 {
		errs = append(errs, "availability.timeout_polls must be at least 1")
	}

	// Device validation
	seen := make(map[int]bool)
	for _, d := range c.Devices {
		if d.ID < AddressMin || d.ID > AddressMax {
			errs = append(errs, fmt.Sprintf("devices: id %d outside valid range %d-%d",
				d.ID, AddressMin, AddressMax))
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices: duplicate id %d", d.ID))
		}
		seen[d.ID] = true
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warning, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DeviceByID returns the static configuration for a bus address, if present.
func (c *Config) DeviceByID(id int) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// GetPollInterval returns the configured poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.Interval) * time.Second
}

// GetStartupDelay returns the configured startup delay as a Duration.
func (c *Config) GetStartupDelay() time.Duration {
	return time.Duration(c.Polling.StartupDelay) * time.Second
}

// GetPollTimeout returns the per-poll timeout as a Duration.
func (c *Config) GetPollTimeout() time.Duration {
	return time.Duration(c.MBus.Timeout) * time.Second
}

// GetScanTimeout returns the bus scan timeout as a Duration.
func (c *Config) GetScanTimeout() time.Duration {
	return time.Duration(c.MBus.ScanTimeout) * time.Second
}

// GetRetryDelay returns the retry spacing as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.MBus.RetryDelay) * time.Second
}

// validBaudRate reports whether rate is a supported M-Bus baud rate.
func validBaudRate(rate int) bool {
	for _, r := range validBaudRates {
		if r == rate {
			return true
		}
	}
	return false
}

// isTCPEndpoint reports whether device looks like an IPv4:port endpoint
// rather than a serial device path. The mbus package performs the strict
// parse; this check only decides whether baudrate validation applies.
func isTCPEndpoint(device string) bool {
	host, port, ok := strings.Cut(device, ":")
	if !ok || host == "" || port == "" {
		return false
	}
	if strings.HasPrefix(device, "/") {
		return false
	}
	_, err := strconv.Atoi(port)
	return err == nil
}
