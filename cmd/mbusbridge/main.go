// mbus-bridge - M-Bus to MQTT bridge
//
// Polls M-Bus metering devices through the libmbus CLI tools and publishes
// readings, availability and Home Assistant discovery documents over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/mbus-bridge/internal/bridge"
	"github.com/nerrad567/mbus-bridge/internal/device"
	"github.com/nerrad567/mbus-bridge/internal/homeassistant"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/mbus-bridge/internal/mbus"
	"github.com/nerrad567/mbus-bridge/internal/template"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mbus-bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Load entity templates. A static template named in config that does
	// not resolve is a startup failure, not a runtime surprise.
	resolver, err := template.NewResolver(cfg.Templates)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	resolver.SetLogger(log)
	if err := resolver.ValidateStatic(staticTemplateNames(cfg)); err != nil {
		return fmt.Errorf("validating device templates: %w", err)
	}
	log.Info("templates loaded", "user_dir", cfg.Templates.Dir)

	// Create the M-Bus transport
	transport, err := mbus.NewCLITransport(cfg.MBus)
	if err != nil {
		return fmt.Errorf("creating M-Bus transport: %w", err)
	}
	transport.SetLogger(log)
	log.Info("M-Bus transport ready",
		"endpoint", cfg.MBus.Device,
		"baudrate", cfg.MBus.Baudrate,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"base_topic", cfg.MQTT.BaseTopic,
	)

	// Start the metrics listener (optional)
	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			if serveErr := metrics.Serve(ctx, cfg.Metrics.Listen); serveErr != nil {
				log.Error("metrics listener failed", "error", serveErr)
			}
		}()
		log.Info("metrics listener started", "listen", cfg.Metrics.Listen)
	}

	// Wire the scheduler
	table := device.NewTable(cfg.Availability.TimeoutPolls)
	discovery := homeassistant.NewDiscovery(mqttClient, mqttClient.Topics(), cfg.HomeAssistant, version, log)
	info := bridge.NewInfo(version, logging.LevelName(logging.ParseLevel(cfg.Logging.Level)), cfg.Polling.Interval)
	scheduler := bridge.NewScheduler(cfg, transport, table, mqttClient, discovery, resolver, log, info)

	if err := scheduler.RegisterCommands(); err != nil {
		return fmt.Errorf("subscribing command topics: %w", err)
	}
	log.Info("command topics subscribed")

	// Retained documents are lost to late subscribers only if the broker
	// restarted; queue a republish after every reconnect. The scheduler
	// performs it at its next decision point.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		scheduler.HandleReconnect()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("initialisation complete, starting scheduler")

	// The scheduler blocks until shutdown; it marks online devices offline
	// on the way out, then the deferred MQTT close publishes the bridge's
	// own offline state.
	if err := scheduler.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	log.Info("mbus-bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MBUS_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MBUS_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// staticTemplateNames collects the template files pinned in device config.
func staticTemplateNames(cfg *config.Config) []string {
	var names []string
	for _, d := range cfg.Devices {
		if d.Template != "" {
			names = append(names, d.Template)
		}
	}
	return names
}
