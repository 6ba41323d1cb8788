package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/mbus-bridge/internal/device"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/mbus-bridge/internal/template"
)

// uniqueIDPrefix namespaces entity unique ids across bridges.
const uniqueIDPrefix = "mbus2mqtt"

// bridgeDeviceID identifies the bridge itself in Home Assistant.
const bridgeDeviceID = uniqueIDPrefix + "_bridge"

// Publisher is the MQTT surface the discovery layer needs.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Logger is the logging interface used by the discovery publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Discovery publishes Home Assistant MQTT discovery configs.
//
// All methods are no-ops when discovery is disabled in config, so callers
// never need to guard their calls.
type Discovery struct {
	mqtt    Publisher
	topics  mqtt.Topics
	cfg     config.HomeAssistantConfig
	version string
	logger  Logger
}

// NewDiscovery creates a discovery publisher.
func NewDiscovery(publisher Publisher, topics mqtt.Topics, cfg config.HomeAssistantConfig, version string, logger Logger) *Discovery {
	return &Discovery{
		mqtt:    publisher,
		topics:  topics,
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// Enabled reports whether discovery publishing is active.
func (d *Discovery) Enabled() bool {
	return d.cfg.Enabled
}

// deviceInfo is the HA device registry block attached to every entity.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// availabilityEntry binds an entity to one availability topic.
type availabilityEntry struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

// entityPayload is the discovery config document. Fields cover every
// component type the bridge publishes; zero values are omitted.
type entityPayload struct {
	Name             string              `json:"name"`
	UniqueID         string              `json:"unique_id"`
	Device           deviceInfo          `json:"device"`
	StateTopic       string              `json:"state_topic,omitempty"`
	CommandTopic     string              `json:"command_topic,omitempty"`
	ValueTemplate    string              `json:"value_template,omitempty"`
	Availability     []availabilityEntry `json:"availability"`
	DeviceClass      string              `json:"device_class,omitempty"`
	StateClass       string              `json:"state_class,omitempty"`
	Unit             string              `json:"unit_of_measurement,omitempty"`
	Icon             string              `json:"icon,omitempty"`
	EntityCategory   string              `json:"entity_category,omitempty"`
	EnabledByDefault *bool               `json:"enabled_by_default,omitempty"`
	Options          []string            `json:"options,omitempty"`
	Min              *float64            `json:"min,omitempty"`
	Max              *float64            `json:"max,omitempty"`
	Step             *float64            `json:"step,omitempty"`
}

// bridgeDevice returns the HA device block for the bridge itself.
func (d *Discovery) bridgeDevice() deviceInfo {
	return deviceInfo{
		Identifiers:  []string{bridgeDeviceID},
		Name:         "M-Bus Bridge",
		Manufacturer: "mbus-bridge",
		Model:        "Bridge",
		SWVersion:    d.version,
	}
}

// mbusDevice returns the HA device block for an M-Bus device, linked to
// the bridge via via_device.
func (d *Discovery) mbusDevice(dev *device.Device) deviceInfo {
	return deviceInfo{
		Identifiers:  []string{fmt.Sprintf("%s_%s", uniqueIDPrefix, dev.ObjectID())},
		Name:         dev.DisplayName(),
		Manufacturer: dev.Identity.Manufacturer,
		Model:        dev.Identity.ProductName,
		SerialNumber: dev.Identity.ID,
		SWVersion:    dev.Identity.Version,
		ViaDevice:    bridgeDeviceID,
	}
}

// bridgeAvailability is the availability binding for bridge entities.
func (d *Discovery) bridgeAvailability() []availabilityEntry {
	return []availabilityEntry{{
		Topic:               d.topics.BridgeState(),
		PayloadAvailable:    mqtt.PayloadOnline,
		PayloadNotAvailable: mqtt.PayloadOffline,
	}}
}

// deviceAvailability binds a device entity to both the bridge state and the
// per-device availability topic. Both must report online.
func (d *Discovery) deviceAvailability(objectID string) []availabilityEntry {
	return append(d.bridgeAvailability(), availabilityEntry{
		Topic:               d.topics.DeviceAvailability(objectID),
		PayloadAvailable:    mqtt.PayloadOnline,
		PayloadNotAvailable: mqtt.PayloadOffline,
	})
}

// PublishBridgeDiscovery publishes the bridge's own entities.
func (d *Discovery) PublishBridgeDiscovery() error {
	if !d.cfg.Enabled {
		return nil
	}

	d.logger.Info("publishing bridge discovery configs")

	bridge := d.bridgeDevice()
	info := d.topics.BridgeInfo()
	avail := d.bridgeAvailability()
	disabled := false

	entities := []struct {
		component string
		suffix    string
		payload   entityPayload
	}{
		{"sensor", "discovered_devices", entityPayload{
			Name:          "Discovered Devices",
			StateTopic:    info,
			ValueTemplate: "{{ value_json.discovered_devices }}",
			Icon:          "mdi:devices",
		}},
		{"sensor", "online_devices", entityPayload{
			Name:          "Online Devices",
			StateTopic:    info,
			ValueTemplate: "{{ value_json.online_devices }}",
			Icon:          "mdi:check-network",
		}},
		{"sensor", "version", entityPayload{
			Name:           "Version",
			StateTopic:     info,
			ValueTemplate:  "{{ value_json.version }}",
			Icon:           "mdi:tag",
			EntityCategory: "diagnostic",
		}},
		{"sensor", "last_scan", entityPayload{
			Name:             "Last Scan",
			StateTopic:       info,
			ValueTemplate:    "{{ value_json.last_scan }}",
			Icon:             "mdi:update",
			EntityCategory:   "diagnostic",
			EnabledByDefault: &disabled,
		}},
		{"sensor", "uptime", entityPayload{
			Name:             "Uptime",
			StateTopic:       info,
			ValueTemplate:    "{{ value_json.uptime }}",
			Icon:             "mdi:timer-outline",
			EntityCategory:   "diagnostic",
			EnabledByDefault: &disabled,
		}},
		{"sensor", "last_poll_duration", entityPayload{
			Name:             "Last Poll Duration",
			StateTopic:       info,
			ValueTemplate:    "{{ value_json.last_poll_duration_ms }}",
			Unit:             "ms",
			Icon:             "mdi:timer",
			EntityCategory:   "diagnostic",
			EnabledByDefault: &disabled,
		}},
		{"button", "rescan", entityPayload{
			Name:         "Rescan Devices",
			CommandTopic: d.topics.CommandRescan(),
			Icon:         "mdi:magnify-scan",
		}},
		{"select", "log_level", entityPayload{
			Name:           "Log Level",
			CommandTopic:   d.topics.CommandLogLevel(),
			StateTopic:     info,
			ValueTemplate:  "{{ value_json.log_level }}",
			Options:        []string{"DEBUG", "INFO", "WARNING", "ERROR"},
			Icon:           "mdi:text-box-outline",
			EntityCategory: "config",
		}},
		{"number", "poll_interval", entityPayload{
			Name:           "Poll Interval",
			CommandTopic:   d.topics.CommandPollInterval(),
			StateTopic:     info,
			ValueTemplate:  "{{ value_json.poll_interval }}",
			Min:            floatPtr(config.PollIntervalMin),
			Max:            floatPtr(config.PollIntervalMax),
			Step:           floatPtr(1),
			Unit:           "s",
			Icon:           "mdi:update",
			EntityCategory: "config",
		}},
	}

	for _, e := range entities {
		e.payload.UniqueID = fmt.Sprintf("%s_%s", bridgeDeviceID, e.suffix)
		e.payload.Device = bridge
		e.payload.Availability = avail
		if err := d.publishConfig(e.component, e.payload); err != nil {
			return err
		}
	}
	return nil
}

// PublishDeviceDiscovery publishes entity configs for an M-Bus device.
//
// tmpl may be nil, in which case generic entities are synthesised from the
// device's last reading.
func (d *Discovery) PublishDeviceDiscovery(dev *device.Device, tmpl *template.Template) error {
	if !d.cfg.Enabled {
		return nil
	}

	d.logger.Info("publishing device discovery configs",
		"device", dev.ObjectID(),
		"template", templateName(tmpl),
	)

	if tmpl != nil {
		return d.publishTemplateEntities(dev, tmpl)
	}
	return d.publishGenericEntities(dev)
}

// publishTemplateEntities publishes one config per template entity.
func (d *Discovery) publishTemplateEntities(dev *device.Device, tmpl *template.Template) error {
	info := d.mbusDevice(dev)
	objectID := dev.ObjectID()
	stateTopic := d.topics.DeviceState(objectID)
	avail := d.deviceAvailability(objectID)

	for _, entity := range tmpl.Entities {
		component := entity.Component
		if component == "" {
			component = "sensor"
		}

		name := entity.Name
		if name == "" {
			name = entity.ID
		}

		valueTemplate := entity.ValueTemplate
		if valueTemplate == "" && !entity.IsCustom() {
			valueTemplate = fmt.Sprintf("{{ value_json['%s'] }}", entity.ID)
		}

		payload := entityPayload{
			Name:             name,
			UniqueID:         entityUniqueID(objectID, entity.ID),
			Device:           info,
			StateTopic:       stateTopic,
			ValueTemplate:    valueTemplate,
			Availability:     avail,
			DeviceClass:      entity.DeviceClass,
			StateClass:       entity.StateClass,
			Unit:             entity.Unit,
			Icon:             entity.Icon,
			EntityCategory:   entity.EntityCategory,
			EnabledByDefault: entity.EnabledByDefault,
		}

		if err := d.publishConfig(component, payload); err != nil {
			return err
		}
	}
	return nil
}

// publishGenericEntities synthesises sensor configs from the data records
// of the device's last reading.
func (d *Discovery) publishGenericEntities(dev *device.Device) error {
	if dev.LastReading == nil {
		d.logger.Warn("no reading available for generic discovery", "device", dev.ObjectID())
		return nil
	}

	info := d.mbusDevice(dev)
	objectID := dev.ObjectID()
	stateTopic := d.topics.DeviceState(objectID)
	avail := d.deviceAvailability(objectID)

	for _, rec := range dev.LastReading.Records {
		if rec.Value == "" {
			continue
		}

		name := rec.Function
		if name == "" {
			name = fmt.Sprintf("Record %s", rec.ID)
		}

		payload := entityPayload{
			Name:          name,
			UniqueID:      entityUniqueID(objectID, "record_"+rec.ID),
			Device:        info,
			StateTopic:    stateTopic,
			ValueTemplate: fmt.Sprintf("{{ value_json['%s'] }}", rec.ID),
			Availability:  avail,
			Unit:          rec.Unit,
		}

		if deviceClass := InferDeviceClass(rec.Function); deviceClass != "" {
			payload.DeviceClass = deviceClass
			payload.StateClass = "total_increasing"
		}

		if err := d.publishConfig("sensor", payload); err != nil {
			return err
		}
	}
	return nil
}

// publishConfig publishes one retained discovery document.
func (d *Discovery) publishConfig(component string, payload entityPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding discovery config %s: %w", payload.UniqueID, err)
	}

	topic := fmt.Sprintf("%s/%s/%s/config", d.cfg.DiscoveryPrefix, component, payload.UniqueID)
	if err := d.mqtt.PublishRetained(topic, data); err != nil {
		return fmt.Errorf("publishing discovery config %s: %w", payload.UniqueID, err)
	}
	return nil
}

// InferDeviceClass maps an M-Bus record function name to a Home Assistant
// device class. Returns "" when nothing fits.
func InferDeviceClass(function string) string {
	f := strings.ToLower(function)
	switch {
	case f == "":
		return ""
	case strings.Contains(f, "volume") || strings.Contains(f, "water"):
		return "water"
	case strings.Contains(f, "energy") || strings.Contains(f, "heat"):
		return "energy"
	case strings.Contains(f, "power"):
		return "power"
	case strings.Contains(f, "temperature"):
		return "temperature"
	case strings.Contains(f, "pressure"):
		return "pressure"
	case strings.Contains(f, "flow"):
		return "volume_flow_rate"
	default:
		return ""
	}
}

// entityUniqueID builds the stable unique id for a device entity.
func entityUniqueID(objectID, entityID string) string {
	return fmt.Sprintf("%s_%s_%s", uniqueIDPrefix, objectID, entityID)
}

func templateName(tmpl *template.Template) string {
	if tmpl == nil {
		return "generic"
	}
	return tmpl.Name
}

func floatPtr(v float64) *float64 {
	return &v
}
