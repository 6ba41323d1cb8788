package homeassistant

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mbus-bridge/internal/device"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/mbus-bridge/internal/mbus"
	"github.com/nerrad567/mbus-bridge/internal/template"
)

// mockPublisher records retained publishes.
type mockPublisher struct {
	published map[string][]byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{published: make(map[string][]byte)}
}

func (m *mockPublisher) PublishRetained(topic string, payload []byte) error {
	m.published[topic] = payload
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

func newTestDiscovery(enabled bool) (*Discovery, *mockPublisher) {
	pub := newMockPublisher()
	d := NewDiscovery(pub, mqtt.NewTopics("mbus2mqtt"), config.HomeAssistantConfig{
		Enabled:         enabled,
		DiscoveryPrefix: "homeassistant",
	}, "1.0.0", nopLogger{})
	return d, pub
}

func onlineDevice(t *testing.T) *device.Device {
	t.Helper()
	table := device.NewTable(3)
	dev, _ := table.AddDiscovered(5)
	reading := &mbus.Reading{
		Slave: mbus.SlaveInfo{
			ID:           "12345678",
			Manufacturer: "KAM",
			ProductName:  "Kamstrup MULTICAL 21",
			Version:      "27",
			Medium:       "Cold water",
		},
		Records: []mbus.DataRecord{
			{ID: "1", Function: "Instantaneous value", Unit: "Volume (m m^3)", Value: "123.4"},
		},
	}
	if _, err := table.RecordSuccess(5, reading, time.Now()); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	return dev
}

func TestPublishBridgeDiscovery(t *testing.T) {
	d, pub := newTestDiscovery(true)

	if err := d.PublishBridgeDiscovery(); err != nil {
		t.Fatalf("PublishBridgeDiscovery() error = %v", err)
	}

	// Six sensors, one button, one select, one number.
	if len(pub.published) != 9 {
		t.Fatalf("published %d configs, want 9", len(pub.published))
	}

	buttonTopic := "homeassistant/button/mbus2mqtt_bridge_rescan/config"
	data, ok := pub.published[buttonTopic]
	if !ok {
		t.Fatalf("missing rescan button config at %s", buttonTopic)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("button config is not valid JSON: %v", err)
	}
	if cfg["command_topic"] != "mbus2mqtt/command/rescan" {
		t.Errorf("button command_topic = %v", cfg["command_topic"])
	}

	numberTopic := "homeassistant/number/mbus2mqtt_bridge_poll_interval/config"
	data, ok = pub.published[numberTopic]
	if !ok {
		t.Fatalf("missing poll interval number config at %s", numberTopic)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("number config is not valid JSON: %v", err)
	}
	if cfg["min"] != float64(10) || cfg["max"] != float64(3600) {
		t.Errorf("number min/max = %v/%v, want 10/3600", cfg["min"], cfg["max"])
	}
}

func TestPublishBridgeDiscoveryDisabled(t *testing.T) {
	d, pub := newTestDiscovery(false)

	if err := d.PublishBridgeDiscovery(); err != nil {
		t.Fatalf("PublishBridgeDiscovery() error = %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d configs with discovery disabled, want 0", len(pub.published))
	}
}

func TestPublishDeviceDiscoveryFromTemplate(t *testing.T) {
	d, pub := newTestDiscovery(true)
	dev := onlineDevice(t)

	resolver, err := template.NewResolver(config.TemplatesConfig{})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	tmpl, err := resolver.Load("kamstrup_multical_21.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := d.PublishDeviceDiscovery(dev, tmpl); err != nil {
		t.Fatalf("PublishDeviceDiscovery() error = %v", err)
	}

	topic := "homeassistant/sensor/mbus2mqtt_12345678_1/config"
	data, ok := pub.published[topic]
	if !ok {
		t.Fatalf("missing entity config at %s; published: %v", topic, topics(pub))
	}

	var cfg struct {
		StateTopic   string `json:"state_topic"`
		DeviceClass  string `json:"device_class"`
		Availability []struct {
			Topic string `json:"topic"`
		} `json:"availability"`
		Device struct {
			ViaDevice    string `json:"via_device"`
			SerialNumber string `json:"serial_number"`
		} `json:"device"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("entity config is not valid JSON: %v", err)
	}

	if cfg.StateTopic != "mbus2mqtt/device/12345678/state" {
		t.Errorf("state_topic = %q", cfg.StateTopic)
	}
	if cfg.DeviceClass != "water" {
		t.Errorf("device_class = %q, want water", cfg.DeviceClass)
	}

	// Bridge AND device availability, both required.
	if len(cfg.Availability) != 2 {
		t.Fatalf("availability entries = %d, want 2", len(cfg.Availability))
	}
	if cfg.Availability[0].Topic != "mbus2mqtt/bridge/state" {
		t.Errorf("availability[0] = %q, want bridge state", cfg.Availability[0].Topic)
	}
	if cfg.Availability[1].Topic != "mbus2mqtt/device/12345678/availability" {
		t.Errorf("availability[1] = %q, want device availability", cfg.Availability[1].Topic)
	}

	if cfg.Device.ViaDevice != "mbus2mqtt_bridge" {
		t.Errorf("via_device = %q", cfg.Device.ViaDevice)
	}
	if cfg.Device.SerialNumber != "12345678" {
		t.Errorf("serial_number = %q", cfg.Device.SerialNumber)
	}
}

func TestCustomEntityValueTemplateVerbatim(t *testing.T) {
	d, pub := newTestDiscovery(true)
	dev := onlineDevice(t)

	resolver, err := template.NewResolver(config.TemplatesConfig{})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	tmpl, err := resolver.Load("kamstrup_multical_21.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := d.PublishDeviceDiscovery(dev, tmpl); err != nil {
		t.Fatalf("PublishDeviceDiscovery() error = %v", err)
	}

	topic := "homeassistant/sensor/mbus2mqtt_12345678_custom-volume-l/config"
	data, ok := pub.published[topic]
	if !ok {
		t.Fatalf("missing custom entity config at %s", topic)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("custom config is not valid JSON: %v", err)
	}
	want := "{{ (value_json['1'] | float) * 1000 }}"
	if cfg["value_template"] != want {
		t.Errorf("value_template = %v, want verbatim %q", cfg["value_template"], want)
	}
}

func TestPublishGenericEntities(t *testing.T) {
	d, pub := newTestDiscovery(true)
	dev := onlineDevice(t)
	dev.LastReading.Records = []mbus.DataRecord{
		{ID: "1", Function: "Volume", Unit: "m^3", Value: "123.4"},
		{ID: "2", Function: "Power", Unit: "W", Value: "42"},
		{ID: "3", Function: "Mystery", Value: ""},
	}

	if err := d.PublishDeviceDiscovery(dev, nil); err != nil {
		t.Fatalf("PublishDeviceDiscovery() error = %v", err)
	}

	// Record 3 has no value, so two entities.
	if len(pub.published) != 2 {
		t.Fatalf("published %d configs, want 2; topics: %v", len(pub.published), topics(pub))
	}

	data := pub.published["homeassistant/sensor/mbus2mqtt_12345678_record_1/config"]
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("generic config is not valid JSON: %v", err)
	}
	if cfg["device_class"] != "water" {
		t.Errorf("device_class = %v, want inferred water", cfg["device_class"])
	}
	if cfg["state_class"] != "total_increasing" {
		t.Errorf("state_class = %v, want total_increasing", cfg["state_class"])
	}
	if !strings.Contains(cfg["value_template"].(string), "value_json['1']") {
		t.Errorf("value_template = %v, want record lookup", cfg["value_template"])
	}
}

func TestInferDeviceClass(t *testing.T) {
	tests := []struct {
		function string
		want     string
	}{
		{"Volume (m m^3)", "water"},
		{"Water volume", "water"},
		{"Energy (kWh)", "energy"},
		{"Heat energy", "energy"},
		{"Power (W)", "power"},
		{"Flow temperature", "temperature"},
		{"Pressure (bar)", "pressure"},
		{"Flow (m^3/h)", "volume_flow_rate"},
		{"Fabrication number", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := InferDeviceClass(tt.function); got != tt.want {
			t.Errorf("InferDeviceClass(%q) = %q, want %q", tt.function, got, tt.want)
		}
	}
}

func topics(pub *mockPublisher) []string {
	var out []string
	for topic := range pub.published {
		out = append(out, topic)
	}
	return out
}
