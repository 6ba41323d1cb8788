package homeassistant

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

func TestStatePayloadNumericRoundTrip(t *testing.T) {
	reading := &mbus.Reading{
		Records: []mbus.DataRecord{
			{ID: "1", Unit: "Volume (m m^3)", Value: "123.4"},
		},
	}

	payload, err := StatePayload(reading)
	if err != nil {
		t.Fatalf("StatePayload() error = %v", err)
	}

	// The device's formatting must survive: 123.4, not "123.4" or 123.40.
	if !strings.Contains(string(payload), `"1":123.4`) {
		t.Errorf("payload = %s, want unquoted 123.4 for record 1", payload)
	}
}

func TestStatePayloadMixedValues(t *testing.T) {
	reading := &mbus.Reading{
		Records: []mbus.DataRecord{
			{ID: "0", Value: "12345678"},
			{ID: "1", Value: "123.4"},
			{ID: "2", Value: "2026-08-25T10:00:00Z"},
			{ID: "3", Value: ""},
		},
	}

	payload, err := StatePayload(reading)
	if err != nil {
		t.Fatalf("StatePayload() error = %v", err)
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	if string(state["0"]) != "12345678" {
		t.Errorf(`state["0"] = %s, want number 12345678`, state["0"])
	}
	if string(state["1"]) != "123.4" {
		t.Errorf(`state["1"] = %s, want number 123.4`, state["1"])
	}
	if string(state["2"]) != `"2026-08-25T10:00:00Z"` {
		t.Errorf(`state["2"] = %s, want quoted timestamp`, state["2"])
	}
	if _, present := state["3"]; present {
		t.Error("empty record value must be omitted from state")
	}
}

func TestRecordValueRejectsNonJSONNumbers(t *testing.T) {
	// Values that float-parse but are not JSON number literals must stay
	// strings so marshalling never fails.
	for _, v := range []string{"007", "+1", "1.", "0x1F", "NaN"} {
		if _, ok := recordValue(v).(json.Number); ok {
			t.Errorf("recordValue(%q) = json.Number, want string", v)
		}
	}
	for _, v := range []string{"0", "-3", "123.4", "1e5", "0.5"} {
		if _, ok := recordValue(v).(json.Number); !ok {
			t.Errorf("recordValue(%q) = string, want json.Number", v)
		}
	}
}
