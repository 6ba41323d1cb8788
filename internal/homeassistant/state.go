package homeassistant

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

// StatePayload renders a reading as the device state document: a flat JSON
// object keyed by record id.
//
// Record values that parse as JSON numbers are emitted as numbers with the
// device's formatting preserved (a meter reporting "123.4" publishes 123.4,
// not "123.4" and not 123.40). Everything else is emitted as a string.
func StatePayload(reading *mbus.Reading) ([]byte, error) {
	state := make(map[string]any, len(reading.Records))
	for _, rec := range reading.Records {
		if rec.Value == "" {
			continue
		}
		state[rec.ID] = recordValue(rec.Value)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state payload: %w", err)
	}
	return payload, nil
}

// recordValue returns the value as a json.Number when it is a valid JSON
// number literal, otherwise as the raw string. Using json.Number keeps the
// device's own formatting intact through the round-trip.
func recordValue(value string) any {
	var n json.Number
	if err := json.Unmarshal([]byte(value), &n); err == nil {
		return n
	}
	return value
}
