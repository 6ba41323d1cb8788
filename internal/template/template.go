package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityConfig describes one Home Assistant entity derived from a device
// record. Zero-valued fields are omitted from the published discovery config.
type EntityConfig struct {
	Name             string `json:"name,omitempty"`
	Icon             string `json:"icon,omitempty"`
	Component        string `json:"component,omitempty"`
	DeviceClass      string `json:"device_class,omitempty"`
	StateClass       string `json:"state_class,omitempty"`
	Unit             string `json:"unit_of_measurement,omitempty"`
	ValueTemplate    string `json:"value_template,omitempty"`
	EntityCategory   string `json:"entity_category,omitempty"`
	EnabledByDefault *bool  `json:"enabled_by_default,omitempty"`
}

// Entity pairs an entity id with its configuration. Ids are either data
// record ids ("1", "4") or custom-* ids whose value is derived from other
// fields via the configured value template.
type Entity struct {
	ID string
	EntityConfig
}

// IsCustom reports whether the entity derives its value from other fields
// rather than reading a record directly.
func (e Entity) IsCustom() bool {
	return strings.HasPrefix(e.ID, "custom-")
}

// Template is an ordered set of entity definitions for one device model.
// Immutable once loaded.
type Template struct {
	// Name is the template file name it was loaded from.
	Name string

	Entities []Entity
}

// Entity returns the entity with the given id.
func (t *Template) Entity(id string) (Entity, bool) {
	for _, e := range t.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// parseTemplate decodes a template document, preserving entity order and
// rejecting duplicate entity ids.
func parseTemplate(name string, data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing template %s: document is not a JSON object", name)
	}

	tmpl := &Template{Name: name}
	seen := make(map[string]bool)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		id := keyTok.(string)

		if seen[id] {
			return nil, fmt.Errorf("%w: %q in template %s", ErrDuplicateEntityID, id, name)
		}
		seen[id] = true

		var cfg EntityConfig
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing template %s entity %q: %w", name, id, err)
		}

		tmpl.Entities = append(tmpl.Entities, Entity{ID: id, EntityConfig: cfg})
	}

	return tmpl, nil
}
