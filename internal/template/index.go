package template

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

// IndexEntry maps a template file to identity predicates. Every listed
// field must equal the device's identity field for the entry to match;
// omitted fields are wildcards.
type IndexEntry struct {
	File  string
	Match map[string]string
}

// Index is an ordered list of template-matching rules. The first fully
// matching entry wins, making resolution deterministic for a given identity.
type Index struct {
	Entries []IndexEntry
}

// Lookup returns the template file name for the first entry matching the
// given identity, or false when nothing matches.
func (idx *Index) Lookup(slave mbus.SlaveInfo) (string, bool) {
	if idx == nil {
		return "", false
	}
	for _, entry := range idx.Entries {
		if matches(entry.Match, slave) {
			return entry.File, true
		}
	}
	return "", false
}

// matches reports whether every predicate equals the identity field.
func matches(predicates map[string]string, slave mbus.SlaveInfo) bool {
	for field, want := range predicates {
		got, known := identityField(slave, field)
		if !known || got != want {
			return false
		}
	}
	return true
}

// identityField resolves an index predicate field name against the
// identity fields a device reports.
func identityField(slave mbus.SlaveInfo, field string) (string, bool) {
	switch field {
	case "Id":
		return slave.ID, true
	case "Manufacturer":
		return slave.Manufacturer, true
	case "ProductName":
		return slave.ProductName, true
	case "Medium":
		return slave.Medium, true
	case "Version":
		return slave.Version, true
	default:
		return "", false
	}
}

// parseIndex decodes an index document, preserving entry order.
func parseIndex(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing index: document is not a JSON object")
	}

	idx := &Index{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing index: %w", err)
		}
		file := keyTok.(string)

		var match map[string]string
		if err := dec.Decode(&match); err != nil {
			return nil, fmt.Errorf("parsing index entry %q: %w", file, err)
		}

		idx.Entries = append(idx.Entries, IndexEntry{File: file, Match: match})
	}

	return idx, nil
}
