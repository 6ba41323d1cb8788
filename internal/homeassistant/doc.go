// Package homeassistant publishes MQTT discovery configs and device state
// for Home Assistant.
//
// Discovery configs go to <discovery_prefix>/<component>/<unique_id>/config,
// retained, following the Home Assistant MQTT discovery convention. Three
// groups of entities are published:
//
//   - Bridge entities: discovered/online counters, diagnostic sensors, a
//     rescan button, a log-level select and a poll-interval number, all
//     reading from <base>/bridge/info.
//   - Template entities: one per entity in the device's resolved template.
//     Entities with a custom-* id carry their configured value template
//     verbatim; their values are derived by Home Assistant, not published
//     in the state document.
//   - Generic entities: synthesised from a reading's data records when no
//     template matches, with a device class inferred from the record
//     function name.
//
// Device entities bind two availability topics, the bridge state AND the
// per-device availability topic; the entity is available only when both
// report online.
//
// State is one retained JSON document per device per successful poll,
// keyed by record id. Numeric record values are emitted as JSON numbers
// with the device's own formatting preserved.
package homeassistant
