// Package template maps M-Bus device identities to Home Assistant entity
// definitions.
//
// A template is a JSON document mapping record ids (or custom-* ids with a
// value-derivation template) to entity configurations. An index document maps
// template file names to identity predicates; a device's identity fields are
// matched against the predicates to pick a template.
//
// # Resolution order
//
//  1. Static per-device template name from config. A missing or malformed
//     statically named template fails startup (see ValidateStatic).
//  2. The user index (index.json in the configured template directory).
//  3. The bundled index, shipped inside the binary via go:embed.
//  4. No match: the caller synthesises generic entities from the reading's
//     record ids (handled by the homeassistant package).
//
// Within an index, entries are evaluated in document order and the first
// entry whose predicates all match wins. Omitted predicate fields are
// wildcards. User entries are always consulted before bundled ones, so a
// user index can shadow a bundled template. Template files named by either
// index are likewise loaded user-directory-first.
//
// Templates are immutable once loaded. Duplicate entity ids within one
// template fail validation at load time, never at poll time. A malformed
// user template is logged once; affected devices fall back to generic
// entities.
package template
