// Package config loads and validates the mbus-bridge configuration.
//
// Configuration is layered:
//  1. Hardcoded defaults
//  2. YAML file values (override defaults)
//  3. Environment variables with the MBUS2MQTT_ prefix (override file values)
//
// The loaded Config is immutable for the life of the process. Runtime
// overrides arriving over MQTT (log level, poll interval) live in the
// bridge's effective-settings struct, never here, so a restart always
// reverts to the configured values.
package config
