// Package logging provides structured logging for mbus-bridge.
//
// It wraps log/slog with level-based filtering and a runtime-adjustable
// level: the MQTT log_level command topic changes the effective level of
// every logger derived from the same root without rebuilding handlers.
// The configured level is restored on restart.
package logging
