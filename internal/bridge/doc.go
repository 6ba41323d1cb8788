// Package bridge runs the polling scheduler that ties the M-Bus transport
// to MQTT.
//
// The scheduler is a single-goroutine state machine:
//
//	Idle -> Scanning -> Polling -> Sleeping -> Scanning|Polling -> ...
//
// The bus is not reentrant, so all scan and poll operations run
// sequentially on the scheduler goroutine, which also owns the device
// table. MQTT command handlers and connection callbacks run on the
// client's goroutines and communicate with the scheduler only through
// mailboxes (a coalescing rescan channel, a poll-interval override
// channel and a reconnect-republish channel), never blocking on an
// in-flight bus operation and never touching device state directly.
//
// Sleeping is an interruptible wait: a rescan request truncates it, and a
// poll-interval override re-arms the remaining wait against the new
// effective interval. A rescan requested while a scan is already running
// coalesces into that scan. A failed scan is logged and never fatal; the
// existing poll set persists.
//
// Runtime overrides (log level, poll interval) are applied in memory only
// and revert to the configured values on restart.
package bridge
