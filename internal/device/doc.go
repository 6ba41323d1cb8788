// Package device provides the in-memory device table for mbus-bridge.
//
// The table is the catalogue of every known M-Bus device: statically
// configured devices (always present, even if never seen on the bus) and
// devices discovered by a bus scan. It tracks per-device identity learned
// from successful polls, the last reading snapshot, and availability state.
//
// # Availability
//
// Availability is a pure function of the consecutive-failure counter:
// a device is offline exactly when consecutiveFailures >= timeoutPolls.
// A successful poll resets the counter (and the device comes online); a
// failed poll increments it. New devices start offline with the counter
// held at the threshold, so a device that never answers produces no
// offline transition edge.
//
// RecordSuccess and RecordFailure report whether the availability state
// changed so the caller can publish exactly one message per edge.
//
// # Ownership
//
// The table is rebuilt on every run; nothing is persisted. The polling
// scheduler is the sole mutator. Table methods are synchronised so the
// info publisher and metrics can read counts concurrently.
package device
