package mbus

import (
	"errors"
	"fmt"
)

// Domain-specific errors for M-Bus operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidEndpoint is returned when the configured device string is
	// neither a serial device path nor a valid IPv4:port endpoint.
	ErrInvalidEndpoint = errors.New("mbus: invalid endpoint")

	// ErrInvalidAddress is returned for bus addresses outside 0-254.
	ErrInvalidAddress = errors.New("mbus: address out of range")

	// ErrBinaryNotFound is returned when a required libmbus binary cannot
	// be resolved at construction time.
	ErrBinaryNotFound = errors.New("mbus: libmbus binary not found")
)

// ErrorKind classifies transport failures for retry handling.
type ErrorKind string

const (
	// KindTimeout indicates the bus operation exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindIO indicates a subprocess or device I/O failure.
	KindIO ErrorKind = "io"

	// KindMalformed indicates the device responded with unparseable data.
	KindMalformed ErrorKind = "malformed"
)

// TransportError is the failure type returned by Transport operations.
// All kinds are retried identically by the polling layer; the kind exists
// for logging and metrics.
type TransportError struct {
	Kind ErrorKind
	Op   string // "scan" or "poll"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mbus: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// newTransportError wraps err as a TransportError.
func newTransportError(op string, kind ErrorKind, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Err: err}
}
