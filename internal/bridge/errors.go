package bridge

import "errors"

// Domain-specific errors for command validation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidLogLevel is returned for log level payloads outside
	// DEBUG, INFO, WARNING, ERROR.
	ErrInvalidLogLevel = errors.New("bridge: invalid log level")

	// ErrInvalidPollInterval is returned for poll interval payloads that
	// are not integers within the allowed range.
	ErrInvalidPollInterval = errors.New("bridge: invalid poll interval")
)
