package device

import "errors"

// ErrNotFound is returned when a bus address is not in the table.
var ErrNotFound = errors.New("device: not found")
