package template

import "errors"

// Domain-specific errors for template loading and resolution.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTemplateNotFound is returned when a named template exists in
	// neither the user directory nor the bundled set.
	ErrTemplateNotFound = errors.New("template: not found")

	// ErrDuplicateEntityID is returned when a template defines the same
	// entity id twice.
	ErrDuplicateEntityID = errors.New("template: duplicate entity id")

	// ErrNoMatch is returned when no index entry matches a device
	// identity. Callers fall back to generic entities.
	ErrNoMatch = errors.New("template: no matching template")
)
