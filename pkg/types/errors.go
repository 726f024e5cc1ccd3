package types

import "errors"

// Validation errors returned by MemoryEntry.Validate.
var (
	ErrMissingAgent      = errors.New("agent_id is required")
	ErrMissingContent    = errors.New("content is required")
	ErrContentTooLong    = errors.New("content exceeds maximum length")
	ErrInvalidImportance = errors.New("invalid importance level")
	ErrInvalidVisibility = errors.New("invalid visibility")
)
