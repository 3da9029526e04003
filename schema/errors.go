package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownGroupKind indicates an unsupported run grouping.
	ErrUnknownGroupKind = errors.New("unknown group kind")
)
