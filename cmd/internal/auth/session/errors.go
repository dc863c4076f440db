package session

import "errors"

var (
	// ErrSessionNotFound is returned when a token does not match a live session.
	// Callers typically surface it as "not authenticated".
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidToken is returned when a serialized token cannot be parsed.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
