package domain

import "errors"

var (
	// ErrUnknownAction is returned for action names outside SupportedActions
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidAction is returned for malformed action parameters
	ErrInvalidAction = errors.New("invalid action")
	// ErrSessionNotFound is returned by event stores for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrTaskInProgress is returned when a second task is started on the same desktop
	ErrTaskInProgress = errors.New("another task is already running")
)
