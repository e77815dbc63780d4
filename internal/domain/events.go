package domain

import "time"

// Session event types written to the append-only log
const (
	EventTaskStart         = "task_start"
	EventModelRequest      = "model_request"
	EventModelResponse     = "model_response"
	EventToolUse           = "tool_use"
	EventAction            = "action"
	EventCoordinateClamped = "coordinate_clamped"
	EventRecoveryDismiss   = "recovery_dismiss"
	EventError             = "error"
	EventTaskComplete      = "task_complete"
)

// Observer event types broadcast to live listeners
const (
	ObserverStateTransition = "state_transition"
	ObserverAction          = "action"
	ObserverModelMessage    = "model_message"
	ObserverTaskComplete    = "task_complete"
)

// SessionEvent is one record of a session's event log
type SessionEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Sequence  int64          `json:"sequence"`
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
}

// ObserverEvent is pushed to real-time observers
type ObserverEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// EventPublisher delivers observer events without blocking the caller
type EventPublisher interface {
	Publish(event ObserverEvent)
}

// VersionInfo contains build-time version information
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}
