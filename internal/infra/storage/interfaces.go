package storage

import (
	"context"
	"time"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

// EventStore is an append-only store of session events
type EventStore interface {
	// Append writes one event to the end of its session's log
	Append(ctx context.Context, event domain.SessionEvent) error

	// Load returns a session's events in the order they were appended.
	// Unknown sessions yield domain.ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)

	// ListSessions returns the most recently active sessions first
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)

	// Health checks if the storage is healthy and reachable
	Health(ctx context.Context) error

	// Close releases the storage connection
	Close() error
}

// SessionSummary describes one stored session
type SessionSummary struct {
	ID         string    `json:"id"`
	EventCount int       `json:"event_count"`
	FirstEvent time.Time `json:"first_event"`
	LastEvent  time.Time `json:"last_event"`
}
