package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	zap "go.uber.org/zap"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	storage "github.com/inference-gateway/desktop-agent/internal/infra/storage"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// SessionLogger appends structured events for one session to an EventStore.
// Store failures are logged and swallowed so they never interrupt a task.
type SessionLogger struct {
	store     storage.EventStore
	sessionID string
	sequence  atomic.Int64

	mu       sync.Mutex
	failures int
}

// NewSessionLogger creates a logger writing to store under sessionID
func NewSessionLogger(store storage.EventStore, sessionID string) *SessionLogger {
	return &SessionLogger{store: store, sessionID: sessionID}
}

// SessionID returns the session this logger writes to
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// StoreFailures returns how many appends the store rejected
func (l *SessionLogger) StoreFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}

// Record appends one event. Base64 screenshots inside data are elided.
func (l *SessionLogger) Record(ctx context.Context, eventType string, data map[string]any) {
	event := domain.SessionEvent{
		Timestamp: time.Now().UTC(),
		SessionID: l.sessionID,
		Sequence:  l.sequence.Add(1),
		Type:      eventType,
		Data:      elideImages(data),
	}

	if err := l.store.Append(ctx, event); err != nil {
		l.mu.Lock()
		l.failures++
		l.mu.Unlock()
		logger.FromContext(ctx).Warn("Failed to append session event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// Summary loads this session's events and summarizes them
func (l *SessionLogger) Summary(ctx context.Context) (*LogSummary, error) {
	events, err := l.store.Load(ctx, l.sessionID)
	if err != nil {
		return nil, err
	}
	return Summarize(l.sessionID, events), nil
}

// RecordAction appends an action event whose data is the flattened result
func (l *SessionLogger) RecordAction(ctx context.Context, iteration int, toolCallID string, result domain.ActionResult) {
	data := ActionData(result)
	data["iteration"] = iteration
	if toolCallID != "" {
		data["tool_call_id"] = toolCallID
	}
	l.Record(ctx, domain.EventAction, data)
}

// ActionData flattens a result into event data with any image elided
func ActionData(result domain.ActionResult) map[string]any {
	data := map[string]any{}
	raw, err := json.Marshal(result.WithoutImage())
	if err == nil {
		_ = json.Unmarshal(raw, &data)
	}
	return data
}

// elideImages flattens action results so screenshots are never stored inline
func elideImages(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case domain.ActionResult:
			out[k] = ActionData(val)
		case *domain.ActionResult:
			if val != nil {
				out[k] = ActionData(*val)
			}
		default:
			out[k] = v
		}
	}
	return out
}

// LogSummary aggregates one session's event log
type LogSummary struct {
	SessionID     string         `json:"session_id"`
	TotalEvents   int            `json:"total_events"`
	EventCounts   map[string]int `json:"event_counts"`
	ActionCount   int            `json:"action_count"`
	ActionsByType map[string]int `json:"actions_by_type"`
	FailedActions int            `json:"failed_actions"`
	Clamped       int            `json:"clamped_coordinates"`
	Recoveries    int            `json:"recoveries"`
	Errors        []string       `json:"errors,omitempty"`
	FirstEvent    time.Time      `json:"first_event"`
	LastEvent     time.Time      `json:"last_event"`
	Duration      float64        `json:"duration_seconds"`
}

// Summarize builds a LogSummary from events in append order
func Summarize(sessionID string, events []domain.SessionEvent) *LogSummary {
	s := &LogSummary{
		SessionID:     sessionID,
		TotalEvents:   len(events),
		EventCounts:   map[string]int{},
		ActionsByType: map[string]int{},
	}

	for _, e := range events {
		s.EventCounts[e.Type]++

		switch e.Type {
		case domain.EventAction:
			s.ActionCount++
			if t, ok := e.Data["type"].(string); ok {
				s.ActionsByType[t]++
			}
			if ok, _ := e.Data["success"].(bool); !ok {
				s.FailedActions++
			}
		case domain.EventCoordinateClamped:
			s.Clamped++
		case domain.EventRecoveryDismiss:
			s.Recoveries++
		case domain.EventError:
			if msg, ok := e.Data["error"].(string); ok {
				s.Errors = append(s.Errors, msg)
			}
		}
	}

	if len(events) > 0 {
		sorted := append([]domain.SessionEvent(nil), events...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
		s.FirstEvent = sorted[0].Timestamp
		s.LastEvent = sorted[len(sorted)-1].Timestamp
		s.Duration = s.LastEvent.Sub(s.FirstEvent).Seconds()
	}
	return s
}
