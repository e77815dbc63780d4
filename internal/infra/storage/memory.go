package storage

import (
	"context"
	"sort"
	"sync"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

// MemoryStore keeps events in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.SessionEvent
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]domain.SessionEvent)}
}

func (m *MemoryStore) Append(ctx context.Context, event domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[event.SessionID] = append(m.sessions[event.SessionID], cloneEvent(event))
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]domain.SessionEvent, len(events))
	for i, e := range events {
		out[i] = cloneEvent(e)
	}
	return out, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]SessionSummary, 0, len(m.sessions))
	for id, events := range m.sessions {
		summaries = append(summaries, summarize(id, events))
	}
	return sortAndLimit(summaries, limit), nil
}

func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneEvent(e domain.SessionEvent) domain.SessionEvent {
	if e.Data != nil {
		data := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			data[k] = v
		}
		e.Data = data
	}
	return e
}

func summarize(id string, events []domain.SessionEvent) SessionSummary {
	s := SessionSummary{ID: id, EventCount: len(events)}
	if len(events) > 0 {
		s.FirstEvent = events[0].Timestamp
		s.LastEvent = events[len(events)-1].Timestamp
	}
	return s
}

func sortAndLimit(summaries []SessionSummary, limit int) []SessionSummary {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastEvent.After(summaries[j].LastEvent)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}
