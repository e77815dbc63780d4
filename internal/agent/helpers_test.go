package agent

import (
	"context"
	"sync"
	"time"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	displaytest "github.com/inference-gateway/desktop-agent/internal/display/displaytest"
	executor "github.com/inference-gateway/desktop-agent/internal/executor"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

type scriptedReasoner struct {
	mu        sync.Mutex
	responses []*domain.ReasonerResponse
	errs      []error
	fallback  *domain.ReasonerResponse
	onCall    func(i int)
	requests  []domain.ReasonerRequest
}

func (s *scriptedReasoner) Next(ctx context.Context, req domain.ReasonerRequest) (*domain.ReasonerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.Messages = append([]domain.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if s.onCall != nil {
		s.onCall(i)
	}

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return &domain.ReasonerResponse{Text: "done", StopReason: domain.StopEndTurn}, nil
}

func (s *scriptedReasoner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type recordedEvent struct {
	Type string
	Data map[string]any
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memoryRecorder) Record(ctx context.Context, eventType string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Type: eventType, Data: data})
}

func (m *memoryRecorder) RecordAction(ctx context.Context, iteration int, toolCallID string, result domain.ActionResult) {
	m.Record(ctx, domain.EventAction, map[string]any{
		"iteration": iteration,
		"type":      result.Type,
		"success":   result.Success,
	})
}

func (m *memoryRecorder) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func (m *memoryRecorder) Count(eventType string) int {
	n := 0
	for _, t := range m.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.ObserverEvent
}

func (c *capturePublisher) Publish(event domain.ObserverEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturePublisher) OfType(t string) []domain.ObserverEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.ObserverEvent
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func newTestExecutor(fake *displaytest.FakeController) *executor.Executor {
	scaler := vision.NewScaler(fake, vision.Options{MaxWidth: 1280, MaxHeight: 800})
	noSleep := func(context.Context, time.Duration) error { return nil }
	return executor.New(fake, scaler, executor.Options{MaxWait: 30 * time.Second}, executor.WithSleeper(noSleep))
}

func toolCall(id, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: ComputerToolName, Arguments: args}
}

func toolTurn(text string, calls ...domain.ToolCall) *domain.ReasonerResponse {
	return &domain.ReasonerResponse{Text: text, ToolCalls: calls, StopReason: domain.StopToolUse}
}
