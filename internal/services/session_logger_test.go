package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	storage "github.com/inference-gateway/desktop-agent/internal/infra/storage"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

type failingStore struct {
	storage.EventStore
}

func (failingStore) Append(ctx context.Context, event domain.SessionEvent) error {
	return errors.New("disk full")
}

func screenshotResult(seq int64) domain.ActionResult {
	result := domain.NewActionResult(string(domain.ActionScreenshot), seq)
	result.Success = true
	result.ScreenshotData = &domain.ScreenshotData{
		Data:     strings.Repeat("A", 400),
		MimeType: "image/png",
		Width:    1232,
		Height:   800,
	}
	return result
}

func TestSessionLogger_RecordsInOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	l := NewSessionLogger(store, "s1")
	ctx := logger.NopContext()

	l.Record(ctx, domain.EventTaskStart, map[string]any{"task": "open safari"})
	l.RecordAction(ctx, 1, "call_1", screenshotResult(1))
	l.Record(ctx, domain.EventTaskComplete, nil)

	events, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.Equal(t, "s1", e.SessionID)
	}
	assert.Equal(t, domain.EventAction, events[1].Type)
	assert.Equal(t, "call_1", events[1].Data["tool_call_id"])
	assert.Equal(t, "<image 400 bytes elided>", events[1].Data["data"])
	assert.Equal(t, "screenshot", events[1].Data["type"])
}

func TestSessionLogger_ElidesEmbeddedResults(t *testing.T) {
	store := storage.NewMemoryStore()
	l := NewSessionLogger(store, "s1")
	ctx := logger.NopContext()

	shot := screenshotResult(1)
	l.Record(ctx, domain.EventAction, map[string]any{"result": shot, "pointer": &shot})

	events, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	for _, key := range []string{"result", "pointer"} {
		nested, ok := events[0].Data[key].(map[string]any)
		require.True(t, ok, key)
		assert.Equal(t, "<image 400 bytes elided>", nested["data"])
	}
}

func TestSessionLogger_SwallowsStoreFailures(t *testing.T) {
	ctx, logs := logger.TestContext()
	l := NewSessionLogger(failingStore{}, "s1")

	assert.NotPanics(t, func() {
		l.Record(ctx, domain.EventTaskStart, nil)
		l.Record(ctx, domain.EventTaskComplete, nil)
	})

	assert.Equal(t, 2, l.StoreFailures())
	assert.Equal(t, 2, logs.FilterMessage("Failed to append session event").Len())
}

func TestSessionLogger_Summary(t *testing.T) {
	store := storage.NewMemoryStore()
	l := NewSessionLogger(store, "s1")
	ctx := logger.NopContext()

	click := domain.NewActionResult(string(domain.ActionLeftClick), 2)
	click.Success = true
	click.Clamped = true
	failed := domain.NewActionResult(string(domain.ActionKey), 3).Fail("unknown key %q", "hyper")

	l.Record(ctx, domain.EventTaskStart, nil)
	l.RecordAction(ctx, 0, "", screenshotResult(1))
	l.RecordAction(ctx, 1, "a", click)
	l.Record(ctx, domain.EventCoordinateClamped, map[string]any{"iteration": 1})
	l.RecordAction(ctx, 1, "b", failed)
	l.Record(ctx, domain.EventRecoveryDismiss, map[string]any{"key": "escape"})
	l.Record(ctx, domain.EventError, map[string]any{"error": "gateway timeout"})
	l.Record(ctx, domain.EventTaskComplete, nil)

	summary, err := l.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, "s1", summary.SessionID)
	assert.Equal(t, 8, summary.TotalEvents)
	assert.Equal(t, 3, summary.ActionCount)
	assert.Equal(t, map[string]int{"screenshot": 1, "left_click": 1, "key": 1}, summary.ActionsByType)
	assert.Equal(t, 1, summary.FailedActions)
	assert.Equal(t, 1, summary.Clamped)
	assert.Equal(t, 1, summary.Recoveries)
	assert.Equal(t, []string{"gateway timeout"}, summary.Errors)
	assert.Equal(t, 3, summary.EventCounts[domain.EventAction])
	assert.False(t, summary.LastEvent.Before(summary.FirstEvent))
}

func TestSessionLogger_SummaryUnknownSession(t *testing.T) {
	l := NewSessionLogger(storage.NewMemoryStore(), "missing")
	_, err := l.Summary(logger.NopContext())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSummarize_OrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []domain.SessionEvent{
		{Type: domain.EventTaskComplete, Timestamp: base.Add(5 * time.Second)},
		{Type: domain.EventTaskStart, Timestamp: base},
	}

	s := Summarize("s1", events)
	assert.Equal(t, base, s.FirstEvent)
	assert.Equal(t, base.Add(5*time.Second), s.LastEvent)
	assert.InDelta(t, 5.0, s.Duration, 1e-9)
}
