package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	displaytest "github.com/inference-gateway/desktop-agent/internal/display/displaytest"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

func TestRun_AbortsAtMaxIterations(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		fallback: toolTurn("", toolCall("call", `{"action":"screenshot"}`)),
	}
	recorder := &memoryRecorder{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 3}, WithRecorder(recorder))
	result := orch.Run(logger.NopContext(), "s1", "never finishes")

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateAborted, result.State)
	assert.Equal(t, domain.AbortMaxIterations, result.Error)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, reasoner.Calls())
	assert.Equal(t, int64(4), result.ActionCount)
	assert.Equal(t, domain.EventTaskComplete, recorder.Types()[len(recorder.Types())-1])
}

func TestRun_DoneWhenModelStopsCallingTools(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			{Text: "The calculator is open.", StopReason: domain.StopEndTurn},
		},
	}
	publisher := &capturePublisher{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 10}, WithPublisher(publisher))
	result := orch.Run(logger.NopContext(), "s1", "open calculator")

	assert.True(t, result.Success)
	assert.Equal(t, domain.StateDone, result.State)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "The calculator is open.", result.FinalMessage)
	assert.Empty(t, result.Error)
	assert.Equal(t, int64(1), result.ActionCount)

	transitions := publisher.OfType(domain.ObserverStateTransition)
	require.Len(t, transitions, 2)
	assert.Equal(t, "DONE", transitions[1].Data.(map[string]any)["to"])
	assert.Len(t, publisher.OfType(domain.ObserverTaskComplete), 1)
}

func TestRun_ReasonerErrorAborts(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{errs: []error{errors.New("gateway unavailable")}}
	recorder := &memoryRecorder{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5}, WithRecorder(recorder))
	result := orch.Run(logger.NopContext(), "s1", "anything")

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateAborted, result.State)
	assert.Contains(t, result.Error, domain.AbortModelError)
	assert.Contains(t, result.Error, "gateway unavailable")
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, recorder.Count(domain.EventError))
}

func TestRun_FirstRequestCarriesTaskAndScreenshot(t *testing.T) {
	fake := displaytest.NewFakeController(1512, 982, 1)
	reasoner := &scriptedReasoner{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 2, MaxTokens: 1024})
	orch.Run(logger.NopContext(), "s1", "open safari")

	require.Equal(t, 1, reasoner.Calls())
	req := reasoner.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Equal(t, domain.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Text, "open safari")
	require.Len(t, req.Messages[0].Images, 1)
	assert.Equal(t, "image/png", req.Messages[0].Images[0].MimeType)
	assert.Equal(t, 1024, req.MaxTokens)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, ComputerToolName, req.Tools[0].Name)
	assert.Equal(t, 1232, req.Tools[0].DisplayWidthPx)
	assert.Equal(t, 800, req.Tools[0].DisplayHeightPx)
	assert.Contains(t, req.System, "0 <= x < 1232")
}

func TestRun_DescriptorFollowsLatestCanvas(t *testing.T) {
	fake := displaytest.NewFakeController(1512, 982, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("", toolCall("a", `{"action":"screenshot"}`)),
		},
		onCall: func(i int) {
			if i == 0 {
				fake.Resize(2560, 1600)
			}
		},
	}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5})
	orch.Run(logger.NopContext(), "s1", "display changes")

	require.Equal(t, 2, reasoner.Calls())
	assert.Equal(t, 1232, reasoner.requests[0].Tools[0].DisplayWidthPx)
	assert.Equal(t, 1280, reasoner.requests[1].Tools[0].DisplayWidthPx)
	assert.Equal(t, 800, reasoner.requests[1].Tools[0].DisplayHeightPx)
	assert.Contains(t, reasoner.requests[1].System, "0 <= x < 1280")
}

func TestRun_ExecutesToolCallsSequentially(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("Typing the query.",
				toolCall("1", `{"action":"left_click","coordinate":[100,200]}`),
				toolCall("2", `{"action":"type","text":"hello"}`),
				toolCall("3", `{"action":"key","text":"Return"}`),
			),
		},
	}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5})
	result := orch.Run(logger.NopContext(), "s1", "search")

	require.True(t, result.Success)
	assert.Equal(t, []string{"move:100,200", "click:left:1", "type:hello", "down:enter", "up:enter"}, fake.InputEvents())

	second := reasoner.requests[1]
	toolMsg := second.Messages[len(second.Messages)-1]
	assert.Equal(t, domain.RoleTool, toolMsg.Role)
	require.Len(t, toolMsg.ToolResults, 3)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, id, toolMsg.ToolResults[i].ToolCallID)
		assert.False(t, toolMsg.ToolResults[i].IsError)
	}
}

func TestRun_ScreenshotResultsAreSentAsImages(t *testing.T) {
	fake := displaytest.NewFakeController(640, 400, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("", toolCall("shot", `{"action":"screenshot"}`)),
		},
	}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5})
	orch.Run(logger.NopContext(), "s1", "look")

	second := reasoner.requests[1]
	n := len(second.Messages)
	require.GreaterOrEqual(t, n, 2)

	toolMsg := second.Messages[n-2]
	require.Len(t, toolMsg.ToolResults, 1)
	assert.Contains(t, toolMsg.ToolResults[0].Content, "bytes elided>")
	assert.NotContains(t, toolMsg.ToolResults[0].Content, "iVBOR")

	imageMsg := second.Messages[n-1]
	assert.Equal(t, domain.RoleUser, imageMsg.Role)
	require.Len(t, imageMsg.Images, 1)
	assert.NotEmpty(t, imageMsg.Images[0].Data)
}

func TestRun_UnknownToolAndMalformedArgumentsFailWithoutInput(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("",
				domain.ToolCall{ID: "x", Name: "bash", Arguments: `{"command":"ls"}`},
				toolCall("y", `{not json`),
				toolCall("z", `{"action":"drag"}`),
			),
		},
	}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5})
	result := orch.Run(logger.NopContext(), "s1", "oops")

	assert.True(t, result.Success)
	assert.Empty(t, fake.InputEvents())

	toolMsg := reasoner.requests[1].Messages[2]
	require.Len(t, toolMsg.ToolResults, 3)
	assert.Contains(t, toolMsg.ToolResults[0].Content, ErrToolNotImplemented)
	for _, r := range toolMsg.ToolResults {
		assert.True(t, r.IsError)
	}
	assert.Contains(t, toolMsg.ToolResults[2].Content, `"type":"drag"`)
}

func TestRun_RecoveryDismissesBeforeFirstClick(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("That opened the battery menu instead of Wi-Fi.",
				toolCall("1", `{"action":"left_click","coordinate":[10,10]}`),
				toolCall("2", `{"action":"left_click","coordinate":[20,20]}`),
			),
		},
	}
	recorder := &memoryRecorder{}
	sleeper := &recordingSleeper{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{
		MaxIterations: 5,
		Recovery:      RecoveryOptions{Enabled: true, DismissKey: "escape", Settle: 300 * time.Millisecond},
	}, WithRecorder(recorder), WithSleeper(sleeper.Sleep))
	result := orch.Run(logger.NopContext(), "s1", "open wifi")

	require.True(t, result.Success)
	assert.Equal(t, []string{
		"down:escape", "up:escape",
		"move:10,10", "click:left:1",
		"move:20,20", "click:left:1",
	}, fake.InputEvents())
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, sleeper.slept)
	assert.Equal(t, 1, recorder.Count(domain.EventRecoveryDismiss))
}

func TestRun_RecoveryDoesNotFireForTypingOrWhenDisabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		call    string
		want    []string
	}{
		{"type does not trigger", true, `{"action":"type","text":"a"}`, []string{"type:a"}},
		{"disabled", false, `{"action":"left_click"}`, []string{"click:left:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := displaytest.NewFakeController(1280, 800, 1)
			reasoner := &scriptedReasoner{
				responses: []*domain.ReasonerResponse{
					toolTurn("That was wrong.", toolCall("1", tt.call)),
				},
			}
			orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{
				MaxIterations: 5,
				Recovery:      RecoveryOptions{Enabled: tt.enabled},
			}, WithSleeper((&recordingSleeper{}).Sleep))

			orch.Run(logger.NopContext(), "s1", "task")
			assert.Equal(t, tt.want, fake.InputEvents())
		})
	}
}

func TestRun_CancelledContextAborts(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{}

	ctx, cancel := context.WithCancel(logger.NopContext())
	cancel()

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5})
	result := orch.Run(ctx, "s1", "task")

	assert.Equal(t, domain.StateAborted, result.State)
	assert.Contains(t, result.Error, "cancelled")
	assert.Zero(t, reasoner.Calls())
}

func TestRun_ClampedCoordinateIsRecorded(t *testing.T) {
	fake := displaytest.NewFakeController(1280, 800, 1)
	reasoner := &scriptedReasoner{
		responses: []*domain.ReasonerResponse{
			toolTurn("", toolCall("1", `{"action":"mouse_move","coordinate":[4000,10]}`)),
		},
	}
	recorder := &memoryRecorder{}

	orch := NewOrchestrator(reasoner, newTestExecutor(fake), Options{MaxIterations: 5}, WithRecorder(recorder))
	orch.Run(logger.NopContext(), "s1", "task")

	assert.Equal(t, []string{"move:1279,10"}, fake.InputEvents())
	assert.Equal(t, 1, recorder.Count(domain.EventCoordinateClamped))
}
