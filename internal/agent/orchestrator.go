package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	zap "go.uber.org/zap"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	metrics "github.com/inference-gateway/desktop-agent/internal/infra/metrics"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

// ActionExecutor performs actions against the desktop
type ActionExecutor interface {
	Execute(ctx context.Context, action domain.Action) domain.ActionResult
	ExecuteRequest(ctx context.Context, req domain.ActionRequest) domain.ActionResult
	Canvas(ctx context.Context) (vision.Canvas, error)
	ActionCount() int64
}

// Recorder receives session events
type Recorder interface {
	Record(ctx context.Context, eventType string, data map[string]any)
	RecordAction(ctx context.Context, iteration int, toolCallID string, result domain.ActionResult)
}

// RecoveryOptions configures the dismiss-before-acting heuristic
type RecoveryOptions struct {
	Enabled    bool
	DismissKey string
	Settle     time.Duration
}

// Options configures an Orchestrator
type Options struct {
	MaxIterations int
	MaxTokens     int
	SystemPrompt  string
	Platform      string
	Recovery      RecoveryOptions
}

// Orchestrator runs the model/tool loop for one task at a time
type Orchestrator struct {
	reasoner  domain.Reasoner
	executor  ActionExecutor
	recorder  Recorder
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithRecorder sends session events to r
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithPublisher broadcasts observer events to p
func WithPublisher(p domain.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMetrics records iterations, recoveries and task outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSleeper replaces the pause used after a recovery dismiss
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(reasoner domain.Reasoner, executor ActionExecutor, opts Options, options ...Option) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.Recovery.DismissKey == "" {
		opts.Recovery.DismissKey = "escape"
	}
	o := &Orchestrator{
		reasoner: reasoner,
		executor: executor,
		recorder: nopRecorder{},
		opts:     opts,
		sleep:    sleepContext,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// run holds the per-task state of one Run call
type run struct {
	o         *Orchestrator
	sessionID string
	task      string
	log       *zap.Logger
	sm        *StateMachine
	tc        TurnContext
	session   *domain.Session

	messages     []domain.Message
	executionLog []domain.ExecutionLogEntry
	finalMessage string
	abortReason  string
}

// Run drives the task to DONE or ABORTED. It never returns an error; the
// outcome is described by the result.
func (o *Orchestrator) Run(ctx context.Context, sessionID, task string) domain.TaskResult {
	ctx = logger.WithSession(ctx, sessionID)
	log := logger.FromContext(ctx)

	r := &run{
		o:         o,
		sessionID: sessionID,
		task:      task,
		log:       log,
		sm:        NewStateMachine(sessionID, o.publisher, log),
		tc:        TurnContext{MaxIterations: o.opts.MaxIterations},
		session:   domain.NewSession(sessionID, task),
	}

	log.Info("Task started", zap.String("task", task), zap.Int("max_iterations", o.opts.MaxIterations))
	o.metrics.TaskStarted()
	o.recorder.Record(ctx, domain.EventTaskStart, map[string]any{
		"task":           task,
		"max_iterations": o.opts.MaxIterations,
	})

	r.start(ctx)
	r.loop(ctx)
	return r.finish(ctx)
}

func (r *run) start(ctx context.Context) {
	shot := r.o.executor.Execute(ctx, domain.ScreenshotAction{})
	r.o.recorder.RecordAction(ctx, 0, "", shot)
	r.session.Record(domain.Step{Action: domain.ScreenshotAction{}, Result: shot})

	first := domain.Message{Role: domain.RoleUser, Text: "Task: " + r.task}
	if shot.HasImage() {
		first.Images = []domain.Image{{MimeType: shot.MimeType, Data: shot.Data}}
	} else {
		first.Text += "\n\nThe initial screenshot could not be captured: " + shot.Error
		r.log.Warn("Initial screenshot failed", zap.String("error", shot.Error))
	}
	r.messages = append(r.messages, first)

	r.transition(domain.StateAwaitingModel)
}

func (r *run) loop(ctx context.Context) {
	for !r.sm.CurrentState().IsTerminal() {
		if err := ctx.Err(); err != nil {
			r.abort(fmt.Sprintf("cancelled: %v", err))
			return
		}
		if r.tc.Iteration >= r.o.opts.MaxIterations {
			r.abort(domain.AbortMaxIterations)
			return
		}

		r.tc.Iteration++
		r.o.metrics.IterationStarted()

		resp, err := r.requestModel(ctx)
		if err != nil {
			r.o.recorder.Record(ctx, domain.EventError, map[string]any{
				"iteration": r.tc.Iteration,
				"error":     err.Error(),
			})
			r.appendLog(domain.ExecutionLogEntry{Kind: domain.LogError, Text: err.Error()})
			r.abort(fmt.Sprintf("%s: %v", domain.AbortModelError, err))
			return
		}

		r.tc.ToolCalls = len(resp.ToolCalls)
		r.messages = append(r.messages, domain.Message{
			Role:      domain.RoleAssistant,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			r.transition(domain.StateDone)
			return
		}

		r.transition(domain.StateExecuting)
		r.executeToolCalls(ctx, resp)
		r.transition(domain.StateAwaitingModel)
	}
}

func (r *run) requestModel(ctx context.Context) (*domain.ReasonerResponse, error) {
	canvas, err := r.o.executor.Canvas(ctx)
	if err != nil {
		r.log.Warn("Failed to read canvas for tool descriptor", zap.Error(err))
	}

	req := domain.ReasonerRequest{
		System:    SystemPrompt(r.o.opts.SystemPrompt, canvas, r.o.opts.Platform),
		Messages:  r.messages,
		Tools:     []domain.ToolDescriptor{ComputerTool(canvas)},
		MaxTokens: r.o.opts.MaxTokens,
	}

	r.o.recorder.Record(ctx, domain.EventModelRequest, map[string]any{
		"iteration":      r.tc.Iteration,
		"message_count":  len(req.Messages),
		"display_width":  canvas.VisionWidth,
		"display_height": canvas.VisionHeight,
	})
	r.log.Debug("Requesting model turn", zap.Int("iteration", r.tc.Iteration), zap.Int("messages", len(req.Messages)))

	resp, err := r.o.reasoner.Next(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from reasoner")
	}

	names := make([]string, 0, len(resp.ToolCalls))
	for _, c := range resp.ToolCalls {
		names = append(names, c.Name)
	}
	r.o.recorder.Record(ctx, domain.EventModelResponse, map[string]any{
		"iteration":   r.tc.Iteration,
		"text":        resp.Text,
		"tool_calls":  names,
		"stop_reason": resp.StopReason,
	})

	if resp.Text != "" {
		r.finalMessage = resp.Text
		r.appendLog(domain.ExecutionLogEntry{Kind: domain.LogAssistantMessage, Text: resp.Text})
		r.publish(domain.ObserverModelMessage, map[string]any{
			"iteration": r.tc.Iteration,
			"text":      resp.Text,
		})
	}
	return resp, nil
}

// executeToolCalls runs the calls of one model turn in order and appends
// their results to the conversation
func (r *run) executeToolCalls(ctx context.Context, resp *domain.ReasonerResponse) {
	wantsDismiss := r.o.opts.Recovery.Enabled && NeedsDismiss(resp.Text)
	recoveryDecided := false

	var (
		results []domain.ToolResult
		images  []domain.Image
	)

	for _, call := range resp.ToolCalls {
		r.o.recorder.Record(ctx, domain.EventToolUse, map[string]any{
			"iteration":    r.tc.Iteration,
			"tool_call_id": call.ID,
			"name":         call.Name,
			"input":        call.Arguments,
		})
		r.appendLog(domain.ExecutionLogEntry{
			Kind:       domain.LogToolUse,
			ToolCallID: call.ID,
			Tool:       call.Name,
			Input:      rawArguments(call.Arguments),
		})

		var (
			result    domain.ActionResult
			requested []float64
			action    domain.Action
		)

		switch {
		case call.Name != ComputerToolName:
			result = domain.NewActionResult(call.Name, 0).Fail("%s: %s", ErrToolNotImplemented, call.Name)

		default:
			req, err := domain.DecodeActionRequest(call.Arguments)
			if err != nil {
				result = domain.NewActionResult("unknown", 0).Fail("%v", err)
				break
			}
			requested = req.Coordinate

			parsed, parseErr := domain.ParseAction(req)
			if parseErr != nil {
				result = r.o.executor.ExecuteRequest(ctx, req)
				break
			}

			action = parsed
			if !recoveryDecided && triggersRecovery(action) {
				recoveryDecided = true
				if wantsDismiss {
					r.dismiss(ctx, resp.Text)
				}
			}
			result = r.o.executor.Execute(ctx, action)
		}

		r.o.recorder.RecordAction(ctx, r.tc.Iteration, call.ID, result)
		r.session.Record(domain.Step{Iteration: r.tc.Iteration, ToolCallID: call.ID, Action: action, Result: result})
		if result.Clamped {
			r.o.recorder.Record(ctx, domain.EventCoordinateClamped, map[string]any{
				"iteration": r.tc.Iteration,
				"requested": requested,
				"vision":    result.VisionPosition,
				"logical":   result.Position,
			})
		}

		stripped := result.WithoutImage()
		r.appendLog(domain.ExecutionLogEntry{
			Kind:       domain.LogToolResult,
			ToolCallID: call.ID,
			Tool:       call.Name,
			Result:     &stripped,
		})
		r.publish(domain.ObserverAction, stripped)

		content, _ := json.Marshal(stripped)
		results = append(results, domain.ToolResult{
			ToolCallID: call.ID,
			Content:    string(content),
			IsError:    !result.Success,
		})
		if result.HasImage() {
			images = append(images, domain.Image{MimeType: result.MimeType, Data: result.Data})
		}
	}

	r.messages = append(r.messages, domain.Message{Role: domain.RoleTool, ToolResults: results})
	if len(images) > 0 {
		r.messages = append(r.messages, domain.Message{
			Role:   domain.RoleUser,
			Text:   "Here is the latest screenshot.",
			Images: images,
		})
	}
}

// triggersRecovery reports whether a dismiss should precede action
func triggersRecovery(action domain.Action) bool {
	switch action.(type) {
	case domain.ClickAction, domain.ScreenshotAction:
		return true
	default:
		return false
	}
}

func (r *run) dismiss(ctx context.Context, trigger string) {
	key := r.o.opts.Recovery.DismissKey
	action := domain.KeyAction{Combo: key}
	result := r.o.executor.Execute(ctx, action)
	r.session.Record(domain.Step{Iteration: r.tc.Iteration, Action: action, Result: result})
	if r.o.opts.Recovery.Settle > 0 {
		_ = r.o.sleep(ctx, r.o.opts.Recovery.Settle)
	}

	r.o.metrics.RecoveryDismissed()
	r.log.Info("Dismissed unexpected UI before acting", zap.String("key", key), zap.Bool("success", result.Success))
	r.o.recorder.Record(ctx, domain.EventRecoveryDismiss, map[string]any{
		"iteration": r.tc.Iteration,
		"key":       key,
		"trigger":   trigger,
		"success":   result.Success,
	})
	stripped := result.WithoutImage()
	r.appendLog(domain.ExecutionLogEntry{Kind: domain.LogRecovery, Text: key, Result: &stripped})
}

func (r *run) transition(target domain.AgentState) {
	if err := r.sm.Transition(&r.tc, target); err != nil {
		r.log.Error("Rejected state transition", zap.Error(err))
	}
}

func (r *run) abort(reason string) {
	r.abortReason = reason
	r.log.Warn("Task aborted", zap.String("reason", reason), zap.Int("iterations", r.tc.Iteration))
	r.transition(domain.StateAborted)
}

func (r *run) finish(ctx context.Context) domain.TaskResult {
	state := r.sm.CurrentState()
	r.session.Iterations = r.tc.Iteration
	result := domain.TaskResult{
		SessionID:    r.sessionID,
		Success:      state == domain.StateDone,
		State:        state,
		Iterations:   r.tc.Iteration,
		ActionCount:  r.o.executor.ActionCount(),
		FinalMessage: r.finalMessage,
		Error:        r.abortReason,
		ExecutionLog: r.executionLog,
	}
	if result.ExecutionLog == nil {
		result.ExecutionLog = []domain.ExecutionLogEntry{}
	}

	r.o.metrics.TaskFinished(state.String())
	r.o.recorder.Record(ctx, domain.EventTaskComplete, map[string]any{
		"success":      result.Success,
		"state":        state.String(),
		"iterations":   result.Iterations,
		"action_count": result.ActionCount,
		"steps":        len(r.session.Steps),
		"failed_steps": r.session.FailedSteps(),
		"duration":     time.Since(r.session.StartedAt).Seconds(),
		"error":        result.Error,
	})
	r.publish(domain.ObserverTaskComplete, map[string]any{
		"success":    result.Success,
		"state":      state.String(),
		"iterations": result.Iterations,
	})
	r.log.Info("Task finished",
		zap.String("state", state.String()),
		zap.Int("iterations", result.Iterations),
		zap.Int64("actions", result.ActionCount))
	return result
}

func (r *run) appendLog(entry domain.ExecutionLogEntry) {
	entry.Iteration = r.tc.Iteration
	entry.Timestamp = time.Now().UTC()
	r.executionLog = append(r.executionLog, entry)
}

func (r *run) publish(eventType string, data any) {
	if r.o.publisher == nil {
		return
	}
	r.o.publisher.Publish(domain.ObserverEvent{
		Type:      eventType,
		SessionID: r.sessionID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func rawArguments(args string) json.RawMessage {
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, map[string]any)                  {}
func (nopRecorder) RecordAction(context.Context, int, string, domain.ActionResult) {}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
