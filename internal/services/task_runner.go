package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/google/uuid"

	config "github.com/inference-gateway/desktop-agent/config"
	agent "github.com/inference-gateway/desktop-agent/internal/agent"
	display "github.com/inference-gateway/desktop-agent/internal/display"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	executor "github.com/inference-gateway/desktop-agent/internal/executor"
	metrics "github.com/inference-gateway/desktop-agent/internal/infra/metrics"
	storage "github.com/inference-gateway/desktop-agent/internal/infra/storage"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

// ErrEmptyTask is returned when a task request has no instruction
var ErrEmptyTask = errors.New("task must not be empty")

// RunnerOptions holds the per-task settings handed to each executor,
// scaler and orchestrator the runner builds
type RunnerOptions struct {
	Agent         agent.Options
	Executor      executor.Options
	Vision        vision.Options
	MaxIterations int
}

// TaskRunner runs one task at a time against a single desktop. Every task
// gets its own executor, session logger and orchestrator so no state leaks
// between sessions. Manual screenshot and action requests share one
// long-lived executor and log to their own session.
type TaskRunner struct {
	display   display.DisplayController
	reasoner  domain.Reasoner
	store     storage.EventStore
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
	frames    *FrameBuffer
	opts      RunnerOptions

	running atomic.Bool
	current atomic.Value

	manualOnce     sync.Once
	manualExecutor *executor.Executor
	manualLog      *SessionLogger

	newSessionID func() string
}

// NewTaskRunner creates a runner over the shared collaborators
func NewTaskRunner(
	dc display.DisplayController,
	reasoner domain.Reasoner,
	store storage.EventStore,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	frames *FrameBuffer,
	opts RunnerOptions,
) *TaskRunner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = opts.Agent.MaxIterations
	}
	if frames == nil {
		frames = NewFrameBuffer(0)
	}
	r := &TaskRunner{
		display:      dc,
		reasoner:     reasoner,
		store:        store,
		publisher:    publisher,
		metrics:      m,
		frames:       frames,
		opts:         opts,
		newSessionID: func() string { return uuid.New().String() },
	}
	r.current.Store("")
	return r
}

// Running reports whether a task is in progress
func (r *TaskRunner) Running() bool {
	return r.running.Load()
}

// CurrentSession returns the id of the running task's session, or ""
func (r *TaskRunner) CurrentSession() string {
	id, _ := r.current.Load().(string)
	return id
}

// Frames returns the buffer of recently captured frames
func (r *TaskRunner) Frames() *FrameBuffer {
	return r.frames
}

// RunTask executes a task to completion. It returns ErrTaskInProgress when
// another task holds the desktop.
func (r *TaskRunner) RunTask(ctx context.Context, req domain.TaskRequest) (domain.TaskResult, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return domain.TaskResult{}, ErrEmptyTask
	}

	if !r.running.CompareAndSwap(false, true) {
		return domain.TaskResult{}, domain.ErrTaskInProgress
	}
	defer r.running.Store(false)

	sessionID := r.newSessionID()
	r.current.Store(sessionID)
	defer r.current.Store("")

	agentOpts := r.opts.Agent
	agentOpts.MaxIterations = r.maxIterations(req.MaxIterations)

	sessionLog := NewSessionLogger(r.store, sessionID)
	exec := executor.New(r.display, vision.NewScaler(r.display, r.opts.Vision), r.opts.Executor,
		executor.WithMetrics(r.metrics),
		executor.WithFrameSink(r.frames.Sink(sessionID)))

	orchestrator := agent.NewOrchestrator(r.reasoner, exec, agentOpts,
		agent.WithRecorder(sessionLog),
		agent.WithPublisher(r.publisher),
		agent.WithMetrics(r.metrics))

	start := time.Now()
	result := orchestrator.Run(ctx, sessionID, task)

	logger.Info("Task finished",
		"session_id", sessionID,
		"success", result.Success,
		"state", result.State.String(),
		"iterations", result.Iterations,
		"actions", result.ActionCount,
		"duration", time.Since(start).String())

	if failures := sessionLog.StoreFailures(); failures > 0 {
		logger.Warn("Session log incomplete", "session_id", sessionID, "failed_appends", failures)
	}
	return result, nil
}

func (r *TaskRunner) maxIterations(requested int) int {
	n := requested
	if n <= 0 {
		n = r.opts.MaxIterations
	}
	if n <= 0 {
		n = 10
	}
	if n > config.MaxIterationsLimit {
		n = config.MaxIterationsLimit
	}
	return n
}

// Screenshot captures a frame outside any task
func (r *TaskRunner) Screenshot(ctx context.Context) (domain.ActionResult, error) {
	return r.ExecuteAction(ctx, domain.ActionRequest{Action: string(domain.ActionScreenshot)})
}

// ExecuteAction performs one manual action. Manual actions hold the desktop
// like a task does, so they never interleave with the model's.
func (r *TaskRunner) ExecuteAction(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.ActionResult{}, domain.ErrTaskInProgress
	}
	defer r.running.Store(false)

	exec, sessionLog := r.manual()

	ctx = logger.WithSession(ctx, sessionLog.SessionID())
	result := exec.ExecuteRequest(ctx, req)
	sessionLog.RecordAction(ctx, 0, "", result)
	if result.Clamped {
		sessionLog.Record(ctx, domain.EventCoordinateClamped, map[string]any{
			"action":          result.Type,
			"vision_position": result.VisionPosition,
			"position":        result.Position,
		})
	}

	r.publish(sessionLog.SessionID(), domain.ObserverAction, result.WithoutImage())
	return result, nil
}

// ManualSession returns the session id manual actions are logged under
func (r *TaskRunner) ManualSession() string {
	_, sessionLog := r.manual()
	return sessionLog.SessionID()
}

func (r *TaskRunner) manual() (*executor.Executor, *SessionLogger) {
	r.manualOnce.Do(func() {
		sessionID := "manual-" + r.newSessionID()
		r.manualLog = NewSessionLogger(r.store, sessionID)
		r.manualExecutor = executor.New(r.display, vision.NewScaler(r.display, r.opts.Vision), r.opts.Executor,
			executor.WithMetrics(r.metrics),
			executor.WithFrameSink(r.frames.Sink(sessionID)))
	})
	return r.manualExecutor, r.manualLog
}

// Summary summarizes a stored session
func (r *TaskRunner) Summary(ctx context.Context, sessionID string) (*LogSummary, error) {
	events, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Summarize(sessionID, events), nil
}

// Sessions lists stored sessions, newest first
func (r *TaskRunner) Sessions(ctx context.Context, limit int) ([]storage.SessionSummary, error) {
	sessions, err := r.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Health checks the display and the event store
func (r *TaskRunner) Health(ctx context.Context) map[string]string {
	status := map[string]string{"display": "ok", "storage": "ok"}
	if _, _, err := r.display.GetScreenDimensions(ctx); err != nil {
		status["display"] = err.Error()
	}
	if err := r.store.Health(ctx); err != nil {
		status["storage"] = err.Error()
	}
	return status
}

func (r *TaskRunner) publish(sessionID, eventType string, data any) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(domain.ObserverEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
