package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	zap "go.uber.org/zap"
	rate "golang.org/x/time/rate"

	display "github.com/inference-gateway/desktop-agent/internal/display"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	metrics "github.com/inference-gateway/desktop-agent/internal/infra/metrics"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

// Options tunes input timing
type Options struct {
	TypingDelayMs int
	ChordHold     time.Duration
	MaxWait       time.Duration
	// ActionsPerMinute paces actions when positive
	ActionsPerMinute int
}

// Executor validates and performs single actions against the logical input
// space. It owns the action counter and the canvas of the last screenshot,
// so each session needs its own Executor.
type Executor struct {
	display display.DisplayController
	scaler  *vision.Scaler
	opts    Options
	metrics *metrics.Metrics
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	onFrame func(*vision.VisionFrame)

	actionCount atomic.Int64

	mu        sync.Mutex
	lastFrame *vision.VisionFrame
}

// Option configures an Executor
type Option func(*Executor)

// WithMetrics records action outcomes and clamps
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithSleeper replaces the pause used by wait, chords and pacing
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithFrameSink receives every successfully captured frame
func WithFrameSink(sink func(*vision.VisionFrame)) Option {
	return func(e *Executor) { e.onFrame = sink }
}

// New creates an executor over a display controller and its scaler
func New(dc display.DisplayController, scaler *vision.Scaler, opts Options, options ...Option) *Executor {
	e := &Executor{
		display: dc,
		scaler:  scaler,
		opts:    opts,
		sleep:   sleepContext,
	}
	if opts.ActionsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(opts.ActionsPerMinute)/60.0), 1)
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// ActionCount returns the number of Execute calls so far
func (e *Executor) ActionCount() int64 {
	return e.actionCount.Load()
}

// LastFrame returns the most recent screenshot, or nil
func (e *Executor) LastFrame() *vision.VisionFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFrame
}

// Canvas returns the canvas of the last screenshot. Before any screenshot
// it is derived from the live logical size.
func (e *Executor) Canvas(ctx context.Context) (vision.Canvas, error) {
	if frame := e.LastFrame(); frame != nil {
		return frame.Canvas(), nil
	}
	return e.scaler.CurrentCanvas(ctx)
}

// ExecuteRequest parses and executes a wire request. Requests that do not
// parse still count as an action and yield a failure result.
func (e *Executor) ExecuteRequest(ctx context.Context, req domain.ActionRequest) domain.ActionResult {
	action, err := domain.ParseAction(req)
	if err != nil {
		seq := e.actionCount.Add(1)
		result := domain.NewActionResult(req.Action, seq).Fail("%v", err)
		if req.Action == "" {
			result.Type = "unknown"
		}
		e.metrics.ObserveAction(result.Type, false, 0)
		logger.FromContext(ctx).Warn("Rejected action request", zap.String("action", req.Action), zap.Error(err))
		return result
	}
	return e.Execute(ctx, action)
}

// Execute performs one action. It never returns an error: failures are
// reported through the result.
func (e *Executor) Execute(ctx context.Context, action domain.Action) domain.ActionResult {
	start := time.Now()
	seq := e.actionCount.Add(1)

	typeName := "unknown"
	if action != nil {
		typeName = string(action.Type())
	}
	result := domain.NewActionResult(typeName, seq)

	log := logger.FromContext(ctx).With(zap.String("action", typeName), zap.Int64("sequence", seq))
	ctx = logger.ContextWithLogger(ctx, log)

	if err := e.pace(ctx, action); err != nil {
		result = result.Fail("action cancelled while pacing: %v", err)
	} else {
		result = e.dispatch(ctx, action, result)
	}

	e.metrics.ObserveAction(typeName, result.Success, time.Since(start))
	if !result.Success {
		log.Warn("Action failed", zap.String("error", result.Error))
	} else {
		log.Debug("Action executed", zap.Duration("duration", time.Since(start)))
	}
	return result
}

func (e *Executor) dispatch(ctx context.Context, action domain.Action, result domain.ActionResult) domain.ActionResult {
	switch a := action.(type) {
	case domain.ScreenshotAction:
		return e.screenshot(ctx, result)
	case domain.MoveAction:
		return e.move(ctx, a, result)
	case domain.ClickAction:
		return e.click(ctx, a, result)
	case domain.TypeAction:
		return e.typeText(ctx, a, result)
	case domain.KeyAction:
		return e.key(ctx, a, result)
	case domain.WaitAction:
		return e.wait(ctx, a, result)
	case domain.ScrollAction:
		return e.scroll(ctx, a, result)
	case domain.CursorPositionAction:
		return e.cursorPosition(ctx, result)
	default:
		return result.Fail("%v: %T", domain.ErrUnknownAction, action)
	}
}

func (e *Executor) pace(ctx context.Context, action domain.Action) error {
	if e.limiter == nil {
		return nil
	}
	if _, ok := action.(domain.WaitAction); ok {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Executor) screenshot(ctx context.Context, result domain.ActionResult) domain.ActionResult {
	frame, err := e.scaler.CaptureAndScale(ctx, result.Sequence)
	if err != nil {
		return result.Fail("%v", err)
	}

	e.mu.Lock()
	e.lastFrame = frame
	e.mu.Unlock()

	if e.onFrame != nil {
		e.onFrame(frame)
	}

	result.Success = true
	result.ScreenshotData = &domain.ScreenshotData{
		Data:          frame.Base64(),
		MimeType:      frame.MimeType,
		Width:         frame.Width,
		Height:        frame.Height,
		LogicalWidth:  frame.LogicalWidth,
		LogicalHeight: frame.LogicalHeight,
		ScaleFactor:   frame.ScaleFactor,
		Path:          frame.Path,
	}
	return result
}

// resolve maps a vision point to logical space and checks it against the
// live logical bounds. Nothing is sent to the OS when it fails.
func (e *Executor) resolve(ctx context.Context, p domain.Point, result *domain.ActionResult) (domain.Point, error) {
	canvas, err := e.Canvas(ctx)
	if err != nil {
		return domain.Point{}, err
	}
	if !canvas.Valid() {
		return domain.Point{}, fmt.Errorf("no valid canvas for coordinate mapping")
	}

	m := canvas.ToLogical(p.X, p.Y)
	result.VisionPosition = &domain.Point{X: m.Vision.X, Y: m.Vision.Y}
	result.Position = &domain.Point{X: m.Logical.X, Y: m.Logical.Y}
	result.Clamped = m.Clamped()

	if m.VisionClamped {
		e.metrics.CoordinateClamped("vision")
		logger.FromContext(ctx).Warn("Coordinate outside vision canvas clamped",
			zap.Int("requested_x", p.X), zap.Int("requested_y", p.Y),
			zap.Int("clamped_x", m.Vision.X), zap.Int("clamped_y", m.Vision.Y),
			zap.Int("canvas_width", canvas.VisionWidth), zap.Int("canvas_height", canvas.VisionHeight))
	}
	if m.LogicalClamped {
		e.metrics.CoordinateClamped("logical")
		logger.FromContext(ctx).Warn("Mapped coordinate clamped to logical screen",
			zap.Int("x", m.Logical.X), zap.Int("y", m.Logical.Y))
	}

	lw, lh, err := e.display.GetScreenDimensions(ctx)
	if err != nil {
		return domain.Point{}, fmt.Errorf("failed to read screen dimensions: %w", err)
	}
	if !vision.ContainsLogical(m.Logical, lw, lh) {
		return domain.Point{}, fmt.Errorf("coordinate (%d, %d) is outside the logical screen %dx%d",
			m.Logical.X, m.Logical.Y, lw, lh)
	}
	return m.Logical, nil
}

func (e *Executor) move(ctx context.Context, a domain.MoveAction, result domain.ActionResult) domain.ActionResult {
	p, err := e.resolve(ctx, a.Coordinate, &result)
	if err != nil {
		return result.Fail("%v", err)
	}
	if err := e.display.MoveMouse(ctx, p.X, p.Y); err != nil {
		return result.Fail("failed to move mouse: %v", err)
	}
	result.Success = true
	return result
}

func (e *Executor) click(ctx context.Context, a domain.ClickAction, result domain.ActionResult) domain.ActionResult {
	count := a.Count
	if count < 1 {
		count = 1
	}
	result.Button = string(a.Button)
	result.Clicks = count

	if a.Coordinate != nil {
		p, err := e.resolve(ctx, *a.Coordinate, &result)
		if err != nil {
			return result.Fail("%v", err)
		}
		if err := e.display.MoveMouse(ctx, p.X, p.Y); err != nil {
			return result.Fail("failed to move mouse: %v", err)
		}
	} else if x, y, err := e.display.GetCursorPosition(ctx); err == nil {
		result.Position = &domain.Point{X: x, Y: y}
	}

	if err := e.display.ClickMouse(ctx, display.ParseMouseButton(string(a.Button)), count); err != nil {
		return result.Fail("failed to click: %v", err)
	}
	result.Success = true
	return result
}

func (e *Executor) typeText(ctx context.Context, a domain.TypeAction, result domain.ActionResult) domain.ActionResult {
	result.Text = a.Text
	if err := e.display.TypeText(ctx, a.Text, e.opts.TypingDelayMs); err != nil {
		return result.Fail("failed to type text: %v", err)
	}
	result.Length = utf8.RuneCountInString(a.Text)
	result.Success = true
	return result
}

func (e *Executor) key(ctx context.Context, a domain.KeyAction, result domain.ActionResult) domain.ActionResult {
	result.Text = a.Combo
	keys, err := ParseKeyCombo(a.Combo)
	if err != nil {
		return result.Fail("%v", err)
	}
	result.Keys = keys

	if err := e.pressChord(ctx, keys); err != nil {
		return result.Fail("failed to press %s: %v", a.Combo, err)
	}
	result.Success = true
	return result
}

// pressChord presses keys down in order, holds, then releases them in
// reverse order. A failed press releases whatever is already down.
func (e *Executor) pressChord(ctx context.Context, keys []string) error {
	pressed := make([]string, 0, len(keys))

	release := func() error {
		var errs []error
		for i := len(pressed) - 1; i >= 0; i-- {
			if err := e.display.KeyUp(ctx, pressed[i]); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", pressed[i], err))
			}
		}
		return errors.Join(errs...)
	}

	for _, k := range keys {
		if err := e.display.KeyDown(ctx, k); err != nil {
			_ = release()
			return fmt.Errorf("press %s: %w", k, err)
		}
		pressed = append(pressed, k)
	}

	if len(keys) > 1 && e.opts.ChordHold > 0 {
		// releasing must happen even when the context is cancelled mid-hold
		_ = e.sleep(ctx, e.opts.ChordHold)
	}

	return release()
}

func (e *Executor) wait(ctx context.Context, a domain.WaitAction, result domain.ActionResult) domain.ActionResult {
	d := max(a.Duration, 0)
	if e.opts.MaxWait > 0 && d > e.opts.MaxWait {
		d = e.opts.MaxWait
	}
	result.Duration = d.Seconds()

	if err := e.sleep(ctx, d); err != nil {
		return result.Fail("wait interrupted: %v", err)
	}
	result.Success = true
	return result
}

func (e *Executor) scroll(ctx context.Context, a domain.ScrollAction, result domain.ActionResult) domain.ActionResult {
	result.Direction = string(a.Direction)
	result.Amount = a.Amount

	if a.Coordinate != nil {
		p, err := e.resolve(ctx, *a.Coordinate, &result)
		if err != nil {
			return result.Fail("%v", err)
		}
		if err := e.display.MoveMouse(ctx, p.X, p.Y); err != nil {
			return result.Fail("failed to move mouse: %v", err)
		}
	}

	if err := e.display.ScrollMouse(ctx, a.Amount, string(a.Direction)); err != nil {
		return result.Fail("failed to scroll: %v", err)
	}
	result.Success = true
	return result
}

func (e *Executor) cursorPosition(ctx context.Context, result domain.ActionResult) domain.ActionResult {
	x, y, err := e.display.GetCursorPosition(ctx)
	if err != nil {
		return result.Fail("failed to read cursor position: %v", err)
	}
	canvas, err := e.Canvas(ctx)
	if err != nil {
		return result.Fail("%v", err)
	}

	v := canvas.ToVision(x, y)
	result.Position = &domain.Point{X: x, Y: y}
	result.VisionPosition = &v
	result.Success = true
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
