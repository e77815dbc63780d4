// Package displaytest provides a recording DisplayController for tests.
package displaytest

import (
	"context"
	"fmt"
	"image"
	"sync"

	display "github.com/inference-gateway/desktop-agent/internal/display"
)

// FakeController records every input event in order and serves a
// synthetic frame. Fields may be changed between calls to simulate a
// display reconfiguration.
type FakeController struct {
	mu sync.Mutex

	LogicalWidth  int
	LogicalHeight int
	// DevicePixelRatio scales the captured frame relative to the logical size
	DevicePixelRatio int

	CursorX, CursorY int

	// Errors keyed by operation name ("capture", "move", "click", "scroll",
	// "type", "keydown:<key>", "keyup:<key>") are returned by that operation
	Errors map[string]error

	Events []string
	Typed  []string
}

var _ display.DisplayController = (*FakeController)(nil)

// NewFakeController returns a fake with the given logical size and pixel ratio
func NewFakeController(logicalW, logicalH, dpr int) *FakeController {
	if dpr < 1 {
		dpr = 1
	}
	return &FakeController{
		LogicalWidth:     logicalW,
		LogicalHeight:    logicalH,
		DevicePixelRatio: dpr,
		Errors:           map[string]error{},
	}
}

// Resize changes the logical size reported from now on
func (f *FakeController) Resize(w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogicalWidth, f.LogicalHeight = w, h
}

// Fail makes the named operation return err
func (f *FakeController) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[op] = err
}

// Recorded returns a copy of the event log
func (f *FakeController) Recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Events...)
}

// InputEvents returns recorded events excluding captures and size queries
func (f *FakeController) InputEvents() []string {
	var out []string
	for _, e := range f.Recorded() {
		if e != "capture" {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the event log
func (f *FakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.Typed = nil
}

func (f *FakeController) record(op, event string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[op]; err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	return nil
}

// CaptureScreen returns a gradient frame of logical size times the pixel ratio
func (f *FakeController) CaptureScreen(ctx context.Context) (image.Image, error) {
	if err := f.record("capture", "capture"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	w, h := f.LogicalWidth*f.DevicePixelRatio, f.LogicalHeight*f.DevicePixelRatio
	f.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = uint8(x), uint8(y), 128, 255
		}
	}
	return img, nil
}

func (f *FakeController) GetScreenDimensions(ctx context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["dimensions"]; err != nil {
		return 0, 0, err
	}
	return f.LogicalWidth, f.LogicalHeight, nil
}

func (f *FakeController) GetCursorPosition(ctx context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CursorX, f.CursorY, nil
}

func (f *FakeController) MoveMouse(ctx context.Context, x, y int) error {
	if err := f.record("move", fmt.Sprintf("move:%d,%d", x, y)); err != nil {
		return err
	}
	f.mu.Lock()
	f.CursorX, f.CursorY = x, y
	f.mu.Unlock()
	return nil
}

func (f *FakeController) ClickMouse(ctx context.Context, button display.MouseButton, clicks int) error {
	return f.record("click", fmt.Sprintf("click:%s:%d", button, clicks))
}

func (f *FakeController) ScrollMouse(ctx context.Context, clicks int, direction string) error {
	return f.record("scroll", fmt.Sprintf("scroll:%s:%d", direction, clicks))
}

func (f *FakeController) TypeText(ctx context.Context, text string, delayMs int) error {
	if err := f.record("type", "type:"+text); err != nil {
		return err
	}
	f.mu.Lock()
	f.Typed = append(f.Typed, text)
	f.mu.Unlock()
	return nil
}

func (f *FakeController) KeyDown(ctx context.Context, key string) error {
	return f.record("keydown:"+key, "down:"+key)
}

func (f *FakeController) KeyUp(ctx context.Context, key string) error {
	return f.record("keyup:"+key, "up:"+key)
}

func (f *FakeController) Close() error {
	return nil
}

// Provider serves a fixed FakeController through the display registry
type Provider struct {
	Controller *FakeController
	Available  bool
}

var _ display.Provider = (*Provider)(nil)

func (p *Provider) GetController(string) (display.DisplayController, error) {
	return p.Controller, nil
}

func (p *Provider) GetDisplayInfo() display.DisplayInfo {
	return display.DisplayInfo{Name: "fake", ScalesInput: true, SupportsKeyHold: true}
}

func (p *Provider) IsAvailable() bool {
	return p.Available
}
