package x11

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	display "github.com/inference-gateway/desktop-agent/internal/display"
)

const clickInterval = 100 * time.Millisecond

// Controller implements display.DisplayController on top of X11Client
type Controller struct {
	client *X11Client
}

var _ display.DisplayController = (*Controller)(nil)

// CaptureScreen captures the whole root window
func (c *Controller) CaptureScreen(ctx context.Context) (image.Image, error) {
	return c.client.CaptureRoot()
}

// GetScreenDimensions returns the root window size
func (c *Controller) GetScreenDimensions(ctx context.Context) (width, height int, err error) {
	w, h := c.client.ScreenSize()
	return w, h, nil
}

// GetCursorPosition returns the current cursor position
func (c *Controller) GetCursorPosition(ctx context.Context) (x, y int, err error) {
	return c.client.CursorPosition()
}

// MoveMouse moves the cursor to the specified coordinates
func (c *Controller) MoveMouse(ctx context.Context, x, y int) error {
	return c.client.WarpPointer(x, y)
}

// ClickMouse clicks the specified mouse button at the current position
func (c *Controller) ClickMouse(ctx context.Context, button display.MouseButton, clicks int) error {
	var code byte
	switch button {
	case display.MouseButtonLeft:
		code = 1
	case display.MouseButtonMiddle:
		code = 2
	case display.MouseButtonRight:
		code = 3
	default:
		return fmt.Errorf("invalid button: %s", button)
	}
	return c.client.PressButton(ctx, code, clicks, clickInterval)
}

// ScrollMouse scrolls the wheel. Buttons 4/5 scroll up/down, 6/7 left/right.
func (c *Controller) ScrollMouse(ctx context.Context, clicks int, direction string) error {
	var code byte
	switch direction {
	case "up":
		code = 4
	case "down":
		code = 5
	case "left":
		code = 6
	case "right":
		code = 7
	default:
		return fmt.Errorf("invalid scroll direction: %s", direction)
	}
	return c.client.PressButton(ctx, code, clicks, 30*time.Millisecond)
}

// TypeText types the given text with the specified delay between keystrokes
func (c *Controller) TypeText(ctx context.Context, text string, delayMs int) error {
	return c.client.TypeRunes(ctx, text, time.Duration(delayMs)*time.Millisecond)
}

// KeyDown presses a canonical key without releasing it
func (c *Controller) KeyDown(ctx context.Context, key string) error {
	return c.sendKey(key, true)
}

// KeyUp releases a canonical key
func (c *Controller) KeyUp(ctx context.Context, key string) error {
	return c.sendKey(key, false)
}

func (c *Controller) sendKey(key string, press bool) error {
	keycode, err := c.client.Keycode(keysymFor(key))
	if err != nil {
		return err
	}
	return c.client.SendKey(keycode, press)
}

// Close closes the X11 connection
func (c *Controller) Close() error {
	c.client.Close()
	return nil
}

// Provider implements the display.Provider interface for X11
type Provider struct{}

var _ display.Provider = (*Provider)(nil)

// NewProvider creates a new X11 provider
func NewProvider() *Provider {
	return &Provider{}
}

// GetController connects to the given X11 display, or $DISPLAY when empty
func (p *Provider) GetController(name string) (display.DisplayController, error) {
	if name == "" {
		name = os.Getenv("DISPLAY")
	}
	client, err := NewX11Client(name)
	if err != nil {
		return nil, err
	}
	return &Controller{client: client}, nil
}

// GetDisplayInfo returns information about the X11 platform
func (p *Provider) GetDisplayInfo() display.DisplayInfo {
	return display.DisplayInfo{
		Name:            "x11",
		ScalesInput:     false,
		SupportsKeyHold: true,
	}
}

// IsAvailable returns true when an X server is reachable through $DISPLAY
func (p *Provider) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

func init() {
	display.Register(NewProvider())
}
