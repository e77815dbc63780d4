//go:build darwin

package macos

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>

bool checkAccessibilityPermissions() {
    return AXIsProcessTrusted();
}
*/
import "C"

import (
	"context"
	"fmt"
	"image"
	"os"

	display "github.com/inference-gateway/desktop-agent/internal/display"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// Controller implements display.DisplayController for macOS using RobotGo
type Controller struct {
	client *MacOSClient
}

var _ display.DisplayController = (*Controller)(nil)

func (c *Controller) CaptureScreen(ctx context.Context) (image.Image, error) {
	return c.client.CaptureFull()
}

func (c *Controller) GetScreenDimensions(ctx context.Context) (width, height int, err error) {
	w, h := c.client.ScreenSize()
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid screen size %dx%d", w, h)
	}
	return w, h, nil
}

func (c *Controller) GetCursorPosition(ctx context.Context) (x, y int, err error) {
	x, y = c.client.CursorPosition()
	return x, y, nil
}

func (c *Controller) MoveMouse(ctx context.Context, x, y int) error {
	c.client.Move(x, y)
	return nil
}

func (c *Controller) ClickMouse(ctx context.Context, button display.MouseButton, clicks int) error {
	return c.client.Click(ctx, button.String(), clicks)
}

func (c *Controller) ScrollMouse(ctx context.Context, clicks int, direction string) error {
	switch direction {
	case "up", "down", "left", "right":
	default:
		return fmt.Errorf("invalid scroll direction: %s", direction)
	}
	c.client.Scroll(clicks, direction)
	return nil
}

func (c *Controller) TypeText(ctx context.Context, text string, delayMs int) error {
	return c.client.Type(ctx, text, delayMs)
}

func (c *Controller) KeyDown(ctx context.Context, key string) error {
	return c.client.Toggle(key, "down")
}

func (c *Controller) KeyUp(ctx context.Context, key string) error {
	return c.client.Toggle(key, "up")
}

func (c *Controller) Close() error {
	return nil
}

// Provider implements the display.Provider interface for macOS
type Provider struct{}

var _ display.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{}
}

// GetController ignores the display name; RobotGo drives the main display
func (p *Provider) GetController(string) (display.DisplayController, error) {
	if os.Getenv("SSH_CONNECTION") != "" {
		return nil, fmt.Errorf("macOS display not available in SSH session")
	}

	if !hasAccessibilityPermissions() {
		return nil, fmt.Errorf("accessibility permissions required. Grant access in System Settings > Privacy & Security > Accessibility")
	}

	client, err := NewMacOSClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create macOS client: %w", err)
	}

	return &Controller{client: client}, nil
}

// hasAccessibilityPermissions checks AXIsProcessTrusted
func hasAccessibilityPermissions() bool {
	trusted := bool(C.checkAccessibilityPermissions())
	if !trusted {
		logger.Debug("Accessibility permissions not granted")
	}
	return trusted
}

func (p *Provider) GetDisplayInfo() display.DisplayInfo {
	return display.DisplayInfo{
		Name:             "macos",
		ScalesInput:      true,
		SupportsKeyHold:  true,
		RequiresSettings: "Privacy & Security > Accessibility, Screen Recording",
	}
}

func (p *Provider) IsAvailable() bool {
	return true
}

func init() {
	display.Register(NewProvider())
}
