//go:build darwin

package macos

import (
	"context"
	"fmt"
	"image"
	"time"

	robotgo "github.com/go-vgo/robotgo"
)

// MacOSClient provides macOS screen control operations using RobotGo.
//
// RobotGo reports the screen size in points (the logical input space) and
// captures in backing pixels, so on Retina displays the captured frame is
// larger than the size returned by ScreenSize.
type MacOSClient struct{}

// NewMacOSClient creates a new macOS client
func NewMacOSClient() (*MacOSClient, error) {
	if w, h := robotgo.GetScreenSize(); w <= 0 || h <= 0 {
		return nil, fmt.Errorf("failed to read screen size")
	}
	return &MacOSClient{}, nil
}

// ScreenSize returns the main display size in points, read fresh on every call
func (c *MacOSClient) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}

// CaptureFull captures the whole main display at backing resolution
func (c *MacOSClient) CaptureFull() (image.Image, error) {
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("failed to capture screen")
	}
	return img, nil
}

// CursorPosition returns the pointer position in points
func (c *MacOSClient) CursorPosition() (int, int) {
	return robotgo.Location()
}

// Move moves the pointer to a position in points
func (c *MacOSClient) Move(x, y int) {
	robotgo.Move(x, y)
}

// Click clicks button the given number of times
func (c *MacOSClient) Click(ctx context.Context, button string, clicks int) error {
	robotButton, err := robotgoButton(button)
	if err != nil {
		return err
	}

	if clicks == 2 && robotButton == "left" {
		robotgo.Click(robotButton, true)
		return nil
	}

	for i := range clicks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		robotgo.Click(robotButton, false)
	}
	return nil
}

// Scroll scrolls the wheel by clicks notches in direction
func (c *MacOSClient) Scroll(clicks int, direction string) {
	robotgo.ScrollDir(clicks, direction)
}

// Type types text, one character at a time when delayMs is positive
func (c *MacOSClient) Type(ctx context.Context, text string, delayMs int) error {
	if delayMs <= 0 {
		robotgo.Type(text)
		return nil
	}

	for _, char := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		robotgo.Type(string(char))
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
	}
	return nil
}

// Toggle presses ("down") or releases ("up") a canonical key
func (c *MacOSClient) Toggle(key, state string) error {
	name, err := robotgoKey(key)
	if err != nil {
		return err
	}
	if err := robotgo.KeyToggle(name, state); err != nil {
		return fmt.Errorf("failed to toggle key %s %s: %w", key, state, err)
	}
	return nil
}
