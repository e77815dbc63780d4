package display

import (
	"context"
	"image"
)

// DisplayController abstracts the display server (X11, macOS Quartz).
//
// Two coordinate spaces meet here. CaptureScreen returns the physical frame,
// which on high-density displays is a multiple of the logical size.
// GetScreenDimensions and every pointer operation use the logical input space.
type DisplayController interface {
	// Screen operations
	CaptureScreen(ctx context.Context) (image.Image, error)
	GetScreenDimensions(ctx context.Context) (width, height int, err error)

	// Mouse operations
	GetCursorPosition(ctx context.Context) (x, y int, err error)
	MoveMouse(ctx context.Context, x, y int) error
	ClickMouse(ctx context.Context, button MouseButton, clicks int) error
	ScrollMouse(ctx context.Context, clicks int, direction string) error

	// Keyboard operations. Keys are canonical names, see CanonicalKeys.
	TypeText(ctx context.Context, text string, delayMs int) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}

// MouseButton represents a mouse button
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonMiddle
	MouseButtonRight
)

// String returns the string representation of a mouse button
func (b MouseButton) String() string {
	switch b {
	case MouseButtonLeft:
		return "left"
	case MouseButtonMiddle:
		return "middle"
	case MouseButtonRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseMouseButton parses a string into a MouseButton, defaulting to left
func ParseMouseButton(s string) MouseButton {
	switch s {
	case "middle":
		return MouseButtonMiddle
	case "right":
		return MouseButtonRight
	default:
		return MouseButtonLeft
	}
}

// CanonicalKeys are the named keys every backend understands, besides
// single printable characters.
var CanonicalKeys = []string{
	"command", "ctrl", "alt", "option", "shift", "fn",
	"enter", "escape", "tab", "space", "backspace", "delete",
	"up", "down", "left", "right",
	"home", "end", "pageup", "pagedown", "capslock",
	"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12",
}

// IsCanonicalKey reports whether key is a named canonical key or a single character
func IsCanonicalKey(key string) bool {
	if len([]rune(key)) == 1 {
		return true
	}
	for _, k := range CanonicalKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Provider creates DisplayController instances for a specific display server
type Provider interface {
	// GetController creates a new DisplayController for the specified display
	GetController(display string) (DisplayController, error)

	// GetDisplayInfo returns information about the display server
	GetDisplayInfo() DisplayInfo

	// IsAvailable returns true if this display server is available on the current system
	IsAvailable() bool
}

// DisplayInfo contains metadata about a display server
type DisplayInfo struct {
	Name string // "x11", "macos"
	// ScalesInput is true when the OS input space can differ from physical pixels
	ScalesInput      bool
	SupportsKeyHold  bool
	RequiresSettings string
}
