package domain

import (
	"fmt"
	"time"
)

// TimestampFormat is used for every timestamp carried in action results
const TimestampFormat = time.RFC3339Nano

// ActionResult is the outcome of one executed action. It is always a
// well-formed value: failures set Success to false and describe themselves
// in Error.
type ActionResult struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
	Sequence  int64  `json:"sequence"`

	// Position is in logical input space, VisionPosition in the model's canvas
	Position       *Point `json:"position,omitempty"`
	VisionPosition *Point `json:"vision_position,omitempty"`
	Clamped        bool   `json:"clamped,omitempty"`

	Button    string   `json:"button,omitempty"`
	Clicks    int      `json:"clicks,omitempty"`
	Text      string   `json:"text,omitempty"`
	Length    int      `json:"length,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Duration  float64  `json:"duration,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Amount    int      `json:"amount,omitempty"`

	*ScreenshotData
}

// ScreenshotData is carried by screenshot results. Width and Height are the
// vision canvas; ScaleFactor is vision/logical.
type ScreenshotData struct {
	Data          string  `json:"data"`
	MimeType      string  `json:"mime_type"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	LogicalWidth  int     `json:"logical_width"`
	LogicalHeight int     `json:"logical_height"`
	ScaleFactor   float64 `json:"scale_factor"`
	Path          string  `json:"path,omitempty"`
}

// NewActionResult starts a result for the given action name, stamped now
func NewActionResult(actionType string, sequence int64) ActionResult {
	return ActionResult{
		Type:      actionType,
		Timestamp: time.Now().UTC().Format(TimestampFormat),
		Sequence:  sequence,
	}
}

// Fail marks the result as failed with a formatted message
func (r ActionResult) Fail(format string, args ...any) ActionResult {
	r.Success = false
	r.Error = fmt.Sprintf(format, args...)
	return r
}

// HasImage reports whether the result carries screenshot data
func (r ActionResult) HasImage() bool {
	return r.ScreenshotData != nil && r.Data != ""
}

// WithoutImage returns a copy whose base64 payload is replaced by a short
// placeholder, suitable for logs and text tool results
func (r ActionResult) WithoutImage() ActionResult {
	if r.ScreenshotData == nil {
		return r
	}
	shot := *r.ScreenshotData
	if shot.Data != "" {
		shot.Data = ElidedImage(len(shot.Data))
	}
	r.ScreenshotData = &shot
	return r
}

// ElidedImage is the placeholder written in place of base64 image data
func ElidedImage(size int) string {
	return fmt.Sprintf("<image %d bytes elided>", size)
}
