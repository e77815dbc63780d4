package services

import (
	"errors"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

// ErrNoFrames is returned when the buffer has not received a frame yet
var ErrNoFrames = errors.New("no frames captured yet")

// FrameRecord is a captured vision frame as exposed by the API
type FrameRecord struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id,omitempty"`
	CapturedAt       time.Time `json:"captured_at"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	LogicalWidth     int       `json:"logical_width"`
	LogicalHeight    int       `json:"logical_height"`
	PhysicalWidth    int       `json:"physical_width"`
	PhysicalHeight   int       `json:"physical_height"`
	ScaleFactor      float64   `json:"scale_factor"`
	DevicePixelRatio float64   `json:"device_pixel_ratio"`
	MimeType         string    `json:"mime_type"`
	Path             string    `json:"path,omitempty"`
	Data             string    `json:"data,omitempty"`
}

// WithoutData returns a copy with the image payload removed
func (r FrameRecord) WithoutData() FrameRecord {
	r.Data = ""
	return r
}

// NewFrameRecord converts a vision frame into a record
func NewFrameRecord(sessionID string, frame *vision.VisionFrame) FrameRecord {
	return FrameRecord{
		ID:               uuid.New().String(),
		SessionID:        sessionID,
		CapturedAt:       frame.CapturedAt,
		Width:            frame.Width,
		Height:           frame.Height,
		LogicalWidth:     frame.LogicalWidth,
		LogicalHeight:    frame.LogicalHeight,
		PhysicalWidth:    frame.PhysicalWidth,
		PhysicalHeight:   frame.PhysicalHeight,
		ScaleFactor:      frame.ScaleFactor,
		DevicePixelRatio: frame.DevicePixelRatio,
		MimeType:         frame.MimeType,
		Path:             frame.Path,
		Data:             frame.Base64(),
	}
}

// FrameBuffer is a thread-safe ring of the most recent frames across
// sessions. The oldest frame is evicted once the buffer is full.
type FrameBuffer struct {
	mu           sync.RWMutex
	frames       []FrameRecord
	maxSize      int
	currentIndex int
	count        int
}

// NewFrameBuffer creates a buffer holding up to maxSize frames
func NewFrameBuffer(maxSize int) *FrameBuffer {
	if maxSize <= 0 {
		maxSize = 30
	}
	return &FrameBuffer{
		frames:  make([]FrameRecord, maxSize),
		maxSize: maxSize,
	}
}

// Add stores a record, evicting the oldest when full
func (b *FrameBuffer) Add(record FrameRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CapturedAt.IsZero() {
		record.CapturedAt = time.Now()
	}

	b.frames[b.currentIndex] = record
	b.currentIndex = (b.currentIndex + 1) % b.maxSize
	if b.count < b.maxSize {
		b.count++
	}
}

// Sink returns an executor frame sink that records frames for a session
func (b *FrameBuffer) Sink(sessionID string) func(*vision.VisionFrame) {
	return func(frame *vision.VisionFrame) {
		b.Add(NewFrameRecord(sessionID, frame))
	}
}

// Latest returns the most recent frame
func (b *FrameBuffer) Latest() (FrameRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return FrameRecord{}, ErrNoFrames
	}
	latestIndex := (b.currentIndex - 1 + b.maxSize) % b.maxSize
	return b.frames[latestIndex], nil
}

// Recent returns up to limit frames, newest first, without image data
func (b *FrameBuffer) Recent(limit int) []FrameRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > b.count {
		limit = b.count
	}

	result := make([]FrameRecord, 0, limit)
	for i := 0; i < limit; i++ {
		index := (b.currentIndex - 1 - i + b.maxSize) % b.maxSize
		result = append(result, b.frames[index].WithoutData())
	}
	return result
}

// Count returns the number of frames held
func (b *FrameBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear drops every frame
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = make([]FrameRecord, b.maxSize)
	b.currentIndex = 0
	b.count = 0
}
