package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	xdraw "golang.org/x/image/draw"

	display "github.com/inference-gateway/desktop-agent/internal/display"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// Options configures the vision box, encoding and persistence of frames
type Options struct {
	MaxWidth  int
	MaxHeight int
	// Format is "png" or "jpeg"
	Format  string
	Quality int
	// PersistDir receives a copy of every frame; empty disables persistence
	PersistDir string
}

// VisionFrame is a captured screen resized for the model. It records the
// logical and physical sizes it was derived from so the transform can be
// inverted.
type VisionFrame struct {
	Image            image.Image
	Width            int
	Height           int
	LogicalWidth     int
	LogicalHeight    int
	PhysicalWidth    int
	PhysicalHeight   int
	ScaleFactor      float64
	DevicePixelRatio float64
	Encoded          []byte
	MimeType         string
	Path             string
	CapturedAt       time.Time
}

// Canvas returns the coordinate mapping this frame defines
func (f *VisionFrame) Canvas() Canvas {
	return Canvas{
		VisionWidth:   f.Width,
		VisionHeight:  f.Height,
		LogicalWidth:  f.LogicalWidth,
		LogicalHeight: f.LogicalHeight,
	}
}

// Base64 returns the encoded frame as standard base64
func (f *VisionFrame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Encoded)
}

// Scaler captures frames and fits them to the vision box
type Scaler struct {
	display display.DisplayController
	opts    Options
}

// NewScaler creates a scaler over a display controller
func NewScaler(dc display.DisplayController, opts Options) *Scaler {
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 85
	}
	return &Scaler{display: dc, opts: opts}
}

// CurrentCanvas derives the canvas from the live logical screen size
func (s *Scaler) CurrentCanvas(ctx context.Context) (Canvas, error) {
	lw, lh, err := s.display.GetScreenDimensions(ctx)
	if err != nil {
		return Canvas{}, fmt.Errorf("failed to read screen dimensions: %w", err)
	}
	return CanvasFor(lw, lh, s.opts.MaxWidth, s.opts.MaxHeight), nil
}

// CaptureAndScale takes one physical screenshot, reads the current logical
// size and resizes the physical frame straight to the vision size in a
// single resampling pass. seq names the persisted file.
func (s *Scaler) CaptureAndScale(ctx context.Context, seq int64) (*VisionFrame, error) {
	physical, err := s.display.CaptureScreen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}

	lw, lh, err := s.display.GetScreenDimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read screen dimensions: %w", err)
	}

	vw, vh, scale := ComputeVisionSize(lw, lh, s.opts.MaxWidth, s.opts.MaxHeight)
	if vw == 0 || vh == 0 {
		return nil, fmt.Errorf("invalid screen dimensions %dx%d", lw, lh)
	}

	bounds := physical.Bounds()
	frame := &VisionFrame{
		Image:            Resize(physical, vw, vh),
		Width:            vw,
		Height:           vh,
		LogicalWidth:     lw,
		LogicalHeight:    lh,
		PhysicalWidth:    bounds.Dx(),
		PhysicalHeight:   bounds.Dy(),
		ScaleFactor:      scale,
		DevicePixelRatio: float64(bounds.Dx()) / float64(lw),
		CapturedAt:       time.Now(),
	}

	frame.Encoded, frame.MimeType, err = Encode(frame.Image, s.opts.Format, s.opts.Quality)
	if err != nil {
		return nil, err
	}

	if s.opts.PersistDir != "" {
		path, err := s.persist(frame, seq)
		if err != nil {
			logger.FromContext(ctx).Sugar().Warnw("Failed to persist screenshot", "dir", s.opts.PersistDir, "error", err)
		} else {
			frame.Path = path
		}
	}

	logger.FromContext(ctx).Sugar().Debugw("Captured vision frame",
		"physical", fmt.Sprintf("%dx%d", frame.PhysicalWidth, frame.PhysicalHeight),
		"logical", fmt.Sprintf("%dx%d", lw, lh),
		"vision", fmt.Sprintf("%dx%d", vw, vh),
		"scale", scale,
		"dpr", frame.DevicePixelRatio)

	return frame, nil
}

// Resize resamples src to exactly w x h with Catmull-Rom. Sources already
// at the target size are returned unchanged.
func Resize(src image.Image, w, h int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}

// Encode serialises img as png or jpeg and returns the bytes and mime type
func Encode(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	case "png", "":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		return nil, "", fmt.Errorf("unsupported image format: %s", format)
	}
}

// FrameFileName names a persisted frame by capture time and action sequence
func FrameFileName(capturedAt time.Time, seq int64, mimeType string) string {
	ext := "png"
	if mimeType == "image/jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("screenshot_%s_%d.%s", capturedAt.Format("20060102_150405.000"), seq, ext)
}

func (s *Scaler) persist(frame *VisionFrame, seq int64) (string, error) {
	if err := os.MkdirAll(s.opts.PersistDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(s.opts.PersistDir, FrameFileName(frame.CapturedAt, seq, frame.MimeType))
	if err := os.WriteFile(path, frame.Encoded, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
