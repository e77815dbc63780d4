package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	displaytest "github.com/inference-gateway/desktop-agent/internal/display/displaytest"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

func TestCaptureAndScale_UsesLogicalAspectOnHighDensityDisplay(t *testing.T) {
	fake := displaytest.NewFakeController(756, 491, 2)
	scaler := NewScaler(fake, Options{MaxWidth: 640, MaxHeight: 400})

	frame, err := scaler.CaptureAndScale(logger.NopContext(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1512, frame.PhysicalWidth)
	assert.Equal(t, 982, frame.PhysicalHeight)
	assert.Equal(t, 756, frame.LogicalWidth)
	assert.Equal(t, 491, frame.LogicalHeight)
	assert.Equal(t, 616, frame.Width)
	assert.Equal(t, 400, frame.Height)
	assert.InDelta(t, 2.0, frame.DevicePixelRatio, 1e-9)
	assert.Equal(t, image.Rect(0, 0, 616, 400), frame.Image.Bounds())
	assert.Equal(t, "image/png", frame.MimeType)

	decoded, err := png.Decode(bytes.NewReader(frame.Encoded))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 616, 400), decoded.Bounds())

	raw, err := base64.StdEncoding.DecodeString(frame.Base64())
	require.NoError(t, err)
	assert.Equal(t, frame.Encoded, raw)

	assert.Equal(t, Canvas{616, 400, 756, 491}, frame.Canvas())
}

func TestCaptureAndScale_NoUpscaleKeepsLogicalSize(t *testing.T) {
	fake := displaytest.NewFakeController(320, 200, 2)
	scaler := NewScaler(fake, Options{MaxWidth: 1280, MaxHeight: 800, Format: "jpeg", Quality: 70})

	frame, err := scaler.CaptureAndScale(logger.NopContext(), 1)
	require.NoError(t, err)

	assert.Equal(t, 320, frame.Width)
	assert.Equal(t, 200, frame.Height)
	assert.Equal(t, 1.0, frame.ScaleFactor)
	assert.Equal(t, "image/jpeg", frame.MimeType)
}

func TestCaptureAndScale_RederivesAfterDisplayChange(t *testing.T) {
	fake := displaytest.NewFakeController(400, 300, 1)
	scaler := NewScaler(fake, Options{MaxWidth: 200, MaxHeight: 200})

	first, err := scaler.CaptureAndScale(logger.NopContext(), 1)
	require.NoError(t, err)
	assert.Equal(t, Canvas{200, 150, 400, 300}, first.Canvas())

	fake.Resize(300, 600)

	second, err := scaler.CaptureAndScale(logger.NopContext(), 2)
	require.NoError(t, err)
	assert.Equal(t, Canvas{100, 200, 300, 600}, second.Canvas())
}

func TestCaptureAndScale_PersistsFrame(t *testing.T) {
	dir := t.TempDir()
	fake := displaytest.NewFakeController(100, 50, 1)
	scaler := NewScaler(fake, Options{MaxWidth: 100, MaxHeight: 100, PersistDir: dir})

	frame, err := scaler.CaptureAndScale(logger.NopContext(), 7)
	require.NoError(t, err)

	require.NotEmpty(t, frame.Path)
	assert.Equal(t, dir, filepath.Dir(frame.Path))
	assert.Regexp(t, `^screenshot_\d{8}_\d{6}\.\d{3}_7\.png$`, filepath.Base(frame.Path))

	onDisk, err := os.ReadFile(frame.Path)
	require.NoError(t, err)
	assert.Equal(t, frame.Encoded, onDisk)
}

func TestCaptureAndScale_PersistFailureIsNotFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	fake := displaytest.NewFakeController(100, 50, 1)
	scaler := NewScaler(fake, Options{MaxWidth: 100, MaxHeight: 100, PersistDir: filepath.Join(blocker, "sub")})

	ctx, logs := logger.TestContext()
	frame, err := scaler.CaptureAndScale(ctx, 1)

	require.NoError(t, err)
	assert.Empty(t, frame.Path)
	assert.Equal(t, 1, logs.FilterMessage("Failed to persist screenshot").Len())
}

func TestCaptureAndScale_CaptureError(t *testing.T) {
	fake := displaytest.NewFakeController(100, 50, 1)
	fake.Fail("capture", errors.New("screen recording denied"))
	scaler := NewScaler(fake, Options{MaxWidth: 100, MaxHeight: 100})

	_, err := scaler.CaptureAndScale(logger.NopContext(), 1)
	assert.ErrorContains(t, err, "screen recording denied")
}

func TestFrameFileName(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 15, 123000000, time.UTC)

	assert.Equal(t, "screenshot_20261018_093015.123_42.png", FrameFileName(at, 42, "image/png"))
	assert.Equal(t, "screenshot_20261018_093015.123_1.jpg", FrameFileName(at, 1, "image/jpeg"))
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, _, err := Encode(image.NewRGBA(image.Rect(0, 0, 1, 1)), "gif", 0)
	assert.ErrorContains(t, err, "unsupported image format")
}
