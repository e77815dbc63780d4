package vision

import (
	"math"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

// Canvas pairs the vision canvas the model sees with the logical input
// space it maps onto. Coordinates from the model are only meaningful
// relative to the canvas of the frame it was shown.
type Canvas struct {
	VisionWidth   int `json:"vision_width"`
	VisionHeight  int `json:"vision_height"`
	LogicalWidth  int `json:"logical_width"`
	LogicalHeight int `json:"logical_height"`
}

// ComputeVisionSize fits the logical size into the maxW x maxH box without
// upscaling. The result keeps the logical aspect ratio to within one
// rounding unit.
func ComputeVisionSize(logicalW, logicalH, maxW, maxH int) (width, height int, scale float64) {
	if logicalW <= 0 || logicalH <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0, 0
	}

	scale = math.Min(float64(maxW)/float64(logicalW), float64(maxH)/float64(logicalH))
	if scale > 1 {
		scale = 1
	}

	width = clampInt(int(math.Round(float64(logicalW)*scale)), 1, maxW)
	height = clampInt(int(math.Round(float64(logicalH)*scale)), 1, maxH)
	return width, height, scale
}

// CanvasFor derives the canvas for a logical size and vision box
func CanvasFor(logicalW, logicalH, maxW, maxH int) Canvas {
	w, h, _ := ComputeVisionSize(logicalW, logicalH, maxW, maxH)
	return Canvas{VisionWidth: w, VisionHeight: h, LogicalWidth: logicalW, LogicalHeight: logicalH}
}

// Valid reports whether both spaces have a positive size
func (c Canvas) Valid() bool {
	return c.VisionWidth > 0 && c.VisionHeight > 0 && c.LogicalWidth > 0 && c.LogicalHeight > 0
}

// ScaleFactor is vision width over logical width
func (c Canvas) ScaleFactor() float64 {
	if c.LogicalWidth == 0 {
		return 0
	}
	return float64(c.VisionWidth) / float64(c.LogicalWidth)
}

// Mapping is the outcome of translating one vision-space point
type Mapping struct {
	Requested domain.Point
	Vision    domain.Point
	Logical   domain.Point

	// VisionClamped is set when Requested lay outside the vision canvas,
	// LogicalClamped when rounding overshot the logical bounds
	VisionClamped  bool
	LogicalClamped bool
}

// Clamped reports whether either clamp fired
func (m Mapping) Clamped() bool {
	return m.VisionClamped || m.LogicalClamped
}

// ToLogical maps a vision-space point into logical input space.
//
// The point is clamped to the vision canvas, scaled per axis, then clamped
// to the logical bounds. Both clamps are reported on the Mapping.
func ToLogical(visionX, visionY, visionW, visionH, logicalW, logicalH int) Mapping {
	m := Mapping{Requested: domain.Point{X: visionX, Y: visionY}}
	if visionW <= 0 || visionH <= 0 || logicalW <= 0 || logicalH <= 0 {
		return m
	}

	vx := clampInt(visionX, 0, visionW-1)
	vy := clampInt(visionY, 0, visionH-1)
	m.Vision = domain.Point{X: vx, Y: vy}
	m.VisionClamped = vx != visionX || vy != visionY

	x := int(math.Round(float64(vx) * float64(logicalW) / float64(visionW)))
	y := int(math.Round(float64(vy) * float64(logicalH) / float64(visionH)))

	lx := clampInt(x, 0, logicalW-1)
	ly := clampInt(y, 0, logicalH-1)
	m.Logical = domain.Point{X: lx, Y: ly}
	m.LogicalClamped = lx != x || ly != y

	return m
}

// ToLogical maps a vision-space point through this canvas
func (c Canvas) ToLogical(visionX, visionY int) Mapping {
	return ToLogical(visionX, visionY, c.VisionWidth, c.VisionHeight, c.LogicalWidth, c.LogicalHeight)
}

// ToVision is the inverse scale, clamped to the vision canvas
func (c Canvas) ToVision(x, y int) domain.Point {
	if !c.Valid() {
		return domain.Point{}
	}
	vx := int(math.Round(float64(x) * float64(c.VisionWidth) / float64(c.LogicalWidth)))
	vy := int(math.Round(float64(y) * float64(c.VisionHeight) / float64(c.LogicalHeight)))
	return domain.Point{
		X: clampInt(vx, 0, c.VisionWidth-1),
		Y: clampInt(vy, 0, c.VisionHeight-1),
	}
}

// ContainsLogical reports whether p lies in [0, w) x [0, h) of the logical space
func ContainsLogical(p domain.Point, logicalW, logicalH int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < logicalW && p.Y < logicalH
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
