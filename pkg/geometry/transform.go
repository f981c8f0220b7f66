// Package geometry converts between pointer, display and real-pixel coordinates.
//
// Display space is the scaled canvas the user sees. Real-pixel space is the
// untransformed source image. All conversions are total: out of range input is
// clamped rather than rejected.
package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/cropkit/pkg/types"
)

// Box is the on-screen bounding box of the canvas, in the same coordinate
// system as the pointer events it is paired with.
type Box struct {
	Left float64
	Top  float64
}

// Fit computes the viewport for an image shown inside a maxW×maxH area.
// Images that already fit are displayed at natural size.
func Fit(naturalWidth, naturalHeight int, maxWidth, maxHeight float64) (types.Viewport, error) {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return types.Viewport{}, fmt.Errorf("invalid image dimensions %dx%d", naturalWidth, naturalHeight)
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return types.Viewport{}, fmt.Errorf("invalid display area %.1fx%.1f", maxWidth, maxHeight)
	}

	width, height := naturalWidth, naturalHeight
	if float64(width) > maxWidth || float64(height) > maxHeight {
		scale := math.Min(maxWidth/float64(width), maxHeight/float64(height))
		width = int(math.Round(float64(width) * scale))
		height = int(math.Round(float64(height) * scale))
	}
	// Degenerate strips still need a drawable pixel
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return NewViewport(naturalWidth, naturalHeight, width, height)
}

// NewViewport builds a viewport for an explicit display size
func NewViewport(naturalWidth, naturalHeight, displayWidth, displayHeight int) (types.Viewport, error) {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return types.Viewport{}, fmt.Errorf("invalid image dimensions %dx%d", naturalWidth, naturalHeight)
	}
	if displayWidth <= 0 || displayHeight <= 0 {
		return types.Viewport{}, fmt.Errorf("invalid display dimensions %dx%d", displayWidth, displayHeight)
	}
	return types.Viewport{
		NaturalWidth:  naturalWidth,
		NaturalHeight: naturalHeight,
		DisplayWidth:  displayWidth,
		DisplayHeight: displayHeight,
		Scale:         float64(displayWidth) / float64(naturalWidth),
	}, nil
}

// ToCanvasLocal converts an absolute pointer position into canvas-local
// display coordinates, clamped to the display area.
func ToCanvasLocal(pointerX, pointerY float64, box Box, v types.Viewport) (float64, float64) {
	x := Clamp(pointerX-box.Left, 0, float64(v.DisplayWidth))
	y := Clamp(pointerY-box.Top, 0, float64(v.DisplayHeight))
	return x, y
}

// ToRealPixels converts a display coordinate to the nearest source pixel
func ToRealPixels(displayX, displayY float64, v types.Viewport) (int, int) {
	return toReal(displayX, v.Scale), toReal(displayY, v.Scale)
}

// ToDisplay converts a source pixel back into display space
func ToDisplay(realX, realY int, v types.Viewport) (float64, float64) {
	return float64(realX) * v.Scale, float64(realY) * v.Scale
}

// RealRect returns the source-image rectangle sampled for a display rectangle
func RealRect(r types.Rect, v types.Viewport) image.Rectangle {
	x, y := ToRealPixels(r.X, r.Y, v)
	w, h := ToRealPixels(r.Width, r.Height, v)
	return image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, v.NaturalWidth, v.NaturalHeight))
}

// DisplayRect converts a source-image rectangle into a clamped display selection
func DisplayRect(r image.Rectangle, v types.Viewport) types.SelectionRect {
	x0, y0 := ToDisplay(r.Min.X, r.Min.Y, v)
	x1, y1 := ToDisplay(r.Max.X, r.Max.Y, v)
	w, h := float64(v.DisplayWidth), float64(v.DisplayHeight)
	return types.SelectionRect{
		StartX: Clamp(x0, 0, w),
		StartY: Clamp(y0, 0, h),
		EndX:   Clamp(x1, 0, w),
		EndY:   Clamp(y1, 0, h),
	}
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toReal(d, scale float64) int {
	return int(math.Round(d / scale))
}
