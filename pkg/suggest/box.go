package suggest

import (
	"image"
	"math"

	"github.com/menta2k/cropkit/pkg/types"
)

// OptimalCropBox returns the largest box of the given aspect (width/height in
// real pixels) centered on (centerX, centerY), scaled by zoom and kept inside
// the image. Centers and the result are normalized.
func OptimalCropBox(centerX, centerY, aspect float64, imgWidth, imgHeight int, zoom float64) types.Box {
	if zoom <= 0 {
		zoom = 1
	}
	if aspect <= 0 {
		aspect = float64(imgWidth) / float64(imgHeight)
	}

	cx := clamp(centerX, 0, 1) * float64(imgWidth)
	cy := clamp(centerY, 0, 1) * float64(imgHeight)

	halfWMax := math.Min(cx, float64(imgWidth)-cx)
	halfHMax := math.Min(cy, float64(imgHeight)-cy)

	// limited by the horizontal room and by the vertical room scaled by aspect
	maxWidthPx := math.Min(2*halfWMax, aspect*(2*halfHMax))
	widthPx := maxWidthPx * clamp(zoom, 0.01, 1.0)
	heightPx := widthPx / aspect

	x0 := clamp(cx-widthPx/2, 0, float64(imgWidth)-widthPx)
	y0 := clamp(cy-heightPx/2, 0, float64(imgHeight)-heightPx)

	return types.Box{
		X: x0 / float64(imgWidth),
		Y: y0 / float64(imgHeight),
		W: widthPx / float64(imgWidth),
		H: heightPx / float64(imgHeight),
	}
}

// NearestPointToCenter is the point of box closest to the image center
func NearestPointToCenter(box types.Box) (float64, float64) {
	cx := clamp(0.5, box.X, box.X+box.W)
	cy := clamp(0.5, box.Y, box.Y+box.H)
	return cx, cy
}

// BoxToRect converts a normalized box to a pixel rectangle of at least 1x1
func BoxToRect(box types.Box, w, h int) image.Rectangle {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	return image.Rect(x0, y0, x1, y1)
}

// RectToBox is the inverse of BoxToRect
func RectToBox(r image.Rectangle, w, h int) types.Box {
	if w <= 0 || h <= 0 {
		return types.Box{}
	}
	return types.Box{
		X: float64(r.Min.X) / float64(w),
		Y: float64(r.Min.Y) / float64(h),
		W: float64(r.Dx()) / float64(w),
		H: float64(r.Dy()) / float64(h),
	}
}

// shrink scales r around its center by zoom, keeping at least one pixel
func shrink(r image.Rectangle, zoom float64) image.Rectangle {
	if zoom <= 0 || zoom >= 1 {
		return r
	}
	w := int(math.Max(1, math.Round(float64(r.Dx())*zoom)))
	h := int(math.Max(1, math.Round(float64(r.Dy())*zoom)))
	x0 := r.Min.X + (r.Dx()-w)/2
	y0 := r.Min.Y + (r.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}
