// Package render keeps the crop canvas and its preview in sync with the
// selection. It draws through the Surface capability so any host with 2D
// drawing can display it.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/types"
)

// Style controls the overlay look
type Style struct {
	OverlayColor     color.NRGBA
	BorderColor      color.NRGBA
	BorderWidth      int
	Dash             []int
	PreviewMaxExtent int
	MinExtent        float64
}

// DefaultStyle returns the stock spotlight look
func DefaultStyle() Style {
	return Style{
		OverlayColor:     color.NRGBA{0, 0, 0, 128},
		BorderColor:      color.NRGBA{0x66, 0x7e, 0xea, 0xff},
		BorderWidth:      2,
		Dash:             []int{5, 5},
		PreviewMaxExtent: 180,
		MinExtent:        selection.DefaultMinExtent,
	}
}

// Pipeline renders the canvas and preview surfaces
type Pipeline struct {
	style Style
}

// New creates a pipeline. Zero style fields fall back to DefaultStyle.
func New(style Style) *Pipeline {
	def := DefaultStyle()
	if style.BorderWidth <= 0 {
		style.BorderWidth = def.BorderWidth
	}
	if style.PreviewMaxExtent <= 0 {
		style.PreviewMaxExtent = def.PreviewMaxExtent
	}
	if style.MinExtent <= 0 {
		style.MinExtent = def.MinExtent
	}
	if style.Dash == nil {
		style.Dash = def.Dash
	}
	return &Pipeline{style: style}
}

// Style returns the effective style
func (p *Pipeline) Style() Style {
	return p.style
}

// Redraw repaints the canvas: the full image, then the spotlight overlay when
// the selection is large enough. It reports whether an overlay was drawn.
func (p *Pipeline) Redraw(s Surface, src image.Image, v types.Viewport, sel types.SelectionRect) bool {
	s.Resize(v.DisplayWidth, v.DisplayHeight)
	s.Clear()
	s.DrawImage(src, src.Bounds(), image.Rect(0, 0, v.DisplayWidth, v.DisplayHeight))

	r := sel.Normalized()
	if selection.TooSmall(r, p.style.MinExtent) {
		return false
	}

	dr := displayRect(r)
	s.FillRect(image.Rect(0, 0, v.DisplayWidth, v.DisplayHeight), p.style.OverlayColor)
	s.ClearRect(dr)
	s.DrawImage(src, sourceRect(src, r, v), dr)
	s.StrokeDashedRect(dr, p.style.BorderColor, p.style.BorderWidth, p.style.Dash)
	return true
}

// Preview renders only the selected region, fitted within PreviewMaxExtent.
// Selections below the minimum extent draw nothing and report false; callers
// blank the preview with ClearPreview.
func (p *Pipeline) Preview(s Surface, src image.Image, v types.Viewport, sel types.SelectionRect) bool {
	r := sel.Normalized()
	if selection.TooSmall(r, p.style.MinExtent) {
		return false
	}

	w, h := PreviewSize(r.Width, r.Height, p.style.PreviewMaxExtent)
	s.Resize(w, h)
	s.Clear()
	s.DrawImage(src, sourceRect(src, r, v), image.Rect(0, 0, w, h))
	return true
}

// ClearPreview blanks the preview surface
func (p *Pipeline) ClearPreview(s Surface) {
	s.Clear()
}

// PreviewSize scales w×h down to fit maxExtent on both axes, keeping the
// aspect ratio. Smaller selections keep their size.
func PreviewSize(width, height float64, maxExtent int) (int, int) {
	limit := float64(maxExtent)
	if width > limit || height > limit {
		scale := math.Min(limit/width, limit/height)
		width *= scale
		height *= scale
	}
	return max(int(math.Round(width)), 1), max(int(math.Round(height)), 1)
}

// Coords formats the selection position and size in source pixels
func Coords(r types.Rect, v types.Viewport) string {
	x, y := geometry.ToRealPixels(r.X, r.Y, v)
	w, h := geometry.ToRealPixels(r.Width, r.Height, v)
	return fmt.Sprintf("position: %d, %d\nsize: %d × %d px", x, y, w, h)
}

func displayRect(r types.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// sourceRect maps a display rectangle into src's own coordinate space
func sourceRect(src image.Image, r types.Rect, v types.Viewport) image.Rectangle {
	return geometry.RealRect(r, v).Add(src.Bounds().Min)
}
