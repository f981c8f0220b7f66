package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Surface is the drawing capability the pipeline needs from a host.
// Rectangles are in surface pixels.
type Surface interface {
	Size() (int, int)
	Resize(width, height int)
	Clear()
	ClearRect(r image.Rectangle)
	FillRect(r image.Rectangle, c color.Color)
	DrawImage(src image.Image, sr, dr image.Rectangle)
	StrokeDashedRect(r image.Rectangle, c color.NRGBA, width int, dash []int)
}

// ImageSurface is an in-memory Surface backed by an *image.NRGBA
type ImageSurface struct {
	img    *image.NRGBA
	scaler draw.Scaler
}

// NewImageSurface creates a transparent surface using bilinear scaling
func NewImageSurface(width, height int) *ImageSurface {
	return NewImageSurfaceWithScaler(width, height, draw.ApproxBiLinear)
}

// NewImageSurfaceWithScaler creates a surface with a specific resampler
func NewImageSurfaceWithScaler(width, height int, scaler draw.Scaler) *ImageSurface {
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	return &ImageSurface{
		img:    image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		scaler: scaler,
	}
}

// Image returns the backing image. It is replaced by Resize.
func (s *ImageSurface) Image() *image.NRGBA {
	return s.img
}

func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize reallocates the surface when the size changes, clearing it
func (s *ImageSurface) Resize(width, height int) {
	if w, h := s.Size(); w == width && h == height {
		return
	}
	s.img = image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

func (s *ImageSurface) Clear() {
	clear(s.img.Pix)
}

func (s *ImageSurface) ClearRect(r image.Rectangle) {
	draw.Draw(s.img, r.Intersect(s.img.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

func (s *ImageSurface) FillRect(r image.Rectangle, c color.Color) {
	draw.Draw(s.img, r.Intersect(s.img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// DrawImage scales the sr region of src into dr
func (s *ImageSurface) DrawImage(src image.Image, sr, dr image.Rectangle) {
	sr = sr.Intersect(src.Bounds())
	if sr.Empty() || dr.Empty() {
		return
	}
	s.scaler.Scale(s.img, dr, src, sr, draw.Over, nil)
}

// StrokeDashedRect strokes r centered on its edges, dash is an on/off
// pattern in pixels along the perimeter. An empty dash draws a solid line.
func (s *ImageSurface) StrokeDashedRect(r image.Rectangle, c color.NRGBA, width int, dash []int) {
	if width <= 0 || r.Empty() {
		return
	}
	on, off := 1, 0
	if len(dash) >= 2 && dash[0] > 0 && dash[1] >= 0 {
		on, off = dash[0], dash[1]
	}

	lo := -width / 2
	hi := lo + width
	for o := lo; o < hi; o++ {
		x0, y0 := r.Min.X+o, r.Min.Y+o
		x1, y1 := r.Max.X-o, r.Max.Y-o
		if x1 <= x0 || y1 <= y0 {
			break
		}
		drawDashedHLine(s.img, y0, x0, x1, c, on, off)
		drawDashedHLine(s.img, y1-1, x0, x1, c, on, off)
		drawDashedVLine(s.img, x0, y0, y1, c, on, off)
		drawDashedVLine(s.img, x1-1, y0, y1, c, on, off)
	}
}

func drawDashedHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA, on, off int) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	period := on + off
	for x := x0; x < x1; x++ {
		if x < b.Min.X || x >= b.Max.X {
			continue
		}
		if (x-x0)%period >= on {
			continue
		}
		i := img.PixOffset(x, y)
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
}

func drawDashedVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA, on, off int) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	period := on + off
	for y := y0; y < y1; y++ {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		if (y-y0)%period >= on {
			continue
		}
		i := img.PixOffset(x, y)
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
}
