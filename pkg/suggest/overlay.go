package suggest

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var (
	subjectColor = color.NRGBA{0, 255, 0, 255}
	cropColor    = color.NRGBA{255, 204, 0, 255}
	centerColor  = color.NRGBA{255, 0, 0, 255}
	imageColor   = color.NRGBA{0, 170, 255, 255}
)

// DebugOverlay draws the subject box (green), the suggested crop (gold), the
// crop center (red cross) and the image center (blue cross) over a copy of img.
// An empty subject is skipped.
func DebugOverlay(img image.Image, s Suggestion) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	if !s.Subject.Empty() {
		drawRect(nrgba, s.Subject, subjectColor, stroke)
	}
	if !s.Rect.Empty() {
		drawRect(nrgba, s.Rect, cropColor, stroke)

		c := image.Pt((s.Rect.Min.X+s.Rect.Max.X)/2, (s.Rect.Min.Y+s.Rect.Max.Y)/2)
		drawHLine(nrgba, c.Y, c.X-cross, c.X+cross, centerColor)
		drawVLine(nrgba, c.X, c.Y-cross, c.Y+cross, centerColor)
	}

	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, imageColor)
	drawVLine(nrgba, ix, iy-6, iy+6, imageColor)

	return nrgba
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < 0 || y >= b.Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, 0), min(x1, b.Dx())
	if x0 >= x1 {
		return
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < 0 || x >= b.Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, 0), min(y1, b.Dy())
	if y0 >= y1 {
		return
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
