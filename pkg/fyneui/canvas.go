// Package fyneui hosts the crop dialog in a fyne window
package fyneui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/input"
	"github.com/menta2k/cropkit/pkg/render"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/types"
)

var endEvent = selection.Event{Kind: selection.End}

// CropCanvas shows the dialog canvas and feeds it mouse and touch input.
// Display space is fyne's logical units, so one canvas pixel is one unit.
type CropCanvas struct {
	widget.BaseWidget

	dlg     *dialog.Dialog
	surface *render.ImageSurface
	image   *canvas.Image

	// origin returns the widget's absolute position; replaced in tests
	origin func() fyne.Position
}

var (
	_ desktop.Mouseable = (*CropCanvas)(nil)
	_ fyne.Draggable    = (*CropCanvas)(nil)
	_ mobile.Touchable  = (*CropCanvas)(nil)
)

// NewCropCanvas creates the widget for dlg, which must render into surface
func NewCropCanvas(dlg *dialog.Dialog, surface *render.ImageSurface) *CropCanvas {
	c := &CropCanvas{
		dlg:     dlg,
		surface: surface,
		image:   canvas.NewImageFromImage(surface.Image()),
	}
	c.image.FillMode = canvas.ImageFillStretch
	c.image.ScaleMode = canvas.ImageScaleFastest
	c.origin = func() fyne.Position {
		return fyne.CurrentApp().Driver().AbsolutePositionForObject(c)
	}
	c.ExtendBaseWidget(c)
	return c
}

func (c *CropCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.image)
}

// MinSize is the display size of the open image
func (c *CropCanvas) MinSize() fyne.Size {
	vp := c.dlg.Viewport()
	return fyne.NewSize(float32(vp.DisplayWidth), float32(vp.DisplayHeight))
}

// Refresh picks up the surface image, which is reallocated on resize
func (c *CropCanvas) Refresh() {
	c.image.Image = c.surface.Image()
	c.image.SetMinSize(c.MinSize())
	c.image.Refresh()
	c.BaseWidget.Refresh()
}

func (c *CropCanvas) box() geometry.Box {
	p := c.origin()
	return geometry.Box{Left: float64(p.X), Top: float64(p.Y)}
}

func (c *CropCanvas) mouse(kind input.MouseKind, p fyne.Position) {
	c.dlg.HandleMouse(input.MouseEvent{Kind: kind, X: float64(p.X), Y: float64(p.Y), Box: c.box()})
}

func (c *CropCanvas) touch(kind input.TouchKind, p *fyne.Position) {
	ev := input.TouchEvent{Kind: kind, Box: c.box()}
	if p != nil {
		ev.Touches = []types.Point{{X: float64(p.X), Y: float64(p.Y)}}
	}
	c.dlg.HandleTouch(ev)
}

func (c *CropCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonPrimary {
		c.mouse(input.MouseDown, ev.AbsolutePosition)
	}
}

func (c *CropCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.mouse(input.MouseUp, ev.AbsolutePosition)
}

// Dragged keeps arriving after the pointer leaves the widget, so no extra
// binding is needed for drags that exit the canvas.
func (c *CropCanvas) Dragged(ev *fyne.DragEvent) {
	c.mouse(input.MouseMove, ev.AbsolutePosition)
}

func (c *CropCanvas) DragEnd() {
	c.dlg.HandleEvent(endEvent)
}

func (c *CropCanvas) TouchDown(ev *mobile.TouchEvent) {
	c.touch(input.TouchStart, &ev.AbsolutePosition)
}

func (c *CropCanvas) TouchUp(ev *mobile.TouchEvent) {
	c.touch(input.TouchEnd, &ev.AbsolutePosition)
}

func (c *CropCanvas) TouchCancel(*mobile.TouchEvent) {
	c.touch(input.TouchCancel, nil)
}
