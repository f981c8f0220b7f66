package fyneui

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/delivery"
	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/engine"
	"github.com/menta2k/cropkit/pkg/render"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/suggest"
	"github.com/menta2k/cropkit/pkg/types"
)

func createTestImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Display.ContainerFraction = 1
	cfg.Display.WindowFraction = 1
	cfg.Display.ContainerWidth = 400
	cfg.Display.WindowHeight = 200
	return cfg
}

func newCanvas(t *testing.T) (*CropCanvas, *dialog.Dialog) {
	t.Helper()
	test.NewTempApp(t)

	sf := render.NewImageSurface(0, 0)
	dlg := dialog.New(testConfig(), engine.New(), &delivery.Memory{}, dialog.WithSurfaces(sf, nil))
	c := NewCropCanvas(dlg, sf)
	c.origin = func() fyne.Position { return fyne.NewPos(20, 10) }
	require.NoError(t, dlg.Open(createTestImage(t), "a.png"))
	return c, dlg
}

func pointer(x, y float32) fyne.PointEvent {
	return fyne.PointEvent{AbsolutePosition: fyne.NewPos(x, y)}
}

func TestCropCanvasMouseDrag(t *testing.T) {
	c, dlg := newCanvas(t)

	c.MouseDown(&desktop.MouseEvent{PointEvent: pointer(70, 60), Button: desktop.MouseButtonPrimary})
	c.Dragged(&fyne.DragEvent{PointEvent: pointer(170, 110)})
	assert.Equal(t, selection.Drawing, dlg.State())

	c.Dragged(&fyne.DragEvent{PointEvent: pointer(1000, 1000)})
	c.DragEnd()

	assert.Equal(t, types.SelectionRect{StartX: 50, StartY: 50, EndX: 400, EndY: 200}, dlg.Selection())
	assert.Equal(t, selection.Idle, dlg.State())
}

func TestCropCanvasIgnoresSecondaryButton(t *testing.T) {
	c, dlg := newCanvas(t)
	c.MouseDown(&desktop.MouseEvent{PointEvent: pointer(70, 60), Button: desktop.MouseButtonSecondary})
	assert.Equal(t, selection.Cleared, dlg.State())
}

func TestCropCanvasTouch(t *testing.T) {
	c, dlg := newCanvas(t)

	c.TouchDown(&mobile.TouchEvent{PointEvent: pointer(30, 20)})
	c.Dragged(&fyne.DragEvent{PointEvent: pointer(130, 70)})
	c.TouchCancel(&mobile.TouchEvent{})

	assert.Equal(t, types.SelectionRect{StartX: 10, StartY: 10, EndX: 110, EndY: 60}, dlg.Selection())
	assert.Equal(t, selection.Idle, dlg.State())
}

func TestCropCanvasMinSizeAndRefresh(t *testing.T) {
	c, _ := newCanvas(t)
	assert.Equal(t, fyne.NewSize(400, 200), c.MinSize())

	c.Refresh()
	assert.Equal(t, c.surface.Image(), c.image.Image)
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, c.surface.Image().NRGBAAt(5, 5))
}

func TestWindowApply(t *testing.T) {
	a := test.NewTempApp(t)
	mem := &delivery.Memory{}
	w := NewWindow(a, testConfig(), engine.New(), mem, nil)
	require.NoError(t, w.Open(createTestImage(t), "photo.png"))
	assert.Equal(t, "Free", w.ratio.Selected)

	w.canvas.origin = func() fyne.Position { return fyne.Position{} }
	w.canvas.MouseDown(&desktop.MouseEvent{PointEvent: pointer(10, 10), Button: desktop.MouseButtonPrimary})
	w.canvas.Dragged(&fyne.DragEvent{PointEvent: pointer(110, 60)})
	w.canvas.MouseUp(&desktop.MouseEvent{PointEvent: pointer(110, 60)})
	assert.Equal(t, "position: 10, 10\nsize: 100 × 50 px", w.coords.Text)

	w.ratio.SetSelected("1:1")
	assert.Equal(t, 1.0, w.Dialog().Ratio())

	w.apply()
	require.Len(t, mem.Items, 1)
	assert.Equal(t, "photo_cropped.png", mem.Items[0].Name)
	assert.False(t, w.Dialog().IsOpen())
}

func TestWindowRefitsOnResize(t *testing.T) {
	a := test.NewTempApp(t)
	w := NewWindow(a, testConfig(), engine.New(), &delivery.Memory{}, nil)
	require.NoError(t, w.Open(createTestImage(t), "photo.png"))
	require.Equal(t, 1.0, w.Dialog().Viewport().Scale)

	w.canvas.origin = func() fyne.Position { return fyne.Position{} }
	w.canvas.MouseDown(&desktop.MouseEvent{PointEvent: pointer(100, 50), Button: desktop.MouseButtonPrimary})
	w.canvas.Dragged(&fyne.DragEvent{PointEvent: pointer(300, 150)})
	w.canvas.MouseUp(&desktop.MouseEvent{PointEvent: pointer(300, 150)})

	w.Window().Resize(fyne.NewSize(200, 100))
	w.fit()

	vp := w.Dialog().Viewport()
	assert.Equal(t, 0.5, vp.Scale)
	assert.Equal(t, fyne.NewSize(200, 100), w.canvas.MinSize())
	assert.Equal(t, "position: 100, 50\nsize: 200 × 100 px", w.coords.Text)
}

// waitSuggester blocks until its context is canceled
type waitSuggester struct {
	done chan struct{}
}

func (s waitSuggester) Suggest(ctx context.Context, _ image.Image, _ float64) (suggest.Suggestion, error) {
	defer close(s.done)
	<-ctx.Done()
	return suggest.Suggestion{}, ctx.Err()
}

func TestWindowSuggestCancelsPrevious(t *testing.T) {
	a := test.NewTempApp(t)
	s := waitSuggester{done: make(chan struct{})}
	w := NewWindow(a, testConfig(), engine.New(), &delivery.Memory{}, s)
	require.NoError(t, w.Open(createTestImage(t), "photo.png"))

	canceled := false
	w.cancel = func() { canceled = true }
	w.suggest()
	assert.True(t, canceled)
	assert.True(t, w.suggestBt.Disabled())

	w.dismiss()
	<-s.done
	assert.Eventually(t, func() bool { return !w.suggestBt.Disabled() }, time.Second, 10*time.Millisecond)
}
