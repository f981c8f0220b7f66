package fyneui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	fynedialog "fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/commit"
	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/render"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/suggest"
)

// Window is the desktop crop dialog
type Window struct {
	win       fyne.Window
	dlg       *dialog.Dialog
	canvas    *CropCanvas
	preview   *canvas.Image
	previewSf *render.ImageSurface
	coords    *widget.Label
	ratio     *widget.RadioGroup
	suggester suggest.Suggester
	suggestBt *widget.Button
	area      fyne.Size

	fitted fyne.Size
	cancel context.CancelFunc
}

// NewWindow builds the crop window. suggester may be nil, which hides the
// Suggest button.
func NewWindow(a fyne.App, cfg *config.Config, processor commit.Processor, deliverer commit.Deliverer, suggester suggest.Suggester) *Window {
	w := &Window{
		win:       a.NewWindow("Crop Image"),
		previewSf: render.NewImageSurface(0, 0),
		coords:    widget.NewLabel(""),
		suggester: suggester,
		area:      fyne.NewSize(float32(cfg.Display.ContainerWidth), float32(cfg.Display.WindowHeight)),
	}
	canvasSf := render.NewImageSurface(0, 0)

	w.dlg = dialog.New(cfg, processor, deliverer,
		dialog.WithSurfaces(canvasSf, w.previewSf),
		dialog.WithNotifier(dialog.NotifierFunc(w.notify)),
		dialog.WithOnChange(w.refresh),
	)

	w.canvas = NewCropCanvas(w.dlg, canvasSf)
	w.preview = canvas.NewImageFromImage(w.previewSf.Image())
	w.preview.FillMode = canvas.ImageFillContain
	extent := float32(cfg.Render.PreviewMaxExtent)
	w.preview.SetMinSize(fyne.NewSize(extent, extent))

	w.win.SetContent(w.layout())
	w.win.SetOnClosed(w.dismiss)
	w.win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			w.win.Close()
		}
	})
	return w
}

func (w *Window) layout() fyne.CanvasObject {
	ratios := selection.CommonAspectRatios()
	labels := make([]string, len(ratios))
	for i, r := range ratios {
		labels[i] = r.Label()
	}
	w.ratio = widget.NewRadioGroup(labels, func(label string) {
		for _, r := range ratios {
			if r.Label() == label {
				if err := w.dlg.SetRatio(r.Value()); err != nil {
					log.Debugf("ratio %s: %v", label, err)
				}
				return
			}
		}
	})
	w.ratio.Horizontal = true
	w.ratio.Required = true

	clearBt := widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), func() {
		_ = w.dlg.Clear()
	})
	applyBt := widget.NewButtonWithIcon("Apply Crop", theme.ConfirmIcon(), w.apply)
	applyBt.Importance = widget.HighImportance
	cancelBt := widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), func() {
		w.win.Close()
	})

	buttons := container.NewHBox(clearBt)
	if w.suggester != nil {
		w.suggestBt = widget.NewButtonWithIcon("Suggest", theme.SearchIcon(), w.suggest)
		buttons.Add(w.suggestBt)
	}
	buttons.Add(cancelBt)
	buttons.Add(applyBt)

	side := container.NewVBox(
		widget.NewLabelWithStyle("Preview", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		w.preview,
		w.coords,
	)

	return container.NewBorder(
		container.NewVBox(widget.NewLabel("Aspect ratio"), w.ratio),
		container.NewHBox(container.NewCenter(buttons)),
		nil,
		side,
		container.New(&fitLayout{w: w}, w.canvas),
	)
}

// minCanvasArea keeps a shrunken window usable
const minCanvasArea = 120

// fitLayout centers the crop canvas and refits the dialog to the window
// whenever the window size changes
type fitLayout struct {
	w *Window
}

func (l *fitLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	l.w.fit()
	for _, o := range objects {
		m := o.MinSize()
		o.Resize(m)
		o.Move(fyne.NewPos((size.Width-m.Width)/2, (size.Height-m.Height)/2))
	}
}

func (l *fitLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(minCanvasArea, minCanvasArea)
}

// fit hands the window size to the dialog as its container width and window
// height. Sizes already applied are skipped.
func (w *Window) fit() {
	size := w.win.Canvas().Size()
	if size == w.fitted || size.Width <= 0 || size.Height <= 0 || !w.dlg.IsOpen() {
		return
	}
	w.fitted = size
	if err := w.dlg.Resize(float64(size.Width), float64(size.Height)); err != nil {
		log.Debugf("refit to %vx%v: %v", size.Width, size.Height, err)
	}
}

// Open loads an image into the window. Load failures are shown in the
// window and returned.
func (w *Window) Open(data []byte, name string) error {
	if err := w.dlg.Open(data, name); err != nil {
		return err
	}
	w.win.SetTitle(fmt.Sprintf("Crop Image - %s", name))
	w.fitted = fyne.Size{}
	if w.area.Width > 0 && w.area.Height > 0 {
		w.win.Resize(w.area)
	}
	w.ratio.SetSelected(labelFor(w.dlg.Ratio()))
	w.canvas.Refresh()
	return nil
}

// Window exposes the underlying fyne window
func (w *Window) Window() fyne.Window { return w.win }

// Dialog exposes the controller driving the window
func (w *Window) Dialog() *dialog.Dialog { return w.dlg }

func (w *Window) ShowAndRun() {
	w.win.ShowAndRun()
}

func (w *Window) refresh() {
	w.canvas.Refresh()
	w.preview.Image = w.previewSf.Image()
	w.preview.Refresh()
	if w.dlg.TooSmall() {
		w.coords.SetText("")
		return
	}
	w.coords.SetText(w.dlg.Coords())
}

func (w *Window) notify(msg string) {
	fynedialog.ShowInformation("Crop", msg, w.win)
}

func (w *Window) apply() {
	if err := w.dlg.Apply(); err != nil {
		return
	}
	d := w.dlg.LastDelivery()
	log.Printf("Saved %s (%d bytes)", d.Name, len(d.Data))
	w.win.Close()
}

// suggest runs the suggester off the UI loop and applies the result on it
func (w *Window) suggest() {
	sess := w.dlg.Session()
	if sess == nil {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.suggestBt.Disable()

	img, ratio := sess.Image, w.dlg.Ratio()
	go func() {
		sug, err := w.suggester.Suggest(ctx, img, ratio)
		fyne.Do(func() {
			w.suggestBt.Enable()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.notify("Could not suggest a selection: " + err.Error())
				return
			}
			_ = w.dlg.ApplySuggestion(sug)
		})
	}()
}

// dismiss tears down the session when the window goes away
func (w *Window) dismiss() {
	if w.cancel != nil {
		w.cancel()
	}
	w.dlg.Close()
}

func labelFor(ratio float64) string {
	for _, r := range selection.CommonAspectRatios() {
		if r.Value() == ratio {
			return r.Label()
		}
	}
	return ""
}
