// Package dialog is the crop dialog controller. It owns one session at a
// time: the decoded image, its viewport, the selection machine and the
// surfaces it renders into.
//
// A Dialog is not safe for concurrent use. Hosts deliver every call from
// their single UI event loop.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/commit"
	"github.com/menta2k/cropkit/pkg/engine"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/input"
	"github.com/menta2k/cropkit/pkg/render"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/suggest"
	"github.com/menta2k/cropkit/pkg/types"
)

var (
	// ErrImageLoad wraps decode failures from Open
	ErrImageLoad = errors.New("failed to load image")
	// ErrNotOpen is returned by operations that need a session
	ErrNotOpen = errors.New("crop dialog is not open")
)

// Decoder turns the opened bytes into a drawable image
type Decoder interface {
	DecodeImage(data []byte) (image.Image, error)
}

// Notifier shows a message to the user
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

type logNotifier struct{}

func (logNotifier) Notify(msg string) { log.Printf("notice: %s", msg) }

// Session is the state bound to one opened image
type Session struct {
	ID       string
	Name     string
	Data     []byte
	Image    image.Image
	Viewport types.Viewport
	Opened   time.Time
}

// Dialog is the crop dialog controller
type Dialog struct {
	cfg       *config.Config
	decoder   Decoder
	notifier  Notifier
	tracker   *input.Tracker
	pipeline  *render.Pipeline
	committer *commit.Committer
	canvas    render.Surface
	preview   render.Surface
	onChange  func()

	containerWidth float64
	windowHeight   float64

	session   *Session
	machine   *selection.Machine
	delivered types.Delivery
}

// Option configures a Dialog
type Option func(*Dialog)

// WithDecoder replaces the engine decoder
func WithDecoder(d Decoder) Option {
	return func(dl *Dialog) { dl.decoder = d }
}

// WithNotifier sets where user-visible messages go. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(dl *Dialog) { dl.notifier = n }
}

// WithBinder sets the broad-scope drag tracking binder
func WithBinder(b input.Binder) Option {
	return func(dl *Dialog) { dl.tracker = input.NewTracker(b) }
}

// WithSurfaces sets the canvas and preview surfaces. Nil keeps the in-memory
// default.
func WithSurfaces(canvas, preview render.Surface) Option {
	return func(dl *Dialog) {
		if canvas != nil {
			dl.canvas = canvas
		}
		if preview != nil {
			dl.preview = preview
		}
	}
}

// WithArea sets the container width and window height used to size the
// canvas. It defaults to the display config.
func WithArea(containerWidth, windowHeight float64) Option {
	return func(dl *Dialog) {
		dl.containerWidth = containerWidth
		dl.windowHeight = windowHeight
	}
}

// WithOnChange registers a callback run after every repaint
func WithOnChange(fn func()) Option {
	return func(dl *Dialog) { dl.onChange = fn }
}

// New creates a closed dialog. The processor receives crop commits and the
// deliverer receives their results.
func New(cfg *config.Config, processor commit.Processor, deliverer commit.Deliverer, opts ...Option) *Dialog {
	if cfg == nil {
		cfg = config.Default()
	}

	commitOpts := []commit.Option{commit.WithMinExtent(cfg.Selection.MinExtent)}
	if cfg.Output.Suffix != "" {
		commitOpts = append(commitOpts, commit.WithSuffix(cfg.Output.Suffix))
	}

	d := &Dialog{
		cfg:            cfg,
		decoder:        engine.New(),
		notifier:       logNotifier{},
		tracker:        input.NewTracker(nil),
		pipeline:       render.New(cfg.RenderStyle()),
		committer:      commit.NewCommitter(processor, deliverer, commitOpts...),
		canvas:         render.NewImageSurface(0, 0),
		preview:        render.NewImageSurface(0, 0),
		containerWidth: cfg.Display.ContainerWidth,
		windowHeight:   cfg.Display.WindowHeight,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DisplayArea is the largest canvas for a container width and window height
func DisplayArea(dc config.DisplayConfig, containerWidth, windowHeight float64) (float64, float64) {
	maxW := min(dc.MaxWidth, containerWidth*dc.ContainerFraction)
	maxH := min(dc.MaxHeight, windowHeight*dc.WindowFraction)
	return maxW, maxH
}

// Open starts a session for data. An open session is closed first. When the
// image cannot be decoded the dialog stays closed and the error wraps
// ErrImageLoad.
func (d *Dialog) Open(data []byte, name string) error {
	d.Close()

	img, err := d.decoder.DecodeImage(data)
	if err != nil {
		return d.loadFailed(name, err)
	}

	b := img.Bounds()
	maxW, maxH := DisplayArea(d.cfg.Display, d.containerWidth, d.windowHeight)
	vp, err := geometry.Fit(b.Dx(), b.Dy(), maxW, maxH)
	if err != nil {
		return d.loadFailed(name, err)
	}

	machine := selection.NewWithMinExtent(vp, d.cfg.Selection.MinExtent)
	ratio, err := selection.ParseRatio(d.cfg.Selection.Ratio)
	if err == nil {
		err = machine.SetRatio(ratio)
	}
	if err != nil {
		log.Debugf("ignoring configured ratio %q: %v", d.cfg.Selection.Ratio, err)
	}

	d.session = &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Data:     data,
		Image:    img,
		Viewport: vp,
		Opened:   time.Now(),
	}
	d.machine = machine
	d.delivered = types.Delivery{}

	log.Printf("Opened %s (%dx%d, display %dx%d) session %s", name, vp.NaturalWidth, vp.NaturalHeight, vp.DisplayWidth, vp.DisplayHeight, d.session.ID)

	d.pipeline.ClearPreview(d.preview)
	d.redraw()
	return nil
}

func (d *Dialog) loadFailed(name string, cause error) error {
	log.Printf("Failed to load %s: %v", name, cause)
	d.notifier.Notify(fmt.Sprintf("Could not load image %s", name))
	return fmt.Errorf("%w %s: %w", ErrImageLoad, name, cause)
}

// Close ends the session and releases drag tracking. Closing a closed
// dialog does nothing.
func (d *Dialog) Close() {
	if d.session == nil {
		return
	}
	d.tracker.Release()
	d.machine.Clear()
	d.pipeline.ClearPreview(d.preview)

	log.Debugf("closed session %s", d.session.ID)
	d.session = nil
	d.machine = nil
}

// HandleEvent feeds a unified input event to the selection. It reports
// whether the selection changed.
func (d *Dialog) HandleEvent(ev selection.Event) bool {
	if d.session == nil {
		return false
	}
	d.tracker.Observe(ev)
	if !d.machine.Handle(ev) {
		return false
	}
	d.redraw()
	return true
}

// HandleMouse adapts and handles a mouse event
func (d *Dialog) HandleMouse(e input.MouseEvent) bool {
	ev, ok := input.FromMouse(e)
	return ok && d.HandleEvent(ev)
}

// HandleTouch adapts and handles a touch event
func (d *Dialog) HandleTouch(e input.TouchEvent) bool {
	ev, ok := input.FromTouch(e)
	return ok && d.HandleEvent(ev)
}

// SetRatio sets the ratio used by later drags; 0 is free
func (d *Dialog) SetRatio(ratio float64) error {
	if d.session == nil {
		return ErrNotOpen
	}
	return d.machine.SetRatio(ratio)
}

// Clear removes the selection and repaints the plain image
func (d *Dialog) Clear() error {
	if d.session == nil {
		return ErrNotOpen
	}
	d.tracker.Release()
	d.machine.Clear()
	d.pipeline.ClearPreview(d.preview)
	d.redraw()
	return nil
}

// Resize refits the canvas to a new container. The selection keeps covering
// the same source pixels.
func (d *Dialog) Resize(containerWidth, windowHeight float64) error {
	d.containerWidth = containerWidth
	d.windowHeight = windowHeight
	if d.session == nil {
		return nil
	}

	maxW, maxH := DisplayArea(d.cfg.Display, containerWidth, windowHeight)
	old := d.session.Viewport
	vp, err := geometry.Fit(old.NaturalWidth, old.NaturalHeight, maxW, maxH)
	if err != nil {
		return fmt.Errorf("failed to resize canvas: %w", err)
	}
	if vp == old {
		return nil
	}

	covered := geometry.RealRect(d.machine.Normalized(), old)
	machine := selection.NewWithMinExtent(vp, d.machine.MinExtent())
	_ = machine.SetRatio(d.machine.Ratio())
	if !covered.Empty() {
		machine.Set(geometry.DisplayRect(covered, vp))
	}

	d.tracker.Release()
	d.session.Viewport = vp
	d.machine = machine
	log.Debugf("resized canvas to %dx%d (scale %.4f)", vp.DisplayWidth, vp.DisplayHeight, vp.Scale)

	d.redraw()
	return nil
}

// Apply commits the selection. On success the result has been delivered and
// the dialog is closed. Failures are reported through the notifier and
// leave the dialog open.
func (d *Dialog) Apply() error {
	if d.session == nil {
		return ErrNotOpen
	}

	delivery, err := d.committer.Commit(commit.Request{
		Data:      d.session.Data,
		Name:      d.session.Name,
		Selection: d.machine.Rect(),
		Viewport:  d.session.Viewport,
	})
	if err != nil {
		var perr *commit.ProcessingError
		switch {
		case errors.Is(err, commit.ErrSelectionTooSmall):
			d.notifier.Notify("Please select a larger area to crop")
		case errors.As(err, &perr):
			d.notifier.Notify("Error cropping image: " + perr.Message)
		default:
			d.notifier.Notify("Error saving cropped image: " + err.Error())
		}
		log.Printf("Crop of %s failed: %v", d.session.Name, err)
		return err
	}

	log.Printf("Cropped %s to %s (%s)", d.session.Name, delivery.Name, d.Coords())
	d.delivered = delivery
	d.Close()
	return nil
}

// Suggest replaces the selection with one proposed by s, honoring the
// active ratio
func (d *Dialog) Suggest(ctx context.Context, s suggest.Suggester) (suggest.Suggestion, error) {
	if d.session == nil {
		return suggest.Suggestion{}, ErrNotOpen
	}

	sug, err := s.Suggest(ctx, d.session.Image, d.machine.Ratio())
	if err != nil {
		d.notifier.Notify("Could not suggest a selection: " + err.Error())
		return suggest.Suggestion{}, fmt.Errorf("suggestion failed: %w", err)
	}
	return sug, d.ApplySuggestion(sug)
}

// ApplySuggestion sets the selection to a suggestion computed elsewhere, for
// hosts that run the suggester off the UI loop
func (d *Dialog) ApplySuggestion(sug suggest.Suggestion) error {
	if d.session == nil {
		return ErrNotOpen
	}
	d.tracker.Release()
	d.machine.Set(geometry.DisplayRect(sug.Rect, d.session.Viewport))
	d.redraw()
	return nil
}

// Coords is the position and size readout for the current selection
func (d *Dialog) Coords() string {
	if d.session == nil {
		return ""
	}
	return render.Coords(d.machine.Normalized(), d.session.Viewport)
}

func (d *Dialog) redraw() {
	img, vp, rect := d.session.Image, d.session.Viewport, d.machine.Rect()
	d.pipeline.Redraw(d.canvas, img, vp, rect)
	if !d.pipeline.Preview(d.preview, img, vp, rect) {
		d.pipeline.ClearPreview(d.preview)
	}
	if d.onChange != nil {
		d.onChange()
	}
}

// IsOpen reports whether a session is active
func (d *Dialog) IsOpen() bool { return d.session != nil }

// Session returns the active session or nil
func (d *Dialog) Session() *Session { return d.session }

// Selection returns the raw selection, zero when closed
func (d *Dialog) Selection() types.SelectionRect {
	if d.machine == nil {
		return types.SelectionRect{}
	}
	return d.machine.Rect()
}

// State returns the selection machine state; Cleared when closed
func (d *Dialog) State() selection.State {
	if d.machine == nil {
		return selection.Cleared
	}
	return d.machine.State()
}

// Ratio returns the active ratio constraint
func (d *Dialog) Ratio() float64 {
	if d.machine == nil {
		return 0
	}
	return d.machine.Ratio()
}

// TooSmall reports whether the selection is below the minimum extent
func (d *Dialog) TooSmall() bool {
	return d.machine == nil || d.machine.TooSmall()
}

// Viewport returns the session viewport, zero when closed
func (d *Dialog) Viewport() types.Viewport {
	if d.session == nil {
		return types.Viewport{}
	}
	return d.session.Viewport
}

func (d *Dialog) Canvas() render.Surface  { return d.canvas }
func (d *Dialog) Preview() render.Surface { return d.preview }

// Tracking reports whether broad-scope drag tracking is bound
func (d *Dialog) Tracking() bool { return d.tracker.Bound() }

// LastDelivery is the result of the last successful Apply
func (d *Dialog) LastDelivery() types.Delivery { return d.delivered }
