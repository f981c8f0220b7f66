// Package replay drives a crop dialog from a YAML script, for headless runs
// and reproducible bug reports.
//
// A script names the events in order:
//
//	ratio: "16:9"
//	origin: [0, 0]
//	steps:
//	  - mouse: down
//	    at: [100, 80]
//	  - mouse: move
//	    at: [400, 300]
//	  - mouse: up
//	    at: [400, 300]
//	  - snapshot: {canvas: canvas.png, preview: preview.png}
//	  - apply: true
package replay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/input"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/suggest"
	"github.com/menta2k/cropkit/pkg/types"
)

// ErrNoSuggester is reported for suggest steps when the runner has none
var ErrNoSuggester = errors.New("no suggester configured")

// Script is a recorded dialog session
type Script struct {
	// Ratio overrides the configured ratio right after the image opens
	Ratio string `yaml:"ratio,omitempty"`
	// Origin is the canvas position that event coordinates are relative to
	Origin []float64 `yaml:"origin,omitempty"`
	Steps  []Step    `yaml:"steps"`
}

// Snapshot names PNG files for the canvas and preview surfaces. Either may
// be empty.
type Snapshot struct {
	Canvas  string `yaml:"canvas,omitempty"`
	Preview string `yaml:"preview,omitempty"`
}

// Step is one action. Exactly one of its fields is set.
type Step struct {
	Mouse    string    `yaml:"mouse,omitempty"` // down, move, up
	Touch    string    `yaml:"touch,omitempty"` // start, move, end, cancel
	At       []float64 `yaml:"at,omitempty"`
	Ratio    *string   `yaml:"ratio,omitempty"`
	Clear    bool      `yaml:"clear,omitempty"`
	Resize   []float64 `yaml:"resize,omitempty"` // container width, window height
	Suggest  bool      `yaml:"suggest,omitempty"`
	Snapshot *Snapshot `yaml:"snapshot,omitempty"`
	Apply    bool      `yaml:"apply,omitempty"`
}

var (
	mouseKinds = map[string]input.MouseKind{
		"down": input.MouseDown,
		"move": input.MouseMove,
		"up":   input.MouseUp,
	}
	touchKinds = map[string]input.TouchKind{
		"start":  input.TouchStart,
		"move":   input.TouchMove,
		"end":    input.TouchEnd,
		"cancel": input.TouchCancel,
	}
)

// Parse reads and validates a script
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load parses the script at path
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks every step names a single known action
func (s *Script) Validate() error {
	if s.Ratio != "" {
		if _, err := selection.ParseRatio(s.Ratio); err != nil {
			return fmt.Errorf("ratio: %w", err)
		}
	}
	if s.Origin != nil && len(s.Origin) != 2 {
		return fmt.Errorf("origin must be [x, y]")
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	actions := 0
	for _, set := range []bool{
		st.Mouse != "", st.Touch != "", st.Ratio != nil, st.Clear,
		st.Resize != nil, st.Suggest, st.Snapshot != nil, st.Apply,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("expected exactly one action, found %d", actions)
	}

	switch {
	case st.Mouse != "":
		if _, ok := mouseKinds[strings.ToLower(st.Mouse)]; !ok {
			return fmt.Errorf("unknown mouse event %q", st.Mouse)
		}
		if len(st.At) != 2 {
			return fmt.Errorf("mouse events need at: [x, y]")
		}
	case st.Touch != "":
		if _, ok := touchKinds[strings.ToLower(st.Touch)]; !ok {
			return fmt.Errorf("unknown touch event %q", st.Touch)
		}
		if st.At != nil && len(st.At) != 2 {
			return fmt.Errorf("at must be [x, y]")
		}
	case st.Ratio != nil:
		if _, err := selection.ParseRatio(*st.Ratio); err != nil {
			return err
		}
	case st.Resize != nil:
		if len(st.Resize) != 2 || st.Resize[0] <= 0 || st.Resize[1] <= 0 {
			return fmt.Errorf("resize must be [width, height] with positive values")
		}
	}
	return nil
}

// Report summarizes a run
type Report struct {
	Session   string         `yaml:"session,omitempty"`
	Steps     int            `yaml:"steps"`
	State     string         `yaml:"state"`
	Selection types.Region   `yaml:"selection"`
	Coords    string         `yaml:"coords,omitempty"`
	Delivered string         `yaml:"delivered,omitempty"`
	Failures  []string       `yaml:"failures,omitempty"`
	Viewport  types.Viewport `yaml:"viewport"`
}

// Runner plays scripts against a dialog
type Runner struct {
	dlg       *dialog.Dialog
	suggester suggest.Suggester
}

// NewRunner creates a runner. suggester may be nil when scripts have no
// suggest steps.
func NewRunner(dlg *dialog.Dialog, suggester suggest.Suggester) *Runner {
	return &Runner{dlg: dlg, suggester: suggester}
}

// Run opens data and plays the script. Failed applies and suggestions are
// recorded in the report and do not stop the run, since the dialog stays
// usable after them. Steps after a successful apply find the dialog closed.
func (r *Runner) Run(ctx context.Context, s *Script, data []byte, name string) (Report, error) {
	if err := r.dlg.Open(data, name); err != nil {
		return Report{}, err
	}
	report := Report{Session: r.dlg.Session().ID, Viewport: r.dlg.Viewport()}

	if s.Ratio != "" {
		ratio, _ := selection.ParseRatio(s.Ratio)
		if err := r.dlg.SetRatio(ratio); err != nil {
			return report, err
		}
	}

	var box geometry.Box
	if len(s.Origin) == 2 {
		box = geometry.Box{Left: s.Origin[0], Top: s.Origin[1]}
	}

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := r.step(ctx, st, box)
		report.Steps++
		switch {
		case err == nil:
		case errors.Is(err, dialog.ErrNotOpen):
			return report, fmt.Errorf("step %d: %w", i+1, err)
		case st.Apply || st.Suggest:
			log.Debugf("step %d: %v", i+1, err)
			report.Failures = append(report.Failures, fmt.Sprintf("step %d: %v", i+1, err))
		default:
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	report.State = r.dlg.State().String()
	if r.dlg.IsOpen() {
		report.Viewport = r.dlg.Viewport()
		report.Selection = types.RegionOf(geometry.RealRect(r.dlg.Selection().Normalized(), report.Viewport))
		report.Coords = r.dlg.Coords()
	}
	report.Delivered = r.dlg.LastDelivery().Name
	return report, nil
}

func (r *Runner) step(ctx context.Context, st Step, box geometry.Box) error {
	switch {
	case st.Mouse != "":
		r.dlg.HandleMouse(input.MouseEvent{
			Kind: mouseKinds[strings.ToLower(st.Mouse)],
			X:    st.At[0],
			Y:    st.At[1],
			Box:  box,
		})
	case st.Touch != "":
		ev := input.TouchEvent{Kind: touchKinds[strings.ToLower(st.Touch)], Box: box}
		if len(st.At) == 2 {
			ev.Touches = []types.Point{{X: st.At[0], Y: st.At[1]}}
		}
		r.dlg.HandleTouch(ev)
	case st.Ratio != nil:
		ratio, _ := selection.ParseRatio(*st.Ratio)
		return r.dlg.SetRatio(ratio)
	case st.Clear:
		return r.dlg.Clear()
	case st.Resize != nil:
		return r.dlg.Resize(st.Resize[0], st.Resize[1])
	case st.Suggest:
		if r.suggester == nil {
			return ErrNoSuggester
		}
		_, err := r.dlg.Suggest(ctx, r.suggester)
		return err
	case st.Snapshot != nil:
		return r.snapshot(*st.Snapshot)
	case st.Apply:
		return r.dlg.Apply()
	}
	return nil
}

func (r *Runner) snapshot(s Snapshot) error {
	if !r.dlg.IsOpen() {
		return dialog.ErrNotOpen
	}
	if err := save(r.dlg.Canvas(), s.Canvas); err != nil {
		return fmt.Errorf("canvas snapshot: %w", err)
	}
	if err := save(r.dlg.Preview(), s.Preview); err != nil {
		return fmt.Errorf("preview snapshot: %w", err)
	}
	return nil
}

type imager interface {
	Image() *image.NRGBA
}

func save(surface any, path string) error {
	if path == "" {
		return nil
	}
	sf, ok := surface.(imager)
	if !ok {
		return fmt.Errorf("surface %T cannot be captured", surface)
	}
	img := sf.Image()
	if img.Bounds().Empty() {
		return fmt.Errorf("surface is empty")
	}
	return imaging.Save(img, path)
}
