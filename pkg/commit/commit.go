// Package commit turns a display-space selection into a crop request for the
// processing engine and hands the result to a delivery collaborator.
package commit

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/types"
)

// DefaultSuffix is inserted before the extension of delivered crops
const DefaultSuffix = "_cropped"

// ErrSelectionTooSmall is returned when either side of the selection is
// below the minimum extent. Nothing is sent to the processor.
var ErrSelectionTooSmall = errors.New("select a crop area first")

// ProcessingError carries the engine's failure message verbatim
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string {
	return "crop processing failed: " + e.Message
}

// Processor is the image-processing capability
type Processor interface {
	Process(data []byte, opts types.ProcessOptions) types.ProcessResult
}

// Deliverer saves or exports a finished image
type Deliverer interface {
	Deliver(d types.Delivery) error
}

// Edges computes the crop edges for a display rectangle. The real-pixel size
// is trimmed where rounding would push it past the far edge, so edges are
// never negative and always sum with the size to the natural dimensions.
func Edges(r types.Rect, v types.Viewport, minExtent float64) (types.CropEdges, error) {
	if selection.TooSmall(r, minExtent) {
		return types.CropEdges{}, ErrSelectionTooSmall
	}

	realX, realY := geometry.ToRealPixels(r.X, r.Y, v)
	realW, realH := geometry.ToRealPixels(r.Width, r.Height, v)

	realX = clampInt(realX, 0, v.NaturalWidth)
	realY = clampInt(realY, 0, v.NaturalHeight)
	realW = clampInt(realW, 0, v.NaturalWidth-realX)
	realH = clampInt(realH, 0, v.NaturalHeight-realY)

	return types.CropEdges{
		Top:    realY,
		Right:  v.NaturalWidth - realX - realW,
		Bottom: v.NaturalHeight - realY - realH,
		Left:   realX,
	}, nil
}

// Options builds the engine options for a pure crop: no resize, no DPI change
func Options(e types.CropEdges) types.ProcessOptions {
	return types.ProcessOptions{
		Resize:     false,
		Crop:       true,
		DPI:        0,
		CropTop:    e.Top,
		CropRight:  e.Right,
		CropBottom: e.Bottom,
		CropLeft:   e.Left,
	}
}

// CroppedName inserts suffix before the file extension, or appends it when
// the name has none.
func CroppedName(name, suffix string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name + suffix
	}
	return strings.TrimSuffix(name, ext) + suffix + ext
}

// Request is one commit of a selection against a source image
type Request struct {
	Data      []byte
	Name      string
	Selection types.SelectionRect
	Viewport  types.Viewport
}

// Committer runs the edges → process → deliver sequence
type Committer struct {
	processor Processor
	deliverer Deliverer
	suffix    string
	minExtent float64
}

// Option configures a Committer
type Option func(*Committer)

// WithSuffix overrides DefaultSuffix
func WithSuffix(suffix string) Option {
	return func(c *Committer) {
		c.suffix = suffix
	}
}

// WithMinExtent overrides selection.DefaultMinExtent
func WithMinExtent(min float64) Option {
	return func(c *Committer) {
		if min > 0 {
			c.minExtent = min
		}
	}
}

// NewCommitter creates a committer around the engine and the delivery target
func NewCommitter(processor Processor, deliverer Deliverer, opts ...Option) *Committer {
	c := &Committer{
		processor: processor,
		deliverer: deliverer,
		suffix:    DefaultSuffix,
		minExtent: selection.DefaultMinExtent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit crops req.Data to the selection and delivers the result. The
// returned delivery is valid only when err is nil.
func (c *Committer) Commit(req Request) (types.Delivery, error) {
	edges, err := Edges(req.Selection.Normalized(), req.Viewport, c.minExtent)
	if err != nil {
		return types.Delivery{}, err
	}

	result := c.processor.Process(req.Data, Options(edges))
	if !result.Success || len(result.Data) == 0 {
		msg := result.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return types.Delivery{}, &ProcessingError{Message: msg}
	}

	d := types.Delivery{
		Name: CroppedName(req.Name, c.suffix),
		Data: result.Data,
	}
	if err := c.deliverer.Deliver(d); err != nil {
		return types.Delivery{}, fmt.Errorf("failed to deliver %s: %w", d.Name, err)
	}
	return d, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
