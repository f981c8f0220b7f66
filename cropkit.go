// Package cropkit selects and applies image crops.
//
// The interactive flow lives in pkg/dialog: open an image, feed it pointer
// or touch input, and Apply the selection. This package wires the dialog to
// the processing engine and configuration so hosts need one import for the
// common cases:
//
//	kit := cropkit.New(nil)
//	dlg := kit.NewDialog(delivery.NewFileDeliverer("out", false))
//	if err := dlg.Open(data, "photo.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	dlg.HandleMouse(input.MouseEvent{Kind: input.MouseDown, X: 40, Y: 30})
//	dlg.HandleMouse(input.MouseEvent{Kind: input.MouseMove, X: 360, Y: 250})
//	dlg.HandleMouse(input.MouseEvent{Kind: input.MouseUp, X: 360, Y: 250})
//	if err := dlg.Apply(); err != nil {
//		log.Fatal(err)
//	}
//
// Crop covers the headless case where the region is already known in real
// pixels, and Suggest asks the configured backend for a region.
package cropkit

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/commit"
	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/engine"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/suggest"
	"github.com/menta2k/cropkit/pkg/types"
)

// Version of the cropkit library
const Version = "1.0.0"

// Kit bundles a configuration with the engine it implies
type Kit struct {
	cfg    *config.Config
	engine *engine.Engine
}

// New creates a kit. A nil cfg uses the defaults.
func New(cfg *config.Config) *Kit {
	if cfg == nil {
		cfg = config.Default()
	}
	e := engine.New()
	e.JPEGQuality = cfg.Output.JPEGQuality
	e.WebPLossless = cfg.Output.WebPLossless
	return &Kit{cfg: cfg, engine: e}
}

// Config returns the kit's configuration
func (k *Kit) Config() *config.Config { return k.cfg }

// Engine returns the processing engine
func (k *Kit) Engine() *engine.Engine { return k.engine }

// NewDialog creates a closed crop dialog that commits through the kit's
// engine and hands results to deliverer
func (k *Kit) NewDialog(deliverer commit.Deliverer, opts ...dialog.Option) *dialog.Dialog {
	return dialog.New(k.cfg, k.engine, deliverer, append([]dialog.Option{dialog.WithDecoder(k.engine)}, opts...)...)
}

// Crop cuts r, in real pixels, out of the encoded image data and delivers
// it under the cropped form of name. The region is clamped to the image.
// Later opts override the configured suffix and minimum extent.
func (k *Kit) Crop(data []byte, name string, r image.Rectangle, deliverer commit.Deliverer, opts ...commit.Option) (types.Delivery, error) {
	info, err := k.engine.Inspect(data)
	if err != nil {
		return types.Delivery{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := engine.ValidateMinSize(info, int(math.Ceil(k.cfg.Selection.MinExtent))); err != nil {
		return types.Delivery{}, err
	}
	vp, err := geometry.NewViewport(info.Width, info.Height, info.Width, info.Height)
	if err != nil {
		return types.Delivery{}, err
	}

	base := []commit.Option{commit.WithMinExtent(k.cfg.Selection.MinExtent)}
	if k.cfg.Output.Suffix != "" {
		base = append(base, commit.WithSuffix(k.cfg.Output.Suffix))
	}
	committer := commit.NewCommitter(k.engine, deliverer, append(base, opts...)...)

	return committer.Commit(commit.Request{
		Data: data,
		Name: name,
		Selection: types.SelectionRect{
			StartX: float64(r.Min.X),
			StartY: float64(r.Min.Y),
			EndX:   float64(r.Max.X),
			EndY:   float64(r.Max.Y),
		},
		Viewport: vp,
	})
}

// Suggester builds the backend named in the suggest configuration
func (k *Kit) Suggester() (suggest.Suggester, error) {
	return suggest.New(k.cfg.Suggest)
}

// Suggest decodes data and asks the configured backend for a crop. A ratio
// of 0 leaves the aspect free.
func (k *Kit) Suggest(ctx context.Context, data []byte, ratio float64) (suggest.Suggestion, error) {
	s, err := k.Suggester()
	if err != nil {
		return suggest.Suggestion{}, err
	}
	img, err := k.engine.DecodeImage(data)
	if err != nil {
		return suggest.Suggestion{}, err
	}
	return s.Suggest(ctx, img, ratio)
}
