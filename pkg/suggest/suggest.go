// Package suggest proposes a crop selection for an image, either from
// content-aware analysis (smartcrop) or from a vision model's subject box.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/client"
	"github.com/menta2k/cropkit/pkg/detection"
	"github.com/menta2k/cropkit/pkg/engine"
	"github.com/menta2k/cropkit/pkg/llamacpp"
	"github.com/menta2k/cropkit/pkg/ollama"
)

// Backend names accepted by New
const (
	BackendSmartcrop = "smartcrop"
	BackendFaces     = "faces"
	BackendOllama    = "ollama"
	BackendLlamaCpp  = "llamacpp"
)

// ErrEmptyImage is returned for images without pixels
var ErrEmptyImage = errors.New("image has no pixels")

// Suggestion is a proposed crop in real pixels, relative to the image's
// top-left corner.
type Suggestion struct {
	Rect       image.Rectangle
	Subject    image.Rectangle // empty when the backend does not locate a subject
	Label      string
	Confidence float64
	Backend    string
}

// Suggester proposes a crop. A ratio of 0 leaves the aspect free; otherwise
// Rect.Dx()/Rect.Dy() is ratio within a pixel.
type Suggester interface {
	Suggest(ctx context.Context, img image.Image, ratio float64) (Suggestion, error)
}

// Checker is implemented by backends that can confirm the model sees an image
type Checker interface {
	Check(ctx context.Context, img image.Image) (string, error)
}

// New builds the suggester named by cfg.Backend
func New(cfg config.SuggestConfig) (Suggester, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSmartcrop:
		return NewSmartcrop(cfg.Zoom), nil
	case BackendFaces:
		params := DefaultFaceParams()
		if cfg.FaceConfidence > 0 {
			params.MinQ = float32(cfg.FaceConfidence)
		}
		return LoadFaces(cfg.CascadeFile, params, cfg.Zoom)
	case BackendOllama:
		c, err := ollama.NewClient(cfg.OllamaURL, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return NewVision(c, cfg, BackendOllama), nil
	case BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.LlamaCppURL, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return NewVision(c, cfg, BackendLlamaCpp), nil
	default:
		return nil, fmt.Errorf("unknown suggest backend %q", cfg.Backend)
	}
}

// Smartcrop finds the most interesting region with muesli/smartcrop
type Smartcrop struct {
	zoom     float64
	analyzer smartcrop.Analyzer
}

// NewSmartcrop creates a smartcrop suggester. Zoom below 1 shrinks the
// proposal around its center.
func NewSmartcrop(zoom float64) *Smartcrop {
	return &Smartcrop{
		zoom:     zoom,
		analyzer: smartcrop.NewAnalyzer(&resizer{filter: imaging.Lanczos}),
	}
}

func (s *Smartcrop) Suggest(ctx context.Context, img image.Image, ratio float64) (Suggestion, error) {
	src, w, h, err := prepare(img)
	if err != nil {
		return Suggestion{}, err
	}
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}

	cw, ch := aspectSize(ratio, w, h)

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)

	go func() {
		crop, err := s.analyzer.FindBestCrop(src, cw, ch)
		resultChan <- cropResult{crop: crop, err: err}
	}()

	select {
	case <-ctx.Done():
		return Suggestion{}, ctx.Err()
	case result := <-resultChan:
		if result.err != nil {
			return Suggestion{}, fmt.Errorf("finding best crop: %w", result.err)
		}
		rect := shrink(result.crop.Intersect(src.Bounds()), s.zoom)
		log.Debugf("smartcrop %dx%d ratio %.3f -> %v", w, h, ratio, rect)
		return Suggestion{Rect: rect, Backend: BackendSmartcrop}, nil
	}
}

// resizer implements smartcrop's Resizer with imaging
type resizer struct {
	filter imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// Vision asks a vision model for the subject and frames a crop around it
type Vision struct {
	detector    *detection.Detector
	engine      *engine.Engine
	model       string
	sendFormat  string
	sendSize    int
	sendQuality int
	zoom        float64
	backend     string
}

// NewVision creates a model-backed suggester
func NewVision(c client.VisionClient, cfg config.SuggestConfig, backend string) *Vision {
	return &Vision{
		detector:    detection.NewDetector(c),
		engine:      engine.New(),
		model:       cfg.Model,
		sendFormat:  cfg.SendFormat,
		sendSize:    cfg.SendSize,
		sendQuality: cfg.SendQuality,
		zoom:        cfg.Zoom,
		backend:     backend,
	}
}

// Suggest frames the detected subject. With a free ratio the subject box is
// used as is. With a fixed ratio the largest box of that ratio is centered on
// the subject point nearest the image center. Without a subject the image
// center is used.
func (v *Vision) Suggest(ctx context.Context, img image.Image, ratio float64) (Suggestion, error) {
	src, w, h, err := prepare(img)
	if err != nil {
		return Suggestion{}, err
	}

	b64, err := v.engine.PrepareImageForModel(src, v.sendFormat, v.sendSize, v.sendQuality)
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to prepare image: %w", err)
	}

	res, err := v.detector.DetectSubject(ctx, v.model, b64)
	if err != nil {
		return Suggestion{}, fmt.Errorf("subject detection failed: %w", err)
	}

	out := Suggestion{Backend: v.backend, Label: res.Primary.Label, Confidence: res.Primary.Confidence}
	found := detection.Found(res)

	switch {
	case found && ratio == 0:
		out.Subject = BoxToRect(res.Primary.Box, w, h)
		out.Rect = shrink(out.Subject, v.zoom)
	case found:
		out.Subject = BoxToRect(res.Primary.Box, w, h)
		cx, cy := NearestPointToCenter(res.Primary.Box)
		out.Rect = BoxToRect(OptimalCropBox(cx, cy, ratio, w, h, v.zoom), w, h)
	default:
		out.Rect = BoxToRect(OptimalCropBox(0.5, 0.5, ratio, w, h, v.zoom), w, h)
	}

	log.Debugf("%s suggested %v for %q (%.2f)", v.backend, out.Rect, out.Label, out.Confidence)
	return out, nil
}

// Check asks the model a free-form question about img. The answer shows
// whether the model receives and understands the images it is sent.
func (v *Vision) Check(ctx context.Context, img image.Image) (string, error) {
	src, _, _, err := prepare(img)
	if err != nil {
		return "", err
	}
	b64, err := v.engine.PrepareImageForModel(src, v.sendFormat, v.sendSize, v.sendQuality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	answer, err := v.detector.TestVision(ctx, v.model, b64)
	if err != nil {
		return "", fmt.Errorf("vision check failed: %w", err)
	}
	return answer, nil
}

// prepare returns a zero-origin copy of img and its size
func prepare(img image.Image) (*image.NRGBA, int, int, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, 0, 0, ErrEmptyImage
	}
	src := imaging.Clone(img)
	return src, src.Bounds().Dx(), src.Bounds().Dy(), nil
}

// freeTrim is the share of the longer side a free-ratio smartcrop proposal
// keeps. smartcrop returns the largest crop of an aspect, so at the image's
// own aspect the proposal would be the whole image.
const freeTrim = 0.8

// aspectSize turns a ratio into integer crop dimensions for smartcrop
func aspectSize(ratio float64, w, h int) (int, int) {
	if ratio <= 0 {
		if w >= h {
			ratio = float64(w) * freeTrim / float64(h)
		} else {
			ratio = float64(w) / (float64(h) * freeTrim)
		}
	}
	const base = 1000
	if ratio >= 1 {
		return int(base*ratio + 0.5), base
	}
	return base, int(base/ratio + 0.5)
}
