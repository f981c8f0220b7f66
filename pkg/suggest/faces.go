package suggest

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/cropkit/internal/log"
)

// FaceParams tunes the pigo cascade run
type FaceParams struct {
	MinQ         float32 // detections below this quality are dropped
	IoUThreshold float64 // overlap at which detections are clustered
	ScaleFactor  float64
	ShiftFactor  float64
	MinSizePct   int // smallest face as a percentage of the shorter side
}

// DefaultFaceParams returns the settings used for photos
func DefaultFaceParams() FaceParams {
	return FaceParams{
		MinQ:         10.0,
		IoUThreshold: 0.2,
		ScaleFactor:  1.1,
		ShiftFactor:  0.1,
		MinSizePct:   1,
	}
}

// minFaceSize is the cascade's smallest usable window in pixels
const minFaceSize = 20

type face struct {
	rect image.Rectangle
	q    float32
}

// Faces frames the faces a pigo cascade finds. Images without a confident
// face go to the fallback suggester.
type Faces struct {
	classifier *pigo.Pigo
	params     FaceParams
	zoom       float64
	fallback   Suggester
}

// NewFaces unpacks a pigo cascade. A nil fallback uses smartcrop.
func NewFaces(cascade []byte, params FaceParams, zoom float64, fallback Suggester) (*Faces, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}
	if fallback == nil {
		fallback = NewSmartcrop(zoom)
	}
	return &Faces{classifier: classifier, params: params, zoom: zoom, fallback: fallback}, nil
}

// LoadFaces reads the cascade at path
func LoadFaces(path string, params FaceParams, zoom float64) (*Faces, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	return NewFaces(cascade, params, zoom, nil)
}

func (f *Faces) Suggest(ctx context.Context, img image.Image, ratio float64) (Suggestion, error) {
	src, w, h, err := prepare(img)
	if err != nil {
		return Suggestion{}, err
	}
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}

	faces := f.detect(src, w, h)
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}
	if len(faces) == 0 {
		log.Debugf("no faces found, falling back")
		sug, err := f.fallback.Suggest(ctx, src, ratio)
		if err != nil {
			return Suggestion{}, err
		}
		sug.Backend = BackendFaces
		return sug, nil
	}

	sug := frameFaces(faces, w, h, ratio, f.zoom)
	log.Debugf("faces suggested %v around %d face(s)", sug.Rect, len(faces))
	return sug, nil
}

func (f *Faces) detect(src *image.NRGBA, w, h int) []face {
	minDim := min(w, h)
	minSize := max(minFaceSize, minDim*f.params.MinSizePct/100)
	if minDim < minSize {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     minDim,
		ShiftFactor: f.params.ShiftFactor,
		ScaleFactor: f.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   h,
			Cols:   w,
			Dim:    w,
		},
	}
	dets := f.classifier.RunCascade(params, 0.0)
	dets = f.classifier.ClusterDetections(dets, f.params.IoUThreshold)

	bounds := image.Rect(0, 0, w, h)
	var faces []face
	for _, d := range dets {
		if d.Q < f.params.MinQ {
			continue
		}
		half := d.Scale / 2
		r := image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).Intersect(bounds)
		if r.Empty() {
			continue
		}
		faces = append(faces, face{rect: r, q: d.Q})
	}
	return faces
}

// frameFaces builds the suggestion for detected faces. The subject is the
// union of all faces. A free ratio pads it by half its longer side for
// context; a fixed ratio takes the largest box of that ratio around the
// subject point nearest the image center.
func frameFaces(faces []face, w, h int, ratio, zoom float64) Suggestion {
	sort.Slice(faces, func(i, j int) bool { return faces[i].q > faces[j].q })

	subject := faces[0].rect
	for _, fc := range faces[1:] {
		subject = subject.Union(fc.rect)
	}

	sug := Suggestion{
		Subject:    subject,
		Label:      "face",
		Confidence: float64(faces[0].q),
		Backend:    BackendFaces,
	}
	if len(faces) > 1 {
		sug.Label = fmt.Sprintf("%d faces", len(faces))
	}

	if ratio == 0 {
		pad := max(subject.Dx(), subject.Dy()) / 2
		sug.Rect = shrink(subject.Inset(-pad).Intersect(image.Rect(0, 0, w, h)), zoom)
		return sug
	}

	cx, cy := NearestPointToCenter(RectToBox(subject, w, h))
	sug.Rect = BoxToRect(OptimalCropBox(cx, cy, ratio, w, h, zoom), w, h)
	return sug
}
