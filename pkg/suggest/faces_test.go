package suggest

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSuggester struct {
	sug Suggestion
}

func (f fixedSuggester) Suggest(context.Context, image.Image, float64) (Suggestion, error) {
	return f.sug, nil
}

func TestFrameFacesFreeRatio(t *testing.T) {
	faces := []face{
		{rect: image.Rect(100, 100, 140, 140), q: 12},
		{rect: image.Rect(160, 100, 200, 140), q: 30},
	}
	sug := frameFaces(faces, 400, 300, 0, 1)

	assert.Equal(t, image.Rect(100, 100, 200, 140), sug.Subject)
	assert.Equal(t, "2 faces", sug.Label)
	assert.Equal(t, 30.0, sug.Confidence)
	assert.Equal(t, BackendFaces, sug.Backend)
	// padded by half the longer side, then clipped to the image
	assert.Equal(t, image.Rect(50, 50, 250, 190), sug.Rect)
}

func TestFrameFacesClipsPadding(t *testing.T) {
	sug := frameFaces([]face{{rect: image.Rect(0, 0, 40, 40), q: 15}}, 100, 100, 0, 1)
	assert.Equal(t, "face", sug.Label)
	assert.Equal(t, image.Rect(0, 0, 60, 60), sug.Rect)
}

func TestFrameFacesFixedRatio(t *testing.T) {
	faces := []face{{rect: image.Rect(20, 20, 60, 60), q: 20}}
	sug := frameFaces(faces, 400, 200, 1, 1)

	assert.InDelta(t, sug.Rect.Dx(), sug.Rect.Dy(), 1)
	assert.True(t, sug.Rect.In(image.Rect(0, 0, 400, 200)))
	// the subject's corner nearest the center is inside the crop
	assert.True(t, image.Pt(59, 59).In(sug.Rect))
}

func TestFacesFallsBackWithoutFaces(t *testing.T) {
	want := Suggestion{Rect: image.Rect(1, 1, 9, 9), Backend: BackendSmartcrop}
	f := &Faces{
		classifier: pigo.NewPigo(),
		params:     DefaultFaceParams(),
		zoom:       1,
		fallback:   fixedSuggester{sug: want},
	}

	// smaller than the smallest cascade window, so nothing is detected
	sug, err := f.Suggest(context.Background(), createTestImage(15, 15, image.Rectangle{}), 0)
	require.NoError(t, err)
	assert.Equal(t, want.Rect, sug.Rect)
	assert.Equal(t, BackendFaces, sug.Backend)
}

func TestFacesCanceled(t *testing.T) {
	f := &Faces{classifier: pigo.NewPigo(), params: DefaultFaceParams(), zoom: 1, fallback: fixedSuggester{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Suggest(ctx, createTestImage(15, 15, image.Rectangle{}), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFacesMissingCascade(t *testing.T) {
	_, err := LoadFaces(filepath.Join(t.TempDir(), "facefinder"), DefaultFaceParams(), 1)
	assert.ErrorContains(t, err, "failed to read face cascade")

	cfg := testConfig()
	cfg.Backend = BackendFaces
	cfg.CascadeFile = filepath.Join(t.TempDir(), "missing")
	_, err = New(cfg)
	assert.Error(t, err)
}
