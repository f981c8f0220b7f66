package suggest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/types"
)

type MockVisionClient struct {
	mock.Mock
}

func (m *MockVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	args := m.Called(ctx, model, prompt, imgB64)
	return args.String(0), args.Error(1)
}

func (m *MockVisionClient) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	args := m.Called(ctx, model, prompt, imgB64)
	if r := args.Get(0); r != nil {
		return r.(*types.AnalysisResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// createTestImage is a dark gray image with a bright, detailed patch at patch
func createTestImage(width, height int, patch image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{40, 40, 40, 255}
			if image.Pt(x, y).In(patch) {
				c = color.NRGBA{uint8(200 + (x*7)%55), uint8(120 + (y*13)%100), uint8(80 + ((x+y)*5)%90), 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func testConfig() config.SuggestConfig {
	cfg := config.Default().Suggest
	cfg.SendSize = 256
	return cfg
}

func TestOptimalCropBox(t *testing.T) {
	// centered square on a 1000x500 image is 500x500
	b := OptimalCropBox(0.5, 0.5, 1, 1000, 500, 1)
	assert.InDelta(t, 0.25, b.X, 1e-9)
	assert.InDelta(t, 0.0, b.Y, 1e-9)
	assert.InDelta(t, 0.5, b.W, 1e-9)
	assert.InDelta(t, 1.0, b.H, 1e-9)

	// off-center point limits the size, zoom shrinks further
	b = OptimalCropBox(0.1, 0.5, 1, 1000, 500, 0.5)
	assert.InDelta(t, 0.1, b.W, 1e-9)
	assert.InDelta(t, 0.2, b.H, 1e-9)
	assert.InDelta(t, 0.05, b.X, 1e-9)

	// zero aspect falls back to the image's own
	b = OptimalCropBox(0.5, 0.5, 0, 800, 600, 1)
	assert.InDelta(t, 1.0, b.W, 1e-9)
	assert.InDelta(t, 1.0, b.H, 1e-9)
}

func TestNearestPointToCenter(t *testing.T) {
	x, y := NearestPointToCenter(types.Box{X: 0.6, Y: 0.1, W: 0.3, H: 0.2})
	assert.Equal(t, 0.6, x)
	assert.InDelta(t, 0.3, y, 1e-9)

	x, y = NearestPointToCenter(types.Box{X: 0.2, Y: 0.2, W: 0.6, H: 0.6})
	assert.Equal(t, 0.5, x)
	assert.Equal(t, 0.5, y)
}

func TestBoxRectConversions(t *testing.T) {
	r := BoxToRect(types.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.25}, 400, 200)
	assert.Equal(t, image.Rect(100, 100, 300, 150), r)

	assert.Equal(t, types.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.25}, RectToBox(r, 400, 200))
	assert.Equal(t, types.Box{}, RectToBox(r, 0, 200))

	// degenerate boxes still cover a pixel
	assert.Equal(t, image.Rect(400, 0, 401, 1), BoxToRect(types.Box{X: 1.2}, 400, 200))
}

func TestShrink(t *testing.T) {
	r := image.Rect(100, 100, 300, 200)
	assert.Equal(t, r, shrink(r, 1))
	assert.Equal(t, r, shrink(r, 0))
	assert.Equal(t, image.Rect(150, 125, 250, 175), shrink(r, 0.5))
}

func TestAspectSize(t *testing.T) {
	w, h := aspectSize(16.0/9, 0, 0)
	assert.Equal(t, 1778, w)
	assert.Equal(t, 1000, h)

	w, h = aspectSize(0.5, 0, 0)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 2000, h)

	w, h = aspectSize(0, 1000, 500)
	assert.Equal(t, 1600, w)
	assert.Equal(t, 1000, h)
}

func TestSmartcropHonorsRatio(t *testing.T) {
	img := createTestImage(400, 200, image.Rect(280, 40, 380, 160))
	s := NewSmartcrop(1)

	for _, ratio := range []float64{1, 16.0 / 9, 0.75} {
		got, err := s.Suggest(context.Background(), img, ratio)
		require.NoError(t, err)
		assert.Equal(t, BackendSmartcrop, got.Backend)
		assert.True(t, got.Rect.In(img.Bounds()), "rect %v", got.Rect)
		assert.False(t, got.Rect.Empty())
		assert.InDelta(t, ratio, float64(got.Rect.Dx())/float64(got.Rect.Dy()), 0.05, "ratio %v rect %v", ratio, got.Rect)
	}
}

func TestSmartcropFreeRatioIsSmallerThanImage(t *testing.T) {
	img := createTestImage(400, 200, image.Rect(300, 50, 380, 150))
	got, err := NewSmartcrop(1).Suggest(context.Background(), img, 0)
	require.NoError(t, err)
	assert.Less(t, got.Rect.Dx(), 400)
	assert.True(t, got.Rect.In(img.Bounds()))
}

func TestSmartcropCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSmartcrop(1).Suggest(ctx, createTestImage(50, 50, image.Rectangle{}), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuggestEmptyImage(t *testing.T) {
	_, err := NewSmartcrop(1).Suggest(context.Background(), image.NewNRGBA(image.Rectangle{}), 1)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func subject(box types.Box) *types.AnalysisResult {
	return &types.AnalysisResult{Primary: types.Primary{Label: "dog", Confidence: 0.8, Box: box, Cx: box.X + box.W/2, Cy: box.Y + box.H/2}}
}

func TestVisionFreeRatioUsesSubjectBox(t *testing.T) {
	mc := new(MockVisionClient)
	mc.On("AnalyzeImage", mock.Anything, "openbmb/minicpm-v4.5", mock.Anything, mock.AnythingOfType("string")).
		Return(subject(types.Box{X: 0.5, Y: 0.25, W: 0.25, H: 0.5}), nil)

	v := NewVision(mc, testConfig(), BackendOllama)
	got, err := v.Suggest(context.Background(), createTestImage(400, 200, image.Rectangle{}), 0)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(200, 50, 300, 150), got.Subject)
	assert.Equal(t, got.Subject, got.Rect)
	assert.Equal(t, "dog", got.Label)
	assert.Equal(t, BackendOllama, got.Backend)
	mc.AssertExpectations(t)
}

func TestVisionFixedRatioFramesSubject(t *testing.T) {
	mc := new(MockVisionClient)
	mc.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(subject(types.Box{X: 0.6, Y: 0.3, W: 0.3, H: 0.4}), nil)

	v := NewVision(mc, testConfig(), BackendLlamaCpp)
	got, err := v.Suggest(context.Background(), createTestImage(400, 200, image.Rectangle{}), 1)
	require.NoError(t, err)

	// nearest subject point to the center is (0.6, 0.5): 240,100 in pixels
	assert.Equal(t, image.Rect(140, 0, 340, 200), got.Rect)
	assert.True(t, got.Rect.In(image.Rect(0, 0, 400, 200)))
}

func TestVisionWithoutSubjectCentersCrop(t *testing.T) {
	mc := new(MockVisionClient)
	mc.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&types.AnalysisResult{Primary: types.Primary{Label: "none", Box: types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}}}, nil)

	cfg := testConfig()
	cfg.Zoom = 0.5
	got, err := NewVision(mc, cfg, BackendOllama).Suggest(context.Background(), createTestImage(400, 200, image.Rectangle{}), 2)
	require.NoError(t, err)

	assert.True(t, got.Subject.Empty())
	assert.Equal(t, image.Rect(100, 50, 300, 150), got.Rect)
}

func TestVisionError(t *testing.T) {
	mc := new(MockVisionClient)
	mc.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))

	_, err := NewVision(mc, testConfig(), BackendOllama).Suggest(context.Background(), createTestImage(10, 10, image.Rectangle{}), 0)
	assert.ErrorContains(t, err, "subject detection failed: timeout")
}

func TestVisionCheck(t *testing.T) {
	mc := new(MockVisionClient)
	mc.On("SimpleQuery", mock.Anything, "openbmb/minicpm-v4.5", mock.Anything, mock.AnythingOfType("string")).
		Return("a gray square", nil).Once()
	mc.On("SimpleQuery", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("refused"))

	var c Checker = NewVision(mc, testConfig(), BackendOllama)
	got, err := c.Check(context.Background(), createTestImage(40, 40, image.Rectangle{}))
	require.NoError(t, err)
	assert.Equal(t, "a gray square", got)

	_, err = c.Check(context.Background(), createTestImage(40, 40, image.Rectangle{}))
	assert.ErrorContains(t, err, "vision check failed: refused")

	_, err = c.Check(context.Background(), image.NewNRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, ok := Suggester(NewSmartcrop(1)).(Checker)
	assert.False(t, ok)
}

func TestNewBackends(t *testing.T) {
	cfg := testConfig()

	s, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Smartcrop{}, s)

	cfg.Backend = "ollama"
	s, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Vision{}, s)

	cfg.Backend = "LlamaCpp"
	cfg.Timeout = time.Second
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendLlamaCpp, s.(*Vision).backend)

	cfg.Backend = "ollama"
	cfg.OllamaURL = "not a url"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.Backend = "gemini"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "unknown suggest backend")
}

func TestDebugOverlay(t *testing.T) {
	img := createTestImage(200, 100, image.Rectangle{})
	out := DebugOverlay(img, Suggestion{
		Rect:    image.Rect(20, 10, 120, 90),
		Subject: image.Rect(40, 20, 100, 80),
	})

	assert.Equal(t, subjectColor, out.NRGBAAt(40, 50))
	assert.Equal(t, cropColor, out.NRGBAAt(20, 50))
	assert.Equal(t, cropColor, out.NRGBAAt(119, 50))
	assert.Equal(t, centerColor, out.NRGBAAt(70, 48))
	assert.Equal(t, imageColor, out.NRGBAAt(100, 50))
	assert.Equal(t, color.NRGBA{40, 40, 40, 255}, out.NRGBAAt(5, 5))

	// source untouched
	assert.Equal(t, color.NRGBA{40, 40, 40, 255}, img.NRGBAAt(20, 50))
}

func TestOptimalCropBoxStaysInside(t *testing.T) {
	for _, c := range [][2]float64{{0, 0}, {1, 1}, {0.3, 0.9}, {0.99, 0.01}} {
		b := OptimalCropBox(c[0], c[1], 1.5, 640, 480, 1)
		assert.GreaterOrEqual(t, b.X, 0.0)
		assert.GreaterOrEqual(t, b.Y, 0.0)
		assert.LessOrEqual(t, b.X+b.W, 1.0+1e-9)
		assert.LessOrEqual(t, b.Y+b.H, 1.0+1e-9)
		assert.False(t, math.IsNaN(b.W))
	}
}

func BenchmarkSmartcrop(b *testing.B) {
	img := createTestImage(800, 600, image.Rect(500, 100, 700, 400))
	s := NewSmartcrop(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Suggest(context.Background(), img, 1)
	}
}
