// Package engine is the image-processing capability behind crop commits:
// decode, optional resize, edge crop and re-encode in the source format.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/cropkit/pkg/types"
)

const (
	// DefaultJPEGQuality is used when re-encoding JPEG sources
	DefaultJPEGQuality = 95
	// DefaultDPI is assumed for images without density metadata
	DefaultDPI = 96

	userAgent = "cropkit/1.0"
)

// Engine handles image processing operations
type Engine struct {
	JPEGQuality  int
	WebPQuality  float32
	WebPLossless bool
	HTTPTimeout  time.Duration
}

// New creates an engine with default encoder settings
func New() *Engine {
	return &Engine{
		JPEGQuality: DefaultJPEGQuality,
		WebPQuality: DefaultJPEGQuality,
		HTTPTimeout: 30 * time.Second,
	}
}

// Process decodes data, applies the requested transformations and re-encodes
// the result. A positive DPI is written into the output's density metadata.
// Failures are reported in the result, never as a panic.
func (e *Engine) Process(data []byte, opts types.ProcessOptions) types.ProcessResult {
	img, format, err := e.Decode(data)
	if err != nil {
		return types.ProcessResult{Error: err.Error()}
	}

	img, err = e.Apply(img, opts)
	if err != nil {
		return types.ProcessResult{Error: err.Error()}
	}

	out, format, err := e.Encode(img, format)
	if err != nil {
		return types.ProcessResult{Error: err.Error()}
	}

	result := types.ProcessResult{Success: true, Data: out, Format: format}
	if opts.DPI > 0 {
		out, err = SetDPI(out, format, opts.DPI)
		if err != nil {
			return types.ProcessResult{Error: err.Error()}
		}
		result.Data = out
		result.DPI = opts.DPI
	}
	return result
}

// Apply runs resize then crop, in that order
func (e *Engine) Apply(img image.Image, opts types.ProcessOptions) (image.Image, error) {
	if opts.Resize {
		img = Resize(img, opts.Width, opts.Height)
	}
	if opts.Crop {
		var err error
		img, err = CropEdges(img, EdgeOptionsFromPixels(types.CropEdges{
			Top:    opts.CropTop,
			Right:  opts.CropRight,
			Bottom: opts.CropBottom,
			Left:   opts.CropLeft,
		}))
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Resize scales img. A zero width or height keeps the aspect ratio; both zero
// leaves the image untouched.
func Resize(img image.Image, width, height int) image.Image {
	switch {
	case width > 0 && height > 0:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	case width > 0:
		return imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		return imaging.Resize(img, 0, height, imaging.Lanczos)
	}
	return img
}

// Decode accepts raw image bytes, a data URL or base64 text and returns the
// decoded image with its format name.
func (e *Engine) Decode(data []byte) (image.Image, string, error) {
	raw, err := decodePayload(data)
	if err != nil {
		return nil, "", err
	}
	return decodeImageFromBytes(raw)
}

// DecodeImage is Decode without the format, for callers that only need pixels
func (e *Engine) DecodeImage(data []byte) (image.Image, error) {
	img, _, err := e.Decode(data)
	return img, err
}

// Encode writes img in the given format. JPEG, PNG and WebP are preserved,
// anything else becomes PNG. The returned format is the one actually used.
func (e *Engine) Encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	var err error

	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		format = "jpeg"
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.jpegQuality()))
	case "webp":
		format = "webp"
		err = webp.Encode(&buf, img, &webp.Options{Lossless: e.WebPLossless, Quality: e.WebPQuality})
	default:
		format = "png"
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), format, nil
}

func (e *Engine) jpegQuality() int {
	if e.JPEGQuality <= 0 || e.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return e.JPEGQuality
}

// LoadSource reads image bytes from a local path or an http(s) URL
func (e *Engine) LoadSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return e.FetchURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// FetchURL downloads image bytes from a URL
func (e *Engine) FetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{Timeout: e.HTTPTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// SaveImage saves an image to a file with the specified format and quality
func (e *Engine) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (e *Engine) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodePayload unwraps data URLs and base64 text. Bytes that already
// look like an image are returned unchanged.
func decodePayload(data []byte) ([]byte, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return data, nil
	}

	text := string(data)
	isDataURL := strings.HasPrefix(text, "data:")
	if isDataURL {
		parts := strings.SplitN(text, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URL format")
		}
		text = parts[1]
	}
	text = strings.TrimSpace(text)

	decoded, err := decodeBase64(text)
	if err != nil {
		if isDataURL {
			return nil, fmt.Errorf("failed to decode base64: %w (data length: %d)", err, len(text))
		}
		// Not base64 either, let the image decoder report the real problem
		return data, nil
	}
	return decoded, nil
}

func decodeBase64(s string) ([]byte, error) {
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
	} {
		var out []byte
		if out, err = enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, err
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func decodeImageFromBytes(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	return nil, "", fmt.Errorf("failed to decode image: unknown or unsupported format")
}
