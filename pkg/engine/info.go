package engine

import (
	"bytes"
	"fmt"
	"image"
)

// Info contains basic image metadata
type Info struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Format      string  `yaml:"format"`
	AspectRatio float64 `yaml:"aspect_ratio"`
	Ratio       string  `yaml:"ratio"`
	Area        int     `yaml:"area"`
	Bytes       int     `yaml:"bytes"`
	DPI         int     `yaml:"dpi"`
}

// Inspect reads dimensions and format without decoding the full image when
// the format allows it.
func (e *Engine) Inspect(data []byte) (Info, error) {
	raw, err := decodePayload(data)
	if err != nil {
		return Info{}, err
	}

	width, height, format := 0, 0, ""
	if cfg, f, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		width, height, format = cfg.Width, cfg.Height, f
	} else {
		img, f, err := decodeImageFromBytes(raw)
		if err != nil {
			return Info{}, err
		}
		width, height, format = img.Bounds().Dx(), img.Bounds().Dy(), f
	}
	if width <= 0 || height <= 0 {
		return Info{}, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	dpi, ok := DPIOf(raw, format)
	if !ok {
		dpi = DefaultDPI
	}

	return Info{
		Width:       width,
		Height:      height,
		Format:      format,
		AspectRatio: float64(width) / float64(height),
		Ratio:       RatioLabel(width, height),
		Area:        width * height,
		Bytes:       len(raw),
		DPI:         dpi,
	}, nil
}

// RatioLabel reduces width:height by their greatest common divisor
func RatioLabel(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	g := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/g, height/g)
}

// ValidateMinSize checks that an image meets a minimum side length
func ValidateMinSize(info Info, minSize int) error {
	if info.Width < minSize || info.Height < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", info.Width, info.Height, minSize)
	}
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
