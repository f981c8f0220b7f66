package engine

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cropkit/pkg/types"
)

// CropValue is an edge amount in pixels or as a percentage of the dimension
type CropValue struct {
	Value     int
	IsPercent bool
}

// EdgeCropOptions holds the amount removed from each side
type EdgeCropOptions struct {
	Top    CropValue
	Bottom CropValue
	Left   CropValue
	Right  CropValue
}

// ParseCropValue parses "100" or "10%". An empty string is zero pixels.
func ParseCropValue(s string) (CropValue, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CropValue{}, nil
	}

	if strings.HasSuffix(s, "%") {
		v, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
		if err != nil {
			return CropValue{}, fmt.Errorf("invalid percentage value: %s", s)
		}
		if v < 0 || v > 100 {
			return CropValue{}, fmt.Errorf("percentage must be between 0 and 100: %d", v)
		}
		return CropValue{Value: v, IsPercent: true}, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return CropValue{}, fmt.Errorf("invalid pixel value: %s", s)
	}
	if v < 0 {
		return CropValue{}, fmt.Errorf("pixel value cannot be negative: %d", v)
	}
	return CropValue{Value: v}, nil
}

// Pixels resolves the value against a dimension
func (cv CropValue) Pixels(dimension int) int {
	if cv.IsPercent {
		return dimension * cv.Value / 100
	}
	return cv.Value
}

func (cv CropValue) String() string {
	if cv.IsPercent {
		return strconv.Itoa(cv.Value) + "%"
	}
	return strconv.Itoa(cv.Value)
}

// ParseEdgeCropOptions parses the four edge strings
func ParseEdgeCropOptions(top, right, bottom, left string) (EdgeCropOptions, error) {
	var opts EdgeCropOptions
	for _, f := range []struct {
		name string
		in   string
		out  *CropValue
	}{
		{"top", top, &opts.Top},
		{"right", right, &opts.Right},
		{"bottom", bottom, &opts.Bottom},
		{"left", left, &opts.Left},
	} {
		v, err := ParseCropValue(f.in)
		if err != nil {
			return EdgeCropOptions{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.out = v
	}
	return opts, nil
}

// EdgeOptionsFromPixels converts computed crop edges into engine options
func EdgeOptionsFromPixels(e types.CropEdges) EdgeCropOptions {
	return EdgeCropOptions{
		Top:    CropValue{Value: e.Top},
		Bottom: CropValue{Value: e.Bottom},
		Left:   CropValue{Value: e.Left},
		Right:  CropValue{Value: e.Right},
	}
}

// Resolve returns the pixel edges for an image of the given size
func (o EdgeCropOptions) Resolve(width, height int) types.CropEdges {
	return types.CropEdges{
		Top:    o.Top.Pixels(height),
		Right:  o.Right.Pixels(width),
		Bottom: o.Bottom.Pixels(height),
		Left:   o.Left.Pixels(width),
	}
}

// IsZero reports whether no edge removes anything
func (o EdgeCropOptions) IsZero() bool {
	return o.Top.Value == 0 && o.Right.Value == 0 && o.Bottom.Value == 0 && o.Left.Value == 0
}

// ValidateCropOptions checks that cropping leaves at least one pixel
func ValidateCropOptions(o EdgeCropOptions, width, height int) error {
	e := o.Resolve(width, height)
	if w := width - e.Left - e.Right; w <= 0 {
		return fmt.Errorf("crop would remove entire width (remaining: %d)", w)
	}
	if h := height - e.Top - e.Bottom; h <= 0 {
		return fmt.Errorf("crop would remove entire height (remaining: %d)", h)
	}
	return nil
}

// CropEdges removes the given amounts from each side of img
func CropEdges(img image.Image, o EdgeCropOptions) (image.Image, error) {
	b := img.Bounds()
	e := o.Resolve(b.Dx(), b.Dy())

	if b.Dx()-e.Left-e.Right <= 0 {
		return nil, fmt.Errorf("cropping would remove entire width (left: %d, right: %d, width: %d)",
			e.Left, e.Right, b.Dx())
	}
	if b.Dy()-e.Top-e.Bottom <= 0 {
		return nil, fmt.Errorf("cropping would remove entire height (top: %d, bottom: %d, height: %d)",
			e.Top, e.Bottom, b.Dy())
	}

	rect := image.Rect(
		b.Min.X+e.Left,
		b.Min.Y+e.Top,
		b.Max.X-e.Right,
		b.Max.Y-e.Bottom,
	)
	return imaging.Crop(img, rect), nil
}
