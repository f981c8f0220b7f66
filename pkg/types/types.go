package types

import (
	"image"
	"math"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Viewport maps the natural image size onto the display surface.
// Scale is DisplayWidth / NaturalWidth and is always positive.
type Viewport struct {
	NaturalWidth  int     `json:"natural_width" yaml:"natural_width"`
	NaturalHeight int     `json:"natural_height" yaml:"natural_height"`
	DisplayWidth  int     `json:"display_width" yaml:"display_width"`
	DisplayHeight int     `json:"display_height" yaml:"display_height"`
	Scale         float64 `json:"scale" yaml:"scale"`
}

// Point is a position in pointer or display space
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Rect is an ordered rectangle in display space
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// SelectionRect holds the raw drag endpoints in display space.
// Start may be greater than End on either axis.
type SelectionRect struct {
	StartX float64 `json:"start_x" yaml:"start_x"`
	StartY float64 `json:"start_y" yaml:"start_y"`
	EndX   float64 `json:"end_x" yaml:"end_x"`
	EndY   float64 `json:"end_y" yaml:"end_y"`
}

// Normalized returns the selection as an ordered rectangle
func (s SelectionRect) Normalized() Rect {
	return Rect{
		X:      math.Min(s.StartX, s.EndX),
		Y:      math.Min(s.StartY, s.EndY),
		Width:  math.Abs(s.EndX - s.StartX),
		Height: math.Abs(s.EndY - s.StartY),
	}
}

// IsZero reports whether the selection has been reset
func (s SelectionRect) IsZero() bool {
	return s == SelectionRect{}
}

// Region is a rectangle in real pixels, as reported to users
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RegionOf converts an image rectangle
func RegionOf(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// EdgesOf returns the edges that crop an image with bounds b down to r
func EdgesOf(r, b image.Rectangle) CropEdges {
	return CropEdges{
		Top:    r.Min.Y - b.Min.Y,
		Right:  b.Max.X - r.Max.X,
		Bottom: b.Max.Y - r.Max.Y,
		Left:   r.Min.X - b.Min.X,
	}
}

// CropEdges are the amounts removed from each side of the source image, in real pixels
type CropEdges struct {
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
}

// ProcessOptions mirrors the option record accepted by the processing engine.
// Crop edge values are pixel counts relative to the untransformed source.
type ProcessOptions struct {
	Resize     bool `json:"resize" yaml:"resize"`
	Width      int  `json:"width" yaml:"width"`
	Height     int  `json:"height" yaml:"height"`
	Crop       bool `json:"crop" yaml:"crop"`
	CropTop    int  `json:"cropTop" yaml:"crop_top"`
	CropRight  int  `json:"cropRight" yaml:"crop_right"`
	CropBottom int  `json:"cropBottom" yaml:"crop_bottom"`
	CropLeft   int  `json:"cropLeft" yaml:"crop_left"`
	DPI        int  `json:"dpi" yaml:"dpi"` // 0 disables DPI handling
}

// ProcessResult is what the processing engine returns
type ProcessResult struct {
	Success bool   `json:"success"`
	Data    []byte `json:"-"`
	Format  string `json:"format,omitempty"`
	Error   string `json:"error,omitempty"`
	DPI     int    `json:"dpi,omitempty"`
}

// Delivery is a finished image handed to a save/export collaborator
type Delivery struct {
	Name string
	Data []byte
}
