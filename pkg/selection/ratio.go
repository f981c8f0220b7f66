package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AspectRatio is a named width:height preset. A zero Width means free-form.
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Common aspect ratios
var (
	Free       = AspectRatio{0, 0, "free"}
	Square     = AspectRatio{1, 1, "square"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns the presets offered by the dialog, free-form first
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Free, Square, Landscape, Portrait, Widescreen, Story}
}

// Value returns the constraint value (width / height), 0 for free-form
func (a AspectRatio) Value() float64 {
	if a.Width <= 0 || a.Height <= 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// Label returns the preset as shown to users, e.g. "16:9"
func (a AspectRatio) Label() string {
	if a.Value() == 0 {
		return "Free"
	}
	return fmt.Sprintf("%d:%d", a.Width, a.Height)
}

// ParseRatio accepts a preset name, "W:H", or a plain decimal such as "1.5".
// "free", "" and "0" all mean no constraint.
func ParseRatio(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "free" || s == "0" {
		return 0, nil
	}

	for _, preset := range CommonAspectRatios() {
		if s == preset.Name {
			return preset.Value(), nil
		}
	}

	if w, h, ok := strings.Cut(s, ":"); ok {
		wv, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ratio width %q: %w", w, err)
		}
		hv, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ratio height %q: %w", h, err)
		}
		if wv <= 0 || hv <= 0 {
			return 0, fmt.Errorf("ratio terms must be positive: %s", s)
		}
		return wv / hv, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ratio %q: %w", s, err)
	}
	if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("ratio must be a finite non-negative number: %s", s)
	}
	return v, nil
}
