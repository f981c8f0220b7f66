// Package detection locates the dominant subject of an image with a vision
// model so a crop selection can be suggested around it.
package detection

import (
	"context"
	"strings"

	"github.com/menta2k/cropkit/pkg/client"
	"github.com/menta2k/cropkit/pkg/types"
)

// NoSubject is the label of a result that names no usable subject
const NoSubject = "none"

// SimpleTestPrompt checks that the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the subject box in normalized coordinates
const DefaultPrompt = `You are an image subject locator for a photo cropping tool.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most salient object).
- cx,cy is the visual center of the subject, inside the box.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"centered generic scene",
    "tags":["generic","center","subject","photo","scene"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var fallbackIndicators = []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}

// Detector handles image subject detection using vision models
type Detector struct {
	client client.VisionClient
	prompt string
}

// NewDetector creates a detector using DefaultPrompt
func NewDetector(c client.VisionClient) *Detector {
	return &Detector{client: c, prompt: DefaultPrompt}
}

// WithPrompt returns a copy of d that sends prompt instead
func (d *Detector) WithPrompt(prompt string) *Detector {
	cp := *d
	if prompt != "" {
		cp.prompt = prompt
	}
	return &cp
}

// DetectSubject analyzes a base64 image and returns its primary subject.
// Replies carrying fallback markers come back labeled NoSubject.
func (d *Detector) DetectSubject(ctx context.Context, model, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, model, d.prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Primary.Cx = clamp(result.Primary.Cx, 0, 1)
	result.Primary.Cy = clamp(result.Primary.Cy, 0, 1)
	result.Tags = normalizeTags(result.Tags)

	return markFallback(result), nil
}

// TestVision asks a free-form question to check the model sees the image
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, imageB64)
}

// Found reports whether r names a usable subject
func Found(r *types.AnalysisResult) bool {
	return r != nil && !strings.EqualFold(r.Primary.Label, NoSubject) && r.Primary.Box.W > 0 && r.Primary.Box.H > 0
}

func markFallback(result *types.AnalysisResult) *types.AnalysisResult {
	if strings.EqualFold(result.Primary.Label, NoSubject) {
		return result
	}

	label := strings.ToLower(result.Primary.Label)
	desc := strings.ToLower(result.Description)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) || strings.Contains(desc, indicator) {
			result.Primary.Label = NoSubject
			result.Primary.Confidence = 0
			break
		}
	}
	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, dedupes and keeps at most 5 tags
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
