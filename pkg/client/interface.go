// Package client defines the vision model backend used for selection
// suggestions and the response parsing shared by every backend.
package client

import (
	"context"

	"github.com/menta2k/cropkit/pkg/types"
)

// VisionClient is a vision model backend. Images are base64 encoded.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
