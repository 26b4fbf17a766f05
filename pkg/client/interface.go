package client

import (
	"context"

	"github.com/menta2k/overlay-editor/pkg/types"
)

// VisionClient is a vision-capable model backend that can locate faces in an image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
