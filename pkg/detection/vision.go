package detection

import (
	"context"
	"image"
	"strings"

	"github.com/menta2k/overlay-editor/pkg/client"
	"github.com/menta2k/overlay-editor/pkg/processing"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt is the default prompt for face localization
const FacePrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"label": "face", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- One entry per visible human face, tightly around the face from hairline to chin.
- Order faces by size, largest first.
- Do not guess real identities.
- If no face is visible, return {"faces": [], "description": "no face"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// SourceVision labels detections made by a vision model
const SourceVision = "vision"

// VisionOptions controls how images are sent to the model
type VisionOptions struct {
	Model         string
	Prompt        string
	SendFormat    string
	SendSize      int
	SendQuality   int
	MinConfidence float64
}

// DefaultVisionOptions returns the stock options for a model
func DefaultVisionOptions(model string) VisionOptions {
	return VisionOptions{
		Model:         model,
		Prompt:        FacePrompt,
		SendFormat:    "jpg",
		SendSize:      1536,
		SendQuality:   85,
		MinConfidence: 0.1,
	}
}

// VisionDetector locates faces by prompting a vision model
type VisionDetector struct {
	client    client.VisionClient
	processor *processing.Processor
	options   VisionOptions
}

// NewVisionDetector creates a detector backed by a vision client
func NewVisionDetector(c client.VisionClient, processor *processing.Processor, options VisionOptions) *VisionDetector {
	if options.Prompt == "" {
		options.Prompt = FacePrompt
	}
	return &VisionDetector{client: c, processor: processor, options: options}
}

// DetectFaces sends the image to the model and converts its normalized boxes to pixels
func (d *VisionDetector) DetectFaces(ctx context.Context, img image.Image) ([]types.Detection, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.options.SendFormat, d.options.SendSize, d.options.SendQuality)
	if err != nil {
		return nil, err
	}

	result, err := d.client.AnalyzeImage(ctx, d.options.Model, d.options.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return d.toDetections(result, b.Dx(), b.Dy()), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *VisionDetector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.options.SendFormat, d.options.SendSize, d.options.SendQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.options.Model, SimpleTestPrompt, imgB64)
}

func (d *VisionDetector) toDetections(result *types.AnalysisResult, imgW, imgH int) []types.Detection {
	out := make([]types.Detection, 0, len(result.Faces))
	for _, f := range result.Faces {
		if f.Label != "" && !strings.EqualFold(f.Label, "face") {
			continue
		}
		if f.Confidence < d.options.MinConfidence {
			continue
		}

		// Already normalized but ensure bounds
		n := types.NormalizedBox{
			X: clamp(f.Box.X, 0, 1),
			Y: clamp(f.Box.Y, 0, 1),
			W: clamp(f.Box.W, 0, 1),
			H: clamp(f.Box.H, 0, 1),
		}
		box := clampBox(n.ToPixels(imgW, imgH), imgW, imgH)
		if box.Empty() {
			continue
		}

		out = append(out, types.Detection{
			Box:        box,
			Confidence: f.Confidence,
			Source:     SourceVision,
		})
	}
	return out
}
