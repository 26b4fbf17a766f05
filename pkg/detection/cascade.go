package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/overlay-editor/pkg/types"
)

// DefaultCascadeURL is where the pretrained face finder cascade is published
const DefaultCascadeURL = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// SourceCascade labels detections made by the cascade detector
const SourceCascade = "cascade"

// CascadeConfig tunes the pixel-intensity-comparison face detector
type CascadeConfig struct {
	MinSize      int
	MaxSize      int // 0 means the short side of the image
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float64
	Angle        float64 // 0.0 .. 1.0, fraction of a full turn
}

// DefaultCascadeConfig returns tuning that works for ordinary portraits
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		MinSize:      20,
		MaxSize:      0,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// Fetcher downloads remote resources
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// LoadCascade returns the cascade weights, reading cachePath when present and
// downloading from url otherwise. A successful download is written to cachePath.
func LoadCascade(ctx context.Context, f Fetcher, url, cachePath string) ([]byte, error) {
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	data, _, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch face cascade: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to fetch face cascade: empty body from %s", url)
	}

	if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
			// Cache write failures are ignored
			_ = os.WriteFile(cachePath, data, 0o644)
		}
	}
	return data, nil
}

// CascadeDetector finds faces with a pigo cascade
type CascadeDetector struct {
	classifier *pigo.Pigo
	config     CascadeConfig
}

// NewCascadeDetector unpacks cascade weights into a detector
func NewCascadeDetector(cascade []byte, config CascadeConfig) (det *CascadeDetector, err error) {
	// Unpack indexes into the packet without bounds checks
	defer func() {
		if r := recover(); r != nil {
			det, err = nil, fmt.Errorf("failed to unpack face cascade: corrupt weights (%v)", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}
	return &CascadeDetector{classifier: classifier, config: config}, nil
}

// DetectFaces runs the cascade over a grayscale copy of the image
func (d *CascadeDetector) DetectFaces(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	pixels := pigo.RgbToGrayscale(src)

	maxSize := d.config.MaxSize
	if maxSize <= 0 {
		maxSize = cols
		if rows < maxSize {
			maxSize = rows
		}
	}

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, d.config.Angle)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	out := make([]types.Detection, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < d.config.MinQuality {
			continue
		}
		out = append(out, types.Detection{
			Box:        windowBox(det.Row, det.Col, det.Scale),
			Confidence: float64(det.Q),
			Source:     SourceCascade,
		})
	}
	return out, nil
}

// windowBox converts a cascade hit to a pixel box. Row/Col is the center of a
// square window of side scale. The box is not clipped to the image, so faces
// cut by the edge keep their full size.
func windowBox(row, col, scale int) types.Box {
	half := float64(scale) / 2
	return types.Box{
		X: float64(col) - half,
		Y: float64(row) - half,
		W: float64(scale),
		H: float64(scale),
	}
}
