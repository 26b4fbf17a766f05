package detection

import (
	"context"
	"errors"
	"image"
	"sort"

	"github.com/menta2k/overlay-editor/pkg/types"
)

// ErrNoFace is returned when a detector ran successfully but found nothing
var ErrNoFace = errors.New("no face detected")

// FaceDetector locates faces in an image; boxes are in source-image pixels
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.Detection, error)
}

// Primary picks the detection used for auto-placement:
// highest confidence first, larger box on ties.
func Primary(dets []types.Detection) (types.Detection, error) {
	if len(dets) == 0 {
		return types.Detection{}, ErrNoFace
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence ||
			(d.Confidence == best.Confidence && d.Box.Area() > best.Box.Area()) {
			best = d
		}
	}
	return best, nil
}

// Boxes extracts the boxes of the detections in reading order (top-to-bottom, left-to-right)
func Boxes(dets []types.Detection) []types.Box {
	out := make([]types.Box, 0, len(dets))
	for _, d := range dets {
		out = append(out, d.Box)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// clampBox keeps a box inside an image of the given size
func clampBox(b types.Box, imgW, imgH int) types.Box {
	x0 := clamp(b.X, 0, float64(imgW))
	y0 := clamp(b.Y, 0, float64(imgH))
	x1 := clamp(b.X+b.W, 0, float64(imgW))
	y1 := clamp(b.Y+b.H, 0, float64(imgH))
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
