// Package placement holds the geometry that positions the overlay image on the canvas:
// auto-placement over a detected face, dragging, and focal-point-preserving zoom.
package placement

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/overlay-editor/pkg/types"
)

// Options tunes the placement geometry
type Options struct {
	// WidthFactor scales the face box width to the overlay width
	WidthFactor float64 `json:"width_factor" yaml:"width_factor"`
	// ForeheadShift moves the overlay up by this fraction of its height
	ForeheadShift float64 `json:"forehead_shift" yaml:"forehead_shift"`
	// ZoomStep is the relative size change per wheel event
	ZoomStep float64 `json:"zoom_step" yaml:"zoom_step"`
	// MinWidth is the smallest overlay width in pixels
	MinWidth float64 `json:"min_width" yaml:"min_width"`
	// MaxWidthFactor caps the overlay width at this multiple of the canvas width
	MaxWidthFactor float64 `json:"max_width_factor" yaml:"max_width_factor"`
}

// DefaultOptions returns the stock placement tuning
func DefaultOptions() Options {
	return Options{
		WidthFactor:    1.5,
		ForeheadShift:  0.35,
		ZoomStep:       0.05,
		MinWidth:       20,
		MaxWidthFactor: 2,
	}
}

// AllFacesForeheadShift is the upward shift used when stamping every face at once
const AllFacesForeheadShift = 0.40

// MaxAspectSkew limits how far a placement may stretch the overlay vertically
// relative to its natural aspect
const MaxAspectSkew = 2

// ErrOutOfBounds is returned for placements outside the zoom range
var ErrOutOfBounds = errors.New("placement out of bounds")

// Validate checks the options for values the geometry cannot work with
func (o Options) Validate() error {
	if o.WidthFactor <= 0 {
		return fmt.Errorf("width_factor must be positive")
	}
	if o.ForeheadShift < 0.35 || o.ForeheadShift > 0.40 {
		return fmt.Errorf("forehead_shift must be between 0.35 and 0.40")
	}
	if o.ZoomStep <= 0 || o.ZoomStep >= 1 {
		return fmt.Errorf("zoom_step must be between 0 and 1 (exclusive)")
	}
	if o.MinWidth < 1 {
		return fmt.Errorf("min_width must be at least 1")
	}
	if o.MaxWidthFactor <= 0 {
		return fmt.Errorf("max_width_factor must be positive")
	}
	return nil
}

// Overlay describes the natural pixel size of the overlay image
type Overlay struct {
	Width  int
	Height int
}

// Aspect returns height divided by width
func (o Overlay) Aspect() float64 {
	if o.Width <= 0 {
		return 1
	}
	return float64(o.Height) / float64(o.Width)
}

// Placement is the on-canvas rectangle at which the overlay is drawn
type Placement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
	Angle  float64 `json:"angle"`
}

// AutoPlace sizes the overlay from a face box: 1.5x wider than the face by default,
// horizontally centered on it and lifted so that it covers the forehead.
func AutoPlace(box types.Box, ov Overlay, opts Options) Placement {
	return autoPlace(box, ov, opts.WidthFactor, opts.ForeheadShift)
}

// AutoPlaceAll places one overlay per face with the given upward shift
func AutoPlaceAll(boxes []types.Box, ov Overlay, opts Options, shift float64) []Placement {
	out := make([]Placement, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, autoPlace(b, ov, opts.WidthFactor, shift))
	}
	return out
}

func autoPlace(box types.Box, ov Overlay, widthFactor, shift float64) Placement {
	w := box.W * widthFactor
	h := w * ov.Aspect()
	return Placement{
		X:      box.X - (w-box.W)/2,
		Y:      box.Y - h*shift,
		Width:  w,
		Height: h,
		Scale:  scaleFor(w, ov),
	}
}

// Default returns the manual-placement seed: a third of the canvas width, centered
func Default(canvasW, canvasH int, ov Overlay, opts Options) Placement {
	w := clamp(float64(canvasW)/3, opts.MinWidth, maxWidth(canvasW, opts))
	h := w * ov.Aspect()
	return Placement{
		X:      (float64(canvasW) - w) / 2,
		Y:      (float64(canvasH) - h) / 2,
		Width:  w,
		Height: h,
		Scale:  scaleFor(w, ov),
	}
}

// IsZero reports whether the placement has never been set
func (p Placement) IsZero() bool {
	return p.Width == 0 && p.Height == 0
}

// Contains reports whether a canvas point lies inside the placement bounds (edges included)
func (p Placement) Contains(px, py float64) bool {
	return px >= p.X && px <= p.X+p.Width && py >= p.Y && py <= p.Y+p.Height
}

// Center returns the center of the placement
func (p Placement) Center() (float64, float64) {
	return p.X + p.Width/2, p.Y + p.Height/2
}

// Bounds returns the placement as a pixel box
func (p Placement) Bounds() types.Box {
	return types.Box{X: p.X, Y: p.Y, W: p.Width, H: p.Height}
}

// Translate moves the placement by the given delta
func (p *Placement) Translate(dx, dy float64) {
	p.X += dx
	p.Y += dy
}

// CheckBounds verifies that p fits the range the zoom can reach on a canvas
// canvasW pixels wide: width in [MinWidth, MaxWidthFactor*canvasW] and height
// at most MaxAspectSkew times the overlay's natural height for that width.
func (p Placement) CheckBounds(canvasW int, ov Overlay, opts Options) error {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height, p.Scale, p.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrOutOfBounds)
		}
	}

	hi := maxWidth(canvasW, opts)
	if p.Width < opts.MinWidth || p.Width > hi {
		return fmt.Errorf("%w: width %.1f outside [%.0f, %.0f]", ErrOutOfBounds, p.Width, opts.MinWidth, hi)
	}
	maxH := p.Width * ov.Aspect() * MaxAspectSkew
	if p.Height <= 0 || p.Height > maxH {
		return fmt.Errorf("%w: height %.1f outside (0, %.0f]", ErrOutOfBounds, p.Height, maxH)
	}
	return nil
}

// Zoom grows (deltaY < 0) or shrinks (deltaY > 0) the placement by one zoom step,
// keeping the canvas point (cx, cy) at the same fractional offset inside the overlay.
// It returns false when nothing changed, including when the clamp would move
// the width against the requested direction.
func (p *Placement) Zoom(cx, cy, deltaY float64, canvasW int, opts Options) bool {
	if deltaY == 0 || p.Width <= 0 || p.Height <= 0 {
		return false
	}

	factor := 1 + opts.ZoomStep
	if deltaY > 0 {
		factor = 1 - opts.ZoomStep
	}

	newW := clamp(p.Width*factor, opts.MinWidth, maxWidth(canvasW, opts))
	if newW == p.Width || (factor > 1) != (newW > p.Width) {
		return false
	}
	newH := newW * (p.Height / p.Width)

	// Fraction of the overlay that sits left of / above the cursor
	fx := (cx - p.X) / p.Width
	fy := (cy - p.Y) / p.Height

	p.X = cx - fx*newW
	p.Y = cy - fy*newH
	p.Scale *= newW / p.Width
	p.Width = newW
	p.Height = newH
	return true
}

// Drag tracks a pointer drag of the placement.
// Positions are computed from the drag origin, so repeated moves never accumulate error.
type Drag struct {
	active  bool
	startX  float64
	startY  float64
	originX float64
	originY float64
	lastX   float64
	lastY   float64
}

// Begin starts a drag if the pointer is inside the placement
func (d *Drag) Begin(p Placement, px, py float64) bool {
	if p.IsZero() || !p.Contains(px, py) {
		d.active = false
		return false
	}
	d.active = true
	d.startX, d.startY = px, py
	d.originX, d.originY = p.X, p.Y
	d.lastX, d.lastY = px, py
	return true
}

// Rebase restarts the drag origin at p and the last pointer position.
// Call it after the placement changed mid-drag, e.g. by a zoom.
func (d *Drag) Rebase(p Placement) {
	if !d.active {
		return
	}
	d.startX, d.startY = d.lastX, d.lastY
	d.originX, d.originY = p.X, p.Y
}

// Move repositions the placement by the pointer delta since Begin
func (d *Drag) Move(p *Placement, px, py float64) bool {
	if !d.active {
		return false
	}
	p.X = d.originX + (px - d.startX)
	p.Y = d.originY + (py - d.startY)
	d.lastX, d.lastY = px, py
	return true
}

// End finishes the drag; used for both pointer-up and pointer-cancel
func (d *Drag) End() {
	d.active = false
}

// Active reports whether a drag is in progress
func (d *Drag) Active() bool {
	return d.active
}

func scaleFor(w float64, ov Overlay) float64 {
	if ov.Width <= 0 {
		return 1
	}
	return w / float64(ov.Width)
}

func maxWidth(canvasW int, opts Options) float64 {
	m := opts.MaxWidthFactor * float64(canvasW)
	if m < opts.MinWidth {
		return opts.MinWidth
	}
	return m
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
