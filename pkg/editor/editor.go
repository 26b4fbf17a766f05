// Package editor implements a single overlay editing session: the uploaded photo as a
// canvas, the overlay placement, pointer and wheel interaction, and PNG export.
//
// An Editor is safe for concurrent use. Every mutation redraws the frame, and export
// always encodes the most recently drawn frame.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/processing"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// ExportFilename is the name given to downloaded exports
const ExportFilename = "67ified.png"

// ErrNoBackground is returned by operations that need a loaded photo
var ErrNoBackground = errors.New("no background image loaded")

// StatusKind classifies the editor status
type StatusKind string

const (
	StatusEmpty       StatusKind = "empty"
	StatusReady       StatusKind = "ready"
	StatusPlaced      StatusKind = "placed"
	StatusNoFace      StatusKind = "no_face"
	StatusUnavailable StatusKind = "detector_unavailable"
)

// Status is the user-visible state line
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

var (
	statusEmpty       = Status{StatusEmpty, "Upload a photo to start"}
	statusReady       = Status{StatusReady, "Image loaded"}
	statusPlaced      = Status{StatusPlaced, "Face detected"}
	statusNoFace      = Status{StatusNoFace, "No face detected, drag the overlay into place"}
	statusUnavailable = Status{StatusUnavailable, "face detector unavailable"}
)

// Snapshot is a consistent view of the editor state
type Snapshot struct {
	Canvas     types.CanvasSize    `json:"canvas"`
	Placement  placement.Placement `json:"placement"`
	Status     Status              `json:"status"`
	Dragging   bool                `json:"dragging"`
	Detections []types.Detection   `json:"detections"`
	Frame      uint64              `json:"frame"`
}

// Editor is one editing session
type Editor struct {
	mu sync.Mutex

	processor   *processing.Processor
	overlay     *processing.OverlayCache
	overlaySize placement.Overlay
	opts        placement.Options

	background image.Image
	canvas     types.CanvasSize
	generation uint64

	placement  placement.Placement
	stamps     []placement.Placement
	drag       placement.Drag
	detections []types.Detection
	status     Status

	frame        *image.NRGBA
	frameVersion uint64
}

// New creates an editor for the given overlay image
func New(processor *processing.Processor, overlay image.Image, opts placement.Options) *Editor {
	b := overlay.Bounds()
	return &Editor{
		processor:   processor,
		overlay:     processing.NewOverlayCache(overlay),
		overlaySize: placement.Overlay{Width: b.Dx(), Height: b.Dy()},
		opts:        opts,
		status:      statusEmpty,
	}
}

// Load makes img the canvas. The canvas takes the photo's pixel size 1:1 and any
// previous placement is discarded.
func (e *Editor) Load(img image.Image) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.background = imaging.Clone(img)
	b := e.background.Bounds()
	e.canvas = types.CanvasSize{Width: b.Dx(), Height: b.Dy()}
	e.generation++
	e.placement = placement.Placement{}
	e.stamps = nil
	e.drag.End()
	e.detections = nil
	e.status = statusReady
	e.redraw()
}

// AutoPlace runs face detection and seeds the placement from the primary face.
// Detection problems never fail the session: without a face the overlay is
// centered for manual placement and the status says why.
func (e *Editor) AutoPlace(ctx context.Context, detector detection.FaceDetector) (Status, error) {
	e.mu.Lock()
	bg := e.background
	gen := e.generation
	e.mu.Unlock()

	if bg == nil {
		return statusEmpty, ErrNoBackground
	}

	var (
		dets []types.Detection
		err  error
	)
	if detector == nil {
		err = errors.New("detector not loaded")
	} else {
		dets, err = detector.DetectFaces(ctx, bg)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A newer photo was loaded while detection ran
	if gen != e.generation {
		return e.status, fmt.Errorf("background replaced during detection")
	}

	e.drag.End()
	e.stamps = nil
	e.detections = dets

	primary, perr := detection.Primary(dets)
	switch {
	case err != nil:
		e.placement = placement.Default(e.canvas.Width, e.canvas.Height, e.overlaySize, e.opts)
		e.status = statusUnavailable
	case perr != nil:
		e.placement = placement.Default(e.canvas.Width, e.canvas.Height, e.overlaySize, e.opts)
		e.status = statusNoFace
	default:
		e.placement = placement.AutoPlace(primary.Box, e.overlaySize, e.opts)
		e.status = statusPlaced
	}
	e.redraw()

	// The detector error is reported for logging; the session itself is usable
	return e.status, err
}

// RenderAll stamps the overlay on every detected face at once. The result has no
// interactive placement; drag and wheel have no effect until the next AutoPlace.
func (e *Editor) RenderAll(dets []types.Detection) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.background == nil {
		return statusEmpty, ErrNoBackground
	}

	e.drag.End()
	e.detections = dets
	e.placement = placement.Placement{}
	e.stamps = placement.AutoPlaceAll(detection.Boxes(dets), e.overlaySize, e.opts, placement.AllFacesForeheadShift)
	if len(e.stamps) == 0 {
		e.status = statusNoFace
	} else {
		e.status = Status{StatusPlaced, fmt.Sprintf("%d face(s) covered", len(e.stamps))}
	}
	e.redraw()
	return e.status, nil
}

// SetPlacement replaces the placement directly. Placements outside the zoom
// range are rejected with an error wrapping placement.ErrOutOfBounds.
func (e *Editor) SetPlacement(p placement.Placement) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.background == nil {
		return ErrNoBackground
	}
	if err := p.CheckBounds(e.canvas.Width, e.overlaySize, e.opts); err != nil {
		return err
	}
	e.drag.End()
	e.stamps = nil
	e.placement = p
	e.redraw()
	return nil
}

// PointerDown starts a drag when the pointer is inside the overlay
func (e *Editor) PointerDown(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.background == nil {
		return false
	}
	return e.drag.Begin(e.placement, x, y)
}

// PointerMove moves the overlay with the pointer during a drag
func (e *Editor) PointerMove(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.drag.Move(&e.placement, x, y) {
		return false
	}
	e.redraw()
	return true
}

// PointerUp ends a drag
func (e *Editor) PointerUp(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag.End()
}

// PointerCancel ends a drag the same way as PointerUp
func (e *Editor) PointerCancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag.End()
}

// Wheel zooms the overlay one step around the cursor
func (e *Editor) Wheel(deltaY, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.background == nil {
		return false
	}
	if !e.placement.Zoom(x, y, deltaY, e.canvas.Width, e.opts) {
		return false
	}
	e.drag.Rebase(e.placement)
	e.redraw()
	return true
}

// SetAngle rotates the overlay around its center, in degrees counter-clockwise
func (e *Editor) SetAngle(deg float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.background == nil || e.placement.IsZero() {
		return false
	}
	e.placement.Angle = deg
	e.redraw()
	return true
}

// Snapshot returns the current state
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	dets := make([]types.Detection, len(e.detections))
	copy(dets, e.detections)

	return Snapshot{
		Canvas:     e.canvas,
		Placement:  e.placement,
		Status:     e.status,
		Dragging:   e.drag.Active(),
		Detections: dets,
		Frame:      e.frameVersion,
	}
}

// Frame returns the last drawn frame, or nil before a photo is loaded.
// Frames are never modified after they are drawn.
func (e *Editor) Frame() *image.NRGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// ExportPNG writes the last drawn frame as PNG
func (e *Editor) ExportPNG(w io.Writer) error {
	frame := e.Frame()
	if frame == nil {
		return ErrNoBackground
	}
	return e.processor.EncodePNG(w, frame)
}

// DebugFrame draws detection boxes and the placement over the photo
func (e *Editor) DebugFrame() (image.Image, error) {
	e.mu.Lock()
	frame := e.frame
	dets := make([]types.Box, 0, len(e.detections))
	for _, d := range e.detections {
		dets = append(dets, d.Box)
	}
	pl := e.placement
	e.mu.Unlock()

	if frame == nil {
		return nil, ErrNoBackground
	}
	return e.processor.CreateDebugOverlay(frame, dets, pl), nil
}

// redraw composes a fresh frame; callers hold e.mu
func (e *Editor) redraw() {
	if e.background == nil {
		e.frame = nil
		return
	}

	layers := e.stamps
	if !e.placement.IsZero() {
		layers = append([]placement.Placement{e.placement}, e.stamps...)
	}
	e.frame = e.processor.CompositeCached(e.background, e.overlay, layers...)
	e.frameVersion++
}
