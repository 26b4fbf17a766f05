// Package overlayeditor stamps a "67" overlay onto faces in photos.
//
// The package combines face detection with an interactive placement editor:
// a photo is loaded, the primary face is located, and the overlay is sized
// and positioned over it. The placement can then be dragged and zoomed
// before the composited frame is exported as PNG.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		overlayeditor "github.com/menta2k/overlay-editor"
//		"github.com/menta2k/overlay-editor/pkg/detection"
//		"github.com/menta2k/overlay-editor/pkg/processing"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		cfg := detection.Config{Backend: detection.BackendCascade, Cascade: detection.DefaultCascadeConfig()}
//		detector, err := detection.New(ctx, cfg, processing.NewProcessor())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		oe := overlayeditor.New(detector)
//		status, err := oe.RenderFile(ctx, "photo.jpg", "67ified.png", false)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(status.Message)
//	}
//
// The package consists of these main components:
//
// 1. Detection (pkg/detection): pigo cascade or vision model face finders
// 2. Placement (pkg/placement): overlay geometry, drag and zoom
// 3. Editor (pkg/editor): session state, redraw and export
// 4. Processing (pkg/processing): loading, compositing and encoding
//
// Without a detector every photo falls back to a centered placement that the
// user moves into position by hand.
package overlayeditor

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/menta2k/overlay-editor/pkg/analyzer"
	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/editor"
	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/processing"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// Version of the overlay editor library
const Version = "1.0.0"

// OverlayEditor provides a high-level interface over detection and the editor
type OverlayEditor struct {
	processor *processing.Processor
	analyzer  *analyzer.ImageAnalyzer
	detector  detection.FaceDetector
	overlay   image.Image
	options   placement.Options
}

// New creates an OverlayEditor with the built-in overlay and default placement.
// detector may be nil.
func New(detector detection.FaceDetector) *OverlayEditor {
	return &OverlayEditor{
		processor: processing.NewProcessor(),
		analyzer:  analyzer.New(),
		detector:  detector,
		overlay:   processing.DefaultOverlay(),
		options:   placement.DefaultOptions(),
	}
}

// NewWithConfig creates an OverlayEditor with a custom overlay and placement options
func NewWithConfig(detector detection.FaceDetector, overlay image.Image, options placement.Options) (*OverlayEditor, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid placement options: %w", err)
	}
	if overlay == nil || overlay.Bounds().Empty() {
		overlay = processing.DefaultOverlay()
	}

	oe := New(detector)
	oe.overlay = overlay
	oe.options = options
	return oe, nil
}

// LoadImage loads a photo from a file path or URL and checks its size
func (oe *OverlayEditor) LoadImage(ctx context.Context, source string) (image.Image, error) {
	img, err := oe.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := oe.analyzer.ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// LoadImageFromReader decodes a photo from a reader and checks its size
func (oe *OverlayEditor) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	img, _, err := oe.analyzer.LoadImageFromReader(reader)
	if err != nil {
		return nil, err
	}
	if err := oe.analyzer.ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// GetImageInfo returns basic information about an image
func (oe *OverlayEditor) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return oe.analyzer.GetImageInfo(img)
}

// DetectFaces runs the configured detector on an image
func (oe *OverlayEditor) DetectFaces(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if oe.detector == nil {
		return nil, fmt.Errorf("face detector unavailable")
	}
	return oe.detector.DetectFaces(ctx, img)
}

// NewSession loads img into a fresh editor and auto-places the overlay.
// A detector error is returned alongside a usable editor in manual mode.
func (oe *OverlayEditor) NewSession(ctx context.Context, img image.Image) (*editor.Editor, editor.Status, error) {
	ed := editor.New(oe.processor, oe.overlay, oe.options)
	ed.Load(img)
	status, err := ed.AutoPlace(ctx, oe.detector)
	return ed, status, err
}

// Render produces a finished editor for img. With allFaces every detected face
// gets an overlay, otherwise only the primary one.
func (oe *OverlayEditor) Render(ctx context.Context, img image.Image, allFaces bool) (*editor.Editor, editor.Status, error) {
	if !allFaces {
		return oe.NewSession(ctx, img)
	}

	dets, err := oe.DetectFaces(ctx, img)
	if err != nil {
		return nil, editor.Status{}, fmt.Errorf("face detection failed: %w", err)
	}

	ed := editor.New(oe.processor, oe.overlay, oe.options)
	ed.Load(img)
	status, err := ed.RenderAll(dets)
	return ed, status, err
}

// RenderFile is a convenience function that loads, places and exports a photo
func (oe *OverlayEditor) RenderFile(ctx context.Context, source, outputPath string, allFaces bool) (editor.Status, error) {
	img, err := oe.LoadImage(ctx, source)
	if err != nil {
		return editor.Status{}, fmt.Errorf("failed to load image: %w", err)
	}

	ed, status, err := oe.Render(ctx, img, allFaces)
	if ed == nil {
		return status, err
	}

	if err := oe.SaveFrame(ed, outputPath); err != nil {
		return status, err
	}
	return status, err
}

// SaveFrame writes the editor's current frame to path as PNG
func (oe *OverlayEditor) SaveFrame(ed *editor.Editor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := ed.ExportPNG(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export frame: %w", err)
	}
	return f.Close()
}

// SaveDebug writes the detection debug view of the editor to path
func (oe *OverlayEditor) SaveDebug(ed *editor.Editor, path string) error {
	img, err := ed.DebugFrame()
	if err != nil {
		return err
	}
	return oe.processor.SaveImage(img, path, "png", 100, false)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
