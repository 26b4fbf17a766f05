package overlayeditor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/overlay-editor/pkg/editor"
	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{64, 64, 64, 255})
		}
	}
	return img
}

type stubDetector struct {
	dets []types.Detection
	err  error
}

func (s *stubDetector) DetectFaces(ctx context.Context, img image.Image) ([]types.Detection, error) {
	return s.dets, s.err
}

func face(x, y, w, h float64) types.Detection {
	return types.Detection{Box: types.Box{X: x, Y: y, W: w, H: h}, Confidence: 1, Source: "stub"}
}

func TestNew(t *testing.T) {
	oe := New(nil)
	if oe == nil {
		t.Fatal("New() returned nil")
	}
	if oe.processor == nil || oe.analyzer == nil {
		t.Error("components not initialized")
	}
	if oe.overlay == nil {
		t.Error("default overlay not set")
	}
}

func TestNewWithConfig(t *testing.T) {
	overlay := createTestImage(40, 20)
	opts := placement.DefaultOptions()
	opts.ForeheadShift = 0.5

	oe, err := NewWithConfig(nil, overlay, opts)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	if oe.overlay != overlay {
		t.Error("custom overlay not kept")
	}
	if oe.options.ForeheadShift != 0.5 {
		t.Errorf("Expected forehead shift 0.5, got %f", oe.options.ForeheadShift)
	}

	bad := placement.DefaultOptions()
	bad.WidthFactor = 0
	if _, err := NewWithConfig(nil, overlay, bad); err == nil {
		t.Error("Expected invalid options to be rejected")
	}
}

func TestNewSessionPlacesOnFace(t *testing.T) {
	overlay := createTestImage(40, 20)
	oe, err := NewWithConfig(&stubDetector{dets: []types.Detection{face(100, 80, 60, 60)}}, overlay, placement.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	ed, status, err := oe.NewSession(context.Background(), createTestImage(400, 300))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if status.Kind != editor.StatusPlaced {
		t.Errorf("Expected placed status, got %s", status.Kind)
	}

	pl := ed.Snapshot().Placement
	if pl.Width != 90 || pl.Height != 45 {
		t.Errorf("Expected 90x45 overlay, got %.1fx%.1f", pl.Width, pl.Height)
	}
	if pl.X != 85 {
		t.Errorf("Expected x 85, got %f", pl.X)
	}
}

func TestNewSessionWithoutDetector(t *testing.T) {
	oe := New(nil)

	ed, status, err := oe.NewSession(context.Background(), createTestImage(300, 300))
	if err == nil {
		t.Error("Expected detector error")
	}
	if status.Kind != editor.StatusUnavailable {
		t.Errorf("Expected unavailable status, got %s", status.Kind)
	}
	if ed.Frame() == nil {
		t.Error("Expected a drawn frame in manual mode")
	}
}

func TestRenderAllFaces(t *testing.T) {
	det := &stubDetector{dets: []types.Detection{face(20, 20, 40, 40), face(200, 100, 40, 40)}}
	oe, _ := NewWithConfig(det, createTestImage(40, 20), placement.DefaultOptions())

	_, status, err := oe.Render(context.Background(), createTestImage(400, 300), true)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if status.Kind != editor.StatusPlaced {
		t.Errorf("Expected placed status, got %s", status.Kind)
	}

	det.err = errors.New("boom")
	if _, _, err := oe.Render(context.Background(), createTestImage(400, 300), true); err == nil {
		t.Error("Expected detection error to surface")
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "photo.png")
	if err := imaging.Save(createTestImage(200, 150), input); err != nil {
		t.Fatal(err)
	}

	oe, _ := NewWithConfig(&stubDetector{dets: []types.Detection{face(50, 40, 40, 40)}}, createTestImage(40, 20), placement.DefaultOptions())
	output := filepath.Join(dir, editor.ExportFilename)

	status, err := oe.RenderFile(context.Background(), input, output, false)
	if err != nil {
		t.Fatalf("RenderFile failed: %v", err)
	}
	if status.Kind != editor.StatusPlaced {
		t.Errorf("Expected placed status, got %s", status.Kind)
	}

	got, err := imaging.Open(output)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	if got.Bounds().Dx() != 200 || got.Bounds().Dy() != 150 {
		t.Errorf("Expected 200x150 output, got %v", got.Bounds())
	}
}

func TestRenderFileMissingInput(t *testing.T) {
	oe := New(nil)
	out := filepath.Join(t.TempDir(), "out.png")
	if _, err := oe.RenderFile(context.Background(), "does-not-exist.png", out, false); err == nil {
		t.Error("Expected error for missing input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Expected no output file")
	}
}

func TestLoadImageTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.png")
	if err := imaging.Save(createTestImage(4, 4), path); err != nil {
		t.Fatal(err)
	}
	if _, err := New(nil).LoadImage(context.Background(), path); err == nil {
		t.Error("Expected validation error for tiny image")
	}
}

func TestSaveDebug(t *testing.T) {
	oe, _ := NewWithConfig(&stubDetector{dets: []types.Detection{face(50, 40, 40, 40)}}, createTestImage(40, 20), placement.DefaultOptions())
	ed, _, err := oe.NewSession(context.Background(), createTestImage(200, 150))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "debug.png")
	if err := oe.SaveDebug(ed, path); err != nil {
		t.Fatalf("SaveDebug failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("debug file not written: %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}

func TestLoadImageFromReader(t *testing.T) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, createTestImage(50, 40), imaging.PNG); err != nil {
		t.Fatal(err)
	}

	oe := New(nil)
	img, err := oe.LoadImageFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}

	info := oe.GetImageInfo(img)
	if info.Width != 50 || info.Height != 40 {
		t.Errorf("Expected 50x40, got %dx%d", info.Width, info.Height)
	}
	if _, err := oe.LoadImageFromReader(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("Expected decode error")
	}
}
