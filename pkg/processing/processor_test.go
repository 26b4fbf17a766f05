package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// createTestImage creates a solid test image
func createTestImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	p := NewProcessor()
	data := encodePNG(t, createTestImage(10, 8, color.NRGBA{255, 0, 0, 255}))

	img, err := p.DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 8 {
		t.Errorf("Expected 10x8, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	if _, err := p.DecodeImage([]byte("not an image")); err == nil {
		t.Error("Expected error for garbage data")
	}
}

func TestCompositeDrawsOverlay(t *testing.T) {
	p := NewProcessor()
	bg := createTestImage(100, 100, color.NRGBA{0, 0, 255, 255})
	ov := createTestImage(10, 10, color.NRGBA{255, 0, 0, 255})

	out := p.Composite(bg, ov, placement.Placement{X: 20, Y: 30, Width: 40, Height: 20})

	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Fatalf("Expected canvas 100x100, got %v", out.Bounds())
	}

	inside := out.NRGBAAt(40, 40)
	if inside.R != 255 || inside.B != 0 {
		t.Errorf("Expected overlay color inside placement, got %v", inside)
	}

	outside := out.NRGBAAt(5, 5)
	if outside.B != 255 || outside.R != 0 {
		t.Errorf("Expected background color outside placement, got %v", outside)
	}

	// Background must not be modified
	if bg.NRGBAAt(40, 40).B != 255 {
		t.Error("Composite modified the background image")
	}
}

func TestCompositeClipsOffCanvas(t *testing.T) {
	p := NewProcessor()
	bg := createTestImage(50, 50, color.NRGBA{0, 0, 0, 255})
	ov := createTestImage(10, 10, color.NRGBA{0, 255, 0, 255})

	out := p.Composite(bg, ov, placement.Placement{X: -30, Y: -30, Width: 40, Height: 40})
	if out.NRGBAAt(0, 0).G != 255 {
		t.Error("Expected partially visible overlay at the canvas origin")
	}
	if out.NRGBAAt(20, 20).G != 0 {
		t.Error("Expected background beyond the overlay edge")
	}
}

func TestCompositeSkipsEmptyPlacement(t *testing.T) {
	p := NewProcessor()
	bg := createTestImage(20, 20, color.NRGBA{1, 2, 3, 255})
	ov := createTestImage(5, 5, color.NRGBA{255, 255, 255, 255})

	out := p.Composite(bg, ov, placement.Placement{})
	if out.NRGBAAt(0, 0) != (color.NRGBA{1, 2, 3, 255}) {
		t.Error("Empty placement should leave the background untouched")
	}
}

func TestOverlayCacheReuse(t *testing.T) {
	cache := NewOverlayCache(createTestImage(10, 10, color.NRGBA{255, 255, 255, 255}))

	a := cache.Scaled(20, 20)
	b := cache.Scaled(20, 20)
	if a != b {
		t.Error("Expected cached overlay to be reused for the same size")
	}

	c := cache.Scaled(30, 30)
	if c.Bounds().Dx() != 30 {
		t.Errorf("Expected width 30, got %d", c.Bounds().Dx())
	}
}

func TestEncodePNG(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	if err := p.EncodePNG(&buf, createTestImage(4, 4, color.NRGBA{9, 9, 9, 255})); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(400, 200, color.NRGBA{10, 20, 30, 255})

	b64, err := p.PrepareImageForModel(img, "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 50 {
		t.Errorf("Expected 100x50, got %v", decoded.Bounds())
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 200, color.NRGBA{0, 0, 0, 255})

	out := p.CreateDebugOverlay(img, []types.Box{{X: 10, Y: 10, W: 50, H: 50}}, placement.Placement{X: 100, Y: 100, Width: 60, Height: 60})
	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("Expected *image.NRGBA, got %T", out)
	}
	if nrgba.NRGBAAt(10, 30).G != 255 {
		t.Error("Expected green detection edge")
	}
	if c := nrgba.NRGBAAt(100, 120); c.R != 255 || c.G != 204 {
		t.Errorf("Expected gold placement edge, got %v", c)
	}
}

func TestCreateDebugOverlayEdgeBox(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 200, color.NRGBA{0, 0, 0, 255})

	// Face box hanging off the left edge
	out := p.CreateDebugOverlay(img, []types.Box{{X: -20, Y: 20, W: 60, H: 60}}, placement.Placement{})
	nrgba := out.(*image.NRGBA)

	if nrgba.NRGBAAt(39, 50).G != 255 {
		t.Error("Expected green right edge inside the canvas")
	}
	if nrgba.NRGBAAt(0, 20).G != 255 {
		t.Error("Expected top edge clipped at the canvas border")
	}
	if nrgba.NRGBAAt(0, 50).G != 0 {
		t.Error("Expected no left edge drawn for an off-canvas side")
	}
}

func TestLoadImageFromURL(t *testing.T) {
	data := encodePNG(t, createTestImage(12, 6, color.NRGBA{1, 1, 1, 255}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("LoadImageSmart failed: %v", err)
	}
	if img.Bounds().Dx() != 12 {
		t.Errorf("Expected width 12, got %d", img.Bounds().Dx())
	}

	if _, err := p.LoadImageFromURL(context.Background(), srv.URL+"/text"); err == nil {
		t.Error("Expected error for non-image content type")
	}

	if _, _, err := p.Fetch(context.Background(), "ftp://example.com/x"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func BenchmarkComposite(b *testing.B) {
	p := NewProcessor()
	bg := createTestImage(800, 600, color.NRGBA{0, 0, 255, 255})
	cache := NewOverlayCache(createTestImage(200, 300, color.NRGBA{255, 0, 0, 255}))
	pl := placement.Placement{X: 100, Y: 100, Width: 300, Height: 450}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.CompositeCached(bg, cache, pl)
	}
}
