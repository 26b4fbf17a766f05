package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(128)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if analyzer.config.MinImageSize != 16 {
		t.Errorf("Expected min size 16, got %d", analyzer.config.MinImageSize)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := Config{
		SupportedFormats: []string{"png"},
		MinImageSize:     200,
	}

	analyzer := NewWithConfig(cfg)
	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}
}

func TestLoadImageFromBytes(t *testing.T) {
	analyzer := New()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(40, 30)); err != nil {
		t.Fatal(err)
	}

	img, format, err := analyzer.LoadImageFromBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadImageFromBytes failed: %v", err)
	}
	if format != "png" {
		t.Errorf("Expected format png, got %s", format)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("Expected width 40, got %d", img.Bounds().Dx())
	}
}

func TestLoadImageFromReaderJPEG(t *testing.T) {
	analyzer := New()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(32, 32), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}

	_, format, err := analyzer.LoadImageFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected format jpeg, got %s", format)
	}
}

func TestLoadImageDecodeError(t *testing.T) {
	analyzer := New()

	_, _, err := analyzer.LoadImageFromBytes([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestLoadImageUnsupportedFormat(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 1})

	var buf bytes.Buffer
	if err := gif.Encode(&buf, createTestImage(20, 20), nil); err != nil {
		t.Fatal(err)
	}

	if _, _, err := analyzer.LoadImageFromBytes(buf.Bytes()); err == nil {
		t.Error("GIF should be rejected when only png is allowed")
	}
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}

	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 100, MaxImageSize: 500})

	if err := analyzer.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	if err := analyzer.ValidateImage(createTestImage(50, 50)); err == nil {
		t.Error("Small image should fail validation")
	}

	if err := analyzer.ValidateImage(createTestImage(600, 200)); err == nil {
		t.Error("Large image should fail validation")
	}
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: []string{"jpg", "png"}})

	for _, format := range []string{"jpeg", "JPEG", "png", "PNG"} {
		if !analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	for _, format := range []string{"gif", "bmp", "webp"} {
		if analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkGetImageInfo(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.GetImageInfo(img)
	}
}
