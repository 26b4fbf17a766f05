package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// UserAgent is sent with every remote fetch
const UserAgent = "Overlay-Editor/1.0 (+https://github.com/menta2k/overlay-editor)"

// Processor handles image loading, compositing and encoding
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads a remote resource and returns its body and content type
func (p *Processor) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	// Validate URL
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download %s: HTTP %d %s", rawURL, resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %v", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// LoadImageFromURL downloads and decodes an image from a URL
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	data, contentType, err := p.Fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	// Check content type
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	return p.DecodeImage(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders, EXIF orientation applied)
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	// Try registered decoders first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// OverlayCache keeps the overlay resized for the most recent placement size,
// so that redraws during a drag do not resample the overlay again.
type OverlayCache struct {
	src    image.Image
	w, h   int
	scaled *image.NRGBA
}

// NewOverlayCache wraps an overlay image
func NewOverlayCache(src image.Image) *OverlayCache {
	return &OverlayCache{src: src}
}

// Source returns the unscaled overlay
func (c *OverlayCache) Source() image.Image {
	return c.src
}

// Scaled returns the overlay resized to w x h
func (c *OverlayCache) Scaled(w, h int) *image.NRGBA {
	if c.scaled != nil && c.w == w && c.h == h {
		return c.scaled
	}
	c.scaled = imaging.Resize(c.src, w, h, imaging.Lanczos)
	c.w, c.h = w, h
	return c.scaled
}

// Composite draws the overlay onto a copy of the background at every placement
func (p *Processor) Composite(bg, overlay image.Image, placements ...placement.Placement) *image.NRGBA {
	return p.CompositeCached(bg, NewOverlayCache(overlay), placements...)
}

// CompositeCached is Composite with a reusable overlay cache
func (p *Processor) CompositeCached(bg image.Image, cache *OverlayCache, placements ...placement.Placement) *image.NRGBA {
	canvas := imaging.Clone(bg)

	for _, pl := range placements {
		w := int(math.Round(pl.Width))
		h := int(math.Round(pl.Height))
		if w < 1 || h < 1 {
			continue
		}

		var layer image.Image = cache.Scaled(w, h)
		pos := image.Pt(int(math.Round(pl.X)), int(math.Round(pl.Y)))

		// Rotation keeps the placement center fixed
		if pl.Angle != 0 {
			rotated := imaging.Rotate(layer, pl.Angle, color.NRGBA{})
			cx, cy := pl.Center()
			pos = image.Pt(
				int(math.Round(cx-float64(rotated.Bounds().Dx())/2)),
				int(math.Round(cy-float64(rotated.Bounds().Dy())/2)),
			)
			layer = rotated
		}

		canvas = imaging.Overlay(canvas, layer, pos, 1.0)
	}

	return canvas
}

// EncodePNG writes an image as PNG
func (p *Processor) EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// CreateDebugOverlay draws detection boxes and the current placement over the image
func (p *Processor) CreateDebugOverlay(img image.Image, detections []types.Box, pl placement.Placement) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	// Colors
	green := color.NRGBA{0, 255, 0, 255}                   // detections
	gold := color.NRGBA{255, 204, 0, 255}                  // placement
	red := color.NRGBA{255, 0, 0, 255}                     // placement center
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(minInt(w, h))))   // ~1% of min side

	for _, box := range detections {
		drawBox(nrgba, box, green, stroke)
	}

	if !pl.IsZero() {
		drawBox(nrgba, pl.Bounds(), gold, stroke)

		cx, cy := pl.Center()
		px, py := int(cx+0.5), int(cy+0.5)
		drawHLine(nrgba, py, px-cross, px+cross, red)
		drawVLine(nrgba, px, py-cross, py+cross, red)
	}

	return nrgba
}

// Helper functions
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func boxToPixels(box types.Box) (int, int, int, int) {
	x0 := int(math.Round(box.X))
	y0 := int(math.Round(box.Y))
	x1 := int(math.Round(box.X + box.W))
	y1 := int(math.Round(box.Y + box.H))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, box types.Box, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
