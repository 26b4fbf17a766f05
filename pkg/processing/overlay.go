package processing

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultOverlayText is drawn by DefaultOverlay
const DefaultOverlayText = "67"

// defaultOverlayScale is the nearest-neighbor upscale applied to the bitmap glyphs
const defaultOverlayScale = 16

var (
	overlayInk    = color.NRGBA{255, 200, 40, 255}
	overlayShadow = color.NRGBA{20, 20, 20, 220}
)

// DefaultOverlay renders the built-in overlay: the text "67" in a bitmap face,
// with a drop shadow, on a transparent background.
func DefaultOverlay() *image.NRGBA {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	textW := d.MeasureString(DefaultOverlayText).Ceil()
	textH := face.Metrics().Height.Ceil()

	// One pixel of padding on every side plus room for the shadow
	small := image.NewNRGBA(image.Rect(0, 0, textW+3, textH+3))
	ascent := face.Metrics().Ascent.Ceil()

	d.Dst = small
	d.Src = image.NewUniform(overlayShadow)
	d.Dot = fixed.P(2, ascent+2)
	d.DrawString(DefaultOverlayText)

	d.Src = image.NewUniform(overlayInk)
	d.Dot = fixed.P(1, ascent+1)
	d.DrawString(DefaultOverlayText)

	b := small.Bounds()
	return imaging.Resize(small, b.Dx()*defaultOverlayScale, b.Dy()*defaultOverlayScale, imaging.NearestNeighbor)
}

// LoadOverlay loads the overlay image from path, or returns DefaultOverlay when path is empty
func (p *Processor) LoadOverlay(path string) (image.Image, error) {
	if path == "" {
		return DefaultOverlay(), nil
	}

	img, err := p.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlay: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("failed to load overlay: %s is empty", path)
	}
	return img, nil
}
