package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when uploaded bytes are not a decodable image
var ErrDecode = errors.New("could not decode image")

// ImageAnalyzer validates uploaded photos before they become a canvas
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	MaxImageSize     int
}

// DefaultConfig returns the stock analyzer configuration
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
		MinImageSize:     16,
		MaxImageSize:     8192,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// LoadImageFromReader decodes an image from a reader and checks its format
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return a.LoadImageFromBytes(data)
}

// LoadImageFromBytes decodes an image from memory and checks its format
func (a *ImageAnalyzer) LoadImageFromBytes(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// x/image/webp rejects some extended files that chai2010/webp decodes
		wimg, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		img, format = wimg, "webp"
	}

	if !a.isFormatSupported(format) {
		return nil, format, fmt.Errorf("unsupported image format: %s", format)
	}

	return img, format, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
		// "jpg" in configs means the decoder's "jpeg"
		if strings.EqualFold(supported, "jpg") && strings.EqualFold(format, "jpeg") {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets the size requirements for a canvas
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	if a.config.MaxImageSize > 0 && (bounds.Dx() > a.config.MaxImageSize || bounds.Dy() > a.config.MaxImageSize) {
		return fmt.Errorf("image too large: %dx%d (maximum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MaxImageSize)
	}
	return nil
}
