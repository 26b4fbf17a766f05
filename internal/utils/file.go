package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultExportName is used when a configured export name sanitizes to nothing
const DefaultExportName = "67ified.png"

// decodable lists the photo extensions the decoders handle
var decodable = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}

// EnsureDir creates dir and any missing parents
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Ext returns the lower-cased extension of name without the dot
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsImageFile reports whether name carries a photo extension we can decode
func IsImageFile(name string) bool {
	return decodable[Ext(name)]
}

// IsURL reports whether source is an http(s) URL rather than a path
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// FileExists reports whether path names a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SanitizeFilename maps path separators, reserved and control characters to '_'
// and trims surrounding spaces and dots, so the result is a single safe path
// element and can be quoted in a Content-Disposition header.
func SanitizeFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|;`, r):
			return '_'
		}
		return r
	}, name)
	return strings.Trim(clean, " .")
}

// ExportName turns a configured export filename into a safe PNG file name.
// Directories are dropped and any other extension is replaced with .png.
func ExportName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		return DefaultExportName
	}
	return stem + ".png"
}

// GenerateOutputFilename places name in outputDir, inserting suffix before the extension.
// An empty outputDir keeps name's own directory.
func GenerateOutputFilename(name, outputDir, suffix string) string {
	dir := filepath.Dir(name)
	if outputDir != "" {
		dir = outputDir
	}

	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".png"
	}
	stem := SanitizeFilename(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	return filepath.Join(dir, stem+suffix+ext)
}

// FormatFileSize renders a byte count with a binary unit, e.g. "1.5 KB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	unit := -1
	for value >= 1024 && unit < len("KMGTPE")-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %cB", value, "KMGTPE"[unit])
}
