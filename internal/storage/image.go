package storage

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

// Photo normalisation limits.
const (
	MaxPhotoDimension = 1600
	PhotoJPEGQuality  = 85
	PhotoContentType  = "image/jpeg"

	// Decode limits. A small, highly compressed file can declare dimensions
	// that take gigabytes to decode, so the header is checked first.
	MaxSourceSide   = 12000
	MaxSourcePixels = 40_000_000
)

var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// SniffImage returns the detected content type of data, or
// ErrUnsupportedImage when it is not an accepted image format.
func SniffImage(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	if !acceptedImageTypes[ct] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
	}
	return ct, nil
}

// NormalizePhoto applies EXIF orientation, shrinks the image to fit within
// MaxPhotoDimension on both sides and re-encodes it as JPEG. Re-encoding also
// strips metadata such as GPS coordinates from phone photos.
func NormalizePhoto(data []byte) ([]byte, error) {
	if _, err := SniffImage(data); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > MaxSourceSide || cfg.Height > MaxSourceSide ||
		cfg.Width*cfg.Height > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnsupportedImage, err)
	}

	img = imaging.Fit(img, MaxPhotoDimension, MaxPhotoDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(PhotoJPEGQuality)); err != nil {
		return nil, fmt.Errorf("storage: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
