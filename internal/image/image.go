package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrImageTooLarge means no encoding path produced a payload within the
// byte budget.
var ErrImageTooLarge = errors.New("image too large to encode within budget")

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// Options bounds the JPEG payload produced by Compress. Quality values are
// on the 1-100 JPEG scale.
type Options struct {
	MaxBytes      int
	StartQuality  int
	QualityStep   int
	QualityFloor  int
	ResizeWidth   int
	ResizeHeight  int
	ResizeQuality int
}

// DefaultOptions matches the shipped upload budget: 1 MiB, quality walked
// down from 100 to 10 in steps of 10, then a 1024x1024 downscale at
// quality 80 as the last resort.
func DefaultOptions() Options {
	return Options{
		MaxBytes:      1 << 20,
		StartQuality:  100,
		QualityStep:   10,
		QualityFloor:  10,
		ResizeWidth:   1024,
		ResizeHeight:  1024,
		ResizeQuality: 80,
	}
}

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return img, nil
}

// Compress encodes img as JPEG within opts.MaxBytes. It lowers the encode
// quality step by step first; if the floor quality is still over budget it
// downscales to fit the resize box (aspect preserving, never upscaling)
// and re-encodes once at the moderate resize quality. Returns
// ErrImageTooLarge when even the downscaled encode exceeds the budget.
func Compress(img image.Image, opts Options) ([]byte, error) {
	for quality := opts.StartQuality; quality >= opts.QualityFloor; quality -= opts.QualityStep {
		data, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if len(data) <= opts.MaxBytes {
			return data, nil
		}
	}

	resized := imaging.Fit(img, opts.ResizeWidth, opts.ResizeHeight, imaging.Lanczos)
	data, err := encodeJPEG(resized, opts.ResizeQuality)
	if err != nil {
		return nil, err
	}
	if len(data) > opts.MaxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("jpeg encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}
