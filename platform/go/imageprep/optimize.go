// Package imageprep prepares uploaded template backgrounds for storage.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultMaxDimension bounds the longest side of a stored template image.
const DefaultMaxDimension = 2048

// Result is the image to store.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
	Optimized   bool
}

// Optimize decodes data, shrinks it with Lanczos so the longest side is at
// most maxDim, and re-encodes it as PNG, which also drops EXIF and other
// metadata. When decoding or encoding fails the original bytes are returned
// unchanged with Optimized=false; the caller decides whether that is fatal.
func Optimize(data []byte, contentType, ext string, maxDim int) Result {
	original := Result{Data: data, ContentType: contentType, Ext: ext}
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return original
	}

	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return original
	}

	out := img.Bounds()
	return Result{
		Data:        encoded,
		ContentType: "image/png",
		Ext:         ".png",
		Width:       out.Dx(),
		Height:      out.Dy(),
		Optimized:   true,
	}
}

// Dimensions decodes only the header of data.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
