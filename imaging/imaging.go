// Package imaging checks uploaded images by their content and derives the
// web previews served next to them.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"circus-pes/apperr"
)

const (
	PreviewContentType = "image/jpeg"
	previewQuality     = 80
)

var allowedTypes = []string{"image/jpeg", "image/png"}

// Allowed reports whether data is one of the accepted image formats,
// whatever name it was uploaded under.
func Allowed(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return allowed, true
		}
	}
	return mt.String(), false
}

// Preview scales the image down to maxWidth (never up), flattens
// transparency onto white and re-encodes it as JPEG. Images declaring more
// than maxPixels pixels are refused before any pixel data is decoded.
func Preview(data []byte, maxWidth int, maxPixels int64) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.BadInput.New("decode image header: %v", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, apperr.BadInput.New("image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.BadInput.New("decode image: %v", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, apperr.BadInput.New("image has no pixels")
	}
	if maxWidth > 0 && w > maxWidth {
		h = max(1, h*maxWidth/w)
		w = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return out.Bytes(), nil
}
