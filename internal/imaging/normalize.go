// Package imaging prepares photographs for embedding: decode, then a
// deterministic aspect-preserving resize onto a fixed square canvas.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	// Registered decoders for the formats the card corpus uses.
	_ "image/jpeg"
	_ "image/png"

	"github.com/cardex-io/cardex/internal/domain"
)

// Decode reads and decodes a source image. Any decode failure wraps
// domain.ErrImageDecode so ingestion can treat it as a per-item failure.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	return img, nil
}

// Normalize scales src to fit a size×size canvas without cropping and centers
// it on a white (255,255,255) background.
//
// scale = min(size/H, size/W); content dims are floor(W*scale) × floor(H*scale);
// padding on each axis is floor((size-dim)/2). Catmull-Rom resampling is fixed
// so the same input always yields the same canvas.
func Normalize(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := float64(size) / float64(h)
	if s := float64(size) / float64(w); s < scale {
		scale = s
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)

	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.NRGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	padW := (size - newW) / 2
	padH := (size - newH) / 2
	dst := image.Rect(padW, padH, padW+newW, padH+newH)
	draw.CatmullRom.Scale(canvas, dst, src, b, draw.Src, nil)

	return canvas
}

// EncodePNG serializes the normalized canvas for transport to the embedding
// provider.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
