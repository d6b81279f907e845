// Package testutil builds synthetic images for tests.
package testutil

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"math/rand"
)

// Gradient returns a w x h opaque gradient.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(x * 255 / max(w, 1))
			img.Pix[off+1] = uint8(y * 255 / max(h, 1))
			img.Pix[off+2] = uint8((x + y) % 256)
			img.Pix[off+3] = 0xff
		}
	}

	return img
}

// Noise returns a w x h image of random opaque pixels. Noise compresses badly,
// which makes it useful to provoke size regressions.
func Noise(w, h int, seed int64) *image.NRGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	return img
}

// PNG encodes img as PNG. It panics on failure.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

// JPEG encodes img as JPEG at quality q. It panics on failure.
func JPEG(img image.Image, q int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		panic(err)
	}

	return buf.Bytes()
}
