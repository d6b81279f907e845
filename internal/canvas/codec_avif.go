//go:build avif

package canvas

import (
	"image"
	"io"

	"github.com/Kagami/go-avif"

	"github.com/aliskhannn/image-optimizer/internal/format"
)

// AVIF needs libaom at link time, so it is only compiled with -tags avif.
func init() {
	optionalCodecs[format.AVIF] = CodecFunc(encodeAVIF)
}

func encodeAVIF(w io.Writer, img image.Image, quality float64, lossless bool) error {
	// libaom quantizer: 0 is best, 63 is worst.
	q := avif.MaxQuality - int(quality*avif.MaxQuality)
	if lossless {
		q = avif.MinQuality
	}
	if q < avif.MinQuality {
		q = avif.MinQuality
	}

	return avif.Encode(w, img, &avif.Options{
		Threads: 0,
		Speed:   avif.MaxSpeed,
		Quality: q,
	})
}
