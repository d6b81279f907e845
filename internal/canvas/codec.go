package canvas

import (
	"image"
	"image/png"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/aliskhannn/image-optimizer/internal/format"
)

// Codec writes an image in one format. Quality is in [0,1].
type Codec interface {
	Encode(w io.Writer, img image.Image, quality float64, lossless bool) error
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(w io.Writer, img image.Image, quality float64, lossless bool) error

// Encode calls f.
func (f CodecFunc) Encode(w io.Writer, img image.Image, quality float64, lossless bool) error {
	return f(w, img, quality, lossless)
}

// optionalCodecs is filled by codecs that need build tags.
var optionalCodecs = map[format.Format]Codec{}

func builtinCodecs() map[format.Format]Codec {
	codecs := map[format.Format]Codec{
		format.PNG:  CodecFunc(encodePNG),
		format.JPEG: CodecFunc(encodeJPEG),
		format.BMP:  CodecFunc(encodeBMP),
		format.WebP: CodecFunc(encodeWebP),
	}

	for f, c := range optionalCodecs {
		codecs[f] = c
	}

	return codecs
}

// percent maps a [0,1] quality onto 1..100.
func percent(q float64) int {
	p := int(math.Round(q * 100))
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}

	return p
}

func encodePNG(w io.Writer, img image.Image, _ float64, _ bool) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
}

func encodeJPEG(w io.Writer, img image.Image, quality float64, _ bool) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(percent(quality)))
}

func encodeBMP(w io.Writer, img image.Image, _ float64, _ bool) error {
	return imaging.Encode(w, img, imaging.BMP)
}

func encodeWebP(w io.Writer, img image.Image, quality float64, lossless bool) error {
	return webp.Encode(w, img, &webp.Options{
		Lossless: lossless,
		Quality:  float32(percent(quality)),
	})
}
