package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode

	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ErrDecode is returned when source bytes cannot be rasterized.
var ErrDecode = errors.New("failed to load image")

// Decode rasterizes src into a fresh RGBA8 buffer, applying EXIF orientation.
func Decode(src model.SourceImage) (*image.NRGBA, error) {
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: invalid bounds %dx%d", ErrDecode, b.Dx(), b.Dy())
	}

	return imaging.Clone(img), nil
}

// SniffMIME detects the content type of data from its magic bytes.
func SniffMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// SourceFormat resolves the format of src: declared MIME type first, then the
// file name extension, then the sniffed content. ok is false when none of
// them names a registered format.
func SourceFormat(src model.SourceImage) (format.Format, bool) {
	if f, ok := format.FromMIME(src.Type); ok {
		return f, true
	}

	if ext := format.FileExtension(src.Name); format.IsSupported(ext) {
		return format.Canonical(format.Format(ext)), true
	}

	if len(src.Data) > 0 {
		return format.FromMIME(SniffMIME(src.Data))
	}

	return "", false
}
