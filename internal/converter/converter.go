package converter

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
)

// encoder draws and encodes rasters.
type encoder interface {
	DrawAndEncode(ctx context.Context, src image.Image, width, height int, p canvas.Params) (canvas.Blob, error)
}

// Converter re-encodes images into a target format regardless of the
// resulting size.
type Converter struct {
	enc encoder
	now func() time.Time
}

// New creates a Converter on top of enc.
func New(enc encoder) *Converter {
	return &Converter{enc: enc, now: time.Now}
}

// Convert decodes src and encodes it as target. Width and height default to
// the source dimensions independently; quality defaults to the registry
// value of the target format.
func (c *Converter) Convert(ctx context.Context, src model.SourceImage, target format.Format, opts model.ConversionOptions) (model.ConversionResult, error) {
	start := c.now()

	raster, err := canvas.Decode(src)
	if err != nil {
		return model.ConversionResult{}, fmt.Errorf("convert %s: %w", src.Name, err)
	}

	b := raster.Bounds()
	width, height := b.Dx(), b.Dy()
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}

	quality := format.DefaultQuality(target)
	if opts.Quality != nil {
		quality = *opts.Quality
	}

	blob, err := c.enc.DrawAndEncode(ctx, raster, width, height, canvas.Params{Format: target, Quality: quality})
	if err != nil {
		return model.ConversionResult{}, fmt.Errorf("convert %s: %w", src.Name, err)
	}

	return model.ConversionResult{
		Blob:             blob.Data,
		MIME:             blob.MIME,
		OriginalSize:     src.Size(),
		ConvertedSize:    blob.Size(),
		OriginalFormat:   format.FileExtension(src.Name),
		TargetFormat:     target,
		Width:            width,
		Height:           height,
		ProcessingTime:   c.now().Sub(start),
		CompressionRatio: Ratio(src.Size(), blob.Size()),
	}, nil
}
