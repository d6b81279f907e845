package worker

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/planner"
)

// ErrNoPixels is returned for a request without a raster.
var ErrNoPixels = errors.New("request carries no image data")

// Encoder draws and encodes rasters.
type Encoder interface {
	DrawAndEncode(ctx context.Context, src image.Image, width, height int, p canvas.Params) (canvas.Blob, error)
}

// Process runs one request to completion. progress, if not nil, is called
// with ProgressCheckpoint before the final encode. It is used by the worker
// goroutine and by callers that process on their own goroutine.
func Process(ctx context.Context, enc Encoder, req Request, progress func(int)) (model.ProcessingResult, error) {
	if req.Pixels == nil {
		return model.ProcessingResult{}, ErrNoPixels
	}

	b := req.Pixels.Bounds()
	width, height := b.Dx(), b.Dy()
	opts := req.Options

	var target format.Format
	switch req.Type {
	case model.KindConvert:
		if opts.Width > 0 || opts.Height > 0 {
			width, height = planner.FitWithin(width, height, opts.Width, opts.Height)
		}
		target = targetFormat(opts.Format, format.PNG)
	case model.KindCompress:
		if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
			width, height = planner.FitWithin(width, height, opts.MaxWidth, opts.MaxHeight)
		}
		target = targetFormat(opts.Format, format.JPEG)
	default:
		return model.ProcessingResult{}, fmt.Errorf("unknown operation type: %s", req.Type)
	}

	if progress != nil {
		progress(ProgressCheckpoint)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = format.DefaultQuality(target)
	}

	blob, err := enc.DrawAndEncode(ctx, req.Pixels, width, height, canvas.Params{Format: target, Quality: quality})
	if err != nil {
		return model.ProcessingResult{}, err
	}

	return model.ProcessingResult{
		Blob:   blob.Data,
		MIME:   blob.MIME,
		Width:  width,
		Height: height,
		Size:   blob.Size(),
	}, nil
}

func targetFormat(s string, def format.Format) format.Format {
	if s == "" {
		return def
	}

	f, err := format.Parse(s)
	if err != nil {
		return format.Format(s)
	}

	return f
}
