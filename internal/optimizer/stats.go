package optimizer

import (
	"context"
	"fmt"

	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
)

// Outcome is the result or the error of optimizing one source.
type Outcome struct {
	Source model.SourceImage
	Result model.OptimizeResult
	Err    error
}

// OptimizeAll optimizes every source one after another and reports each
// outcome on the bus. Failures do not stop the loop.
func (o *Optimizer) OptimizeAll(ctx context.Context, srcs []model.SourceImage, opts model.CompressionOptions) []Outcome {
	o.bus.Publish("Batch processing", fmt.Sprintf("Optimizing %d images...", len(srcs)), notify.LevelInfo)

	out := make([]Outcome, 0, len(srcs))
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			out = append(out, Outcome{Source: src, Err: err})
			continue
		}

		res, err := o.Optimize(ctx, src, opts)
		out = append(out, Outcome{Source: src, Result: res, Err: err})

		switch {
		case err != nil:
			o.bus.Publish("Optimization error", err.Error(), notify.LevelError)
		case res.OptimizedSize >= res.OriginalSize:
			o.bus.Publish("Image already optimized", src.Name+": no changes were made.", notify.LevelInfo)
		default:
			o.bus.Publish("Image optimized", fmt.Sprintf(
				"%.1f%% reduction (%s → %s)",
				res.Reduction(),
				format.FormatFileSize(res.OriginalSize),
				format.FormatFileSize(res.OptimizedSize),
			), notify.LevelSuccess)
		}
	}

	return out
}

// Summarize aggregates outcomes. A successful outcome that did not shrink
// counts with its original size, since the original is what gets served.
func Summarize(outcomes []Outcome) model.OptimizationStats {
	var s model.OptimizationStats

	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}

		s.ImagesOptimized++
		s.TotalOriginalSize += o.Result.OriginalSize
		s.TotalOptimizedSize += min(o.Result.OptimizedSize, o.Result.OriginalSize)
	}

	if s.TotalOriginalSize > 0 {
		s.AverageReduction = float64(s.TotalOriginalSize-s.TotalOptimizedSize) / float64(s.TotalOriginalSize) * 100
	}
	if len(outcomes) > 0 {
		s.SuccessRate = float64(s.ImagesOptimized) / float64(len(outcomes)) * 100
	}

	return s
}
