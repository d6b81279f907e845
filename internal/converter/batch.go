package converter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ConvertBatch converts every source concurrently. Results keep the order of
// srcs. The first failure cancels the remaining conversions and is the only
// error returned; no partial results are reported.
func (c *Converter) ConvertBatch(ctx context.Context, srcs []model.SourceImage, target format.Format, opts model.ConversionOptions) ([]model.ConversionResult, error) {
	results := make([]model.ConversionResult, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			res, err := c.Convert(gctx, src, target, opts)
			if err != nil {
				return err
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("convert batch: %w", err)
	}

	return results, nil
}

// Item is the outcome of converting one source of a batch.
type Item struct {
	Source model.SourceImage
	Result model.ConversionResult
	Err    error
}

// Items is the per-source outcome of ConvertEach.
type Items []Item

// Err combines the errors of every failed item, or returns nil.
func (items Items) Err() error {
	var err error
	for _, it := range items {
		err = multierr.Append(err, it.Err)
	}

	return err
}

// Succeeded returns the results of the items that converted.
func (items Items) Succeeded() []model.ConversionResult {
	out := make([]model.ConversionResult, 0, len(items))
	for _, it := range items {
		if it.Err == nil {
			out = append(out, it.Result)
		}
	}

	return out
}

// ConvertEach converts every source concurrently and reports each outcome
// separately, so one bad image does not hide the others.
func (c *Converter) ConvertEach(ctx context.Context, srcs []model.SourceImage, target format.Format, opts model.ConversionOptions) Items {
	items := make(Items, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := c.Convert(ctx, src, target, opts)
			items[i] = Item{Source: src, Result: res, Err: err}
		}()
	}
	wg.Wait()

	return items
}
