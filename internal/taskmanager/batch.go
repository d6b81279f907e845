package taskmanager

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ProcessImages processes every source concurrently. It fails as a whole on
// the first failing source; results keep the order of srcs.
func (m *Manager) ProcessImages(ctx context.Context, srcs []model.SourceImage, opts model.ProcessingOptions, kind model.Kind) ([]model.ProcessingResult, error) {
	results := make([]model.ProcessingResult, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			res, err := m.ProcessImage(gctx, src, opts, kind)
			if err != nil {
				return err
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Item is the outcome of processing one source of a batch.
type Item struct {
	Source model.SourceImage
	Result model.ProcessingResult
	Err    error
}

// Items is the per-source outcome of ProcessEach.
type Items []Item

// Err combines the errors of every failed item, or returns nil.
func (items Items) Err() error {
	var err error
	for _, it := range items {
		err = multierr.Append(err, it.Err)
	}

	return err
}

// ProcessEach processes every source concurrently and keeps each outcome.
func (m *Manager) ProcessEach(ctx context.Context, srcs []model.SourceImage, opts model.ProcessingOptions, kind model.Kind) Items {
	items := make(Items, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := m.ProcessImage(ctx, src, opts, kind)
			items[i] = Item{Source: src, Result: res, Err: err}
		}()
	}
	wg.Wait()

	return items
}
