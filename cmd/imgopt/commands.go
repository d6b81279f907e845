package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/config"
	"github.com/aliskhannn/image-optimizer/internal/converter"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/optimizer"
	"github.com/aliskhannn/image-optimizer/internal/taskmanager"
)

var errNoInput = errors.New("no input files")

func compress(cCtx *cli.Context) error {
	cfg, err := config.Load(cCtx.String(ConfigFlag))
	if err != nil {
		return err
	}

	srcs, err := readSources(cCtx)
	if err != nil {
		return err
	}

	opts := model.DefaultCompressionOptions().Apply(model.Preset(cCtx.String(PresetFlag)))
	if f := cCtx.String(FormatFlag); f != "" {
		opts.OutputFormat = f
	}
	if r := cCtx.String(ResizeFlag); r != "" {
		mode, err := model.ParseResizeMode(r)
		if err != nil {
			return err
		}
		opts.ResizeMode = mode
	}
	opts.AutoAdjust = !cCtx.Bool(NoAdjustFlag)

	bus := notify.NewBus()
	unsubscribe := bus.Subscribe(func(n notify.Notification) {
		if n.Level == notify.LevelWarning || n.Level == notify.LevelError {
			zlog.Logger.Warn().Str("title", n.Title).Msg(n.Message)
		}
	})
	defer unsubscribe()

	opt := optimizer.New(canvas.NewEncoder(), nil, bus, cfg.Optimizer)
	outcomes := opt.OptimizeAll(cCtx.Context, srcs, opts)

	w := cCtx.App.Writer
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", o.Source.Name, o.Err)
			continue
		}

		name := format.ConvertedFileName(o.Source.Name, o.Result.Format)
		if err := writeResult(cCtx, name, o.Result.Blob); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s -> %s (%.1f%%)\n", name,
			format.HumanSize(o.Result.OriginalSize), format.HumanSize(o.Result.OptimizedSize), o.Result.Reduction())
	}

	stats := optimizer.Summarize(outcomes)
	fmt.Fprintf(w, "optimized %d/%d images, %s -> %s, average reduction %.1f%%\n",
		stats.ImagesOptimized, len(outcomes),
		format.HumanSize(stats.TotalOriginalSize), format.HumanSize(stats.TotalOptimizedSize),
		stats.AverageReduction)

	if stats.ImagesOptimized == 0 {
		return errors.New("no image was optimized")
	}

	return nil
}

func convert(cCtx *cli.Context) error {
	target, err := format.Parse(cCtx.String(FormatFlag))
	if err != nil {
		return err
	}

	srcs, err := readSources(cCtx)
	if err != nil {
		return err
	}

	opts := model.ConversionOptions{
		Width:  cCtx.Int(WidthFlag),
		Height: cCtx.Int(HeightFlag),
	}
	if q := cCtx.Float64(QualityFlag); q >= 0 {
		if q > 1 {
			return fmt.Errorf("invalid quality: %v", q)
		}
		opts.Quality = &q
	}

	items := converter.New(canvas.NewEncoder()).ConvertEach(cCtx.Context, srcs, target, opts)

	w := cCtx.App.Writer
	for _, it := range items {
		if it.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", it.Source.Name, it.Err)
			continue
		}

		name := format.OutputFileName(it.Source.Name, it.Result.MIME, target)
		if err := writeResult(cCtx, name, it.Result.Blob); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s -> %s (%s) in %s\n", name,
			format.HumanSize(it.Result.OriginalSize), format.HumanSize(it.Result.ConvertedSize),
			it.Result.CompressionRatio, it.Result.ProcessingTime)
	}

	if len(items.Succeeded()) == 0 {
		return items.Err()
	}

	return nil
}

func process(cCtx *cli.Context) error {
	cfg, err := config.Load(cCtx.String(ConfigFlag))
	if err != nil {
		return err
	}

	kind := model.Kind(cCtx.String(KindFlag))
	if kind != model.KindConvert && kind != model.KindCompress {
		return fmt.Errorf("unknown operation type: %s", kind)
	}

	srcs, err := readSources(cCtx)
	if err != nil {
		return err
	}

	opts := model.ProcessingOptions{
		Format:  cCtx.String(FormatFlag),
		Quality: cCtx.Float64(QualityFlag),
	}
	if kind == model.KindConvert {
		opts.Width, opts.Height = cCtx.Int(WidthFlag), cCtx.Int(HeightFlag)
	} else {
		opts.MaxWidth, opts.MaxHeight = cCtx.Int(WidthFlag), cCtx.Int(HeightFlag)
	}

	enc := canvas.NewEncoder()
	var spawn taskmanager.SpawnFunc
	if cfg.Worker.Enabled && !cCtx.Bool(MainThreadFlag) {
		spawn = taskmanager.WorkerSpawner(enc, cfg.Worker.QueueSize)
	}

	m := taskmanager.New(enc, spawn)
	defer m.Close()
	zlog.Logger.Info().Str("mode", string(m.Mode())).Int("tasks", len(srcs)).Msg("processing images")

	items := m.ProcessEach(cCtx.Context, srcs, opts, kind)

	w := cCtx.App.Writer
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", it.Source.Name, it.Err)
			continue
		}

		name := format.OutputFileName(it.Source.Name, it.Result.MIME, format.PNG)
		if err := writeResult(cCtx, name, it.Result.Blob); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %dx%d, %s\n", name, it.Result.Width, it.Result.Height, format.HumanSize(it.Result.Size))
	}

	if failed == len(items) {
		return items.Err()
	}

	return nil
}

func formats(cCtx *cli.Context) error {
	enc := canvas.NewEncoder()

	tw := tabwriter.NewWriter(cCtx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tMIME\tQUALITY\tENCODE")
	for _, f := range format.All() {
		spec, err := format.Lookup(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%t\n", f, spec.MIME, spec.DefaultQuality, enc.Supports(f))
	}

	return tw.Flush()
}

// readSources loads every argument as a source image.
func readSources(cCtx *cli.Context) ([]model.SourceImage, error) {
	if cCtx.NArg() == 0 {
		return nil, errNoInput
	}

	srcs := make([]model.SourceImage, 0, cCtx.NArg())
	for _, p := range cCtx.Args().Slice() {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}

		srcs = append(srcs, model.SourceImage{
			Name: filepath.Base(p),
			Type: canvas.SniffMIME(data),
			Data: data,
		})
	}

	return srcs, nil
}

func writeResult(cCtx *cli.Context, name string, data []byte) error {
	dir := cCtx.String(OutputFlag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
