package optimizer

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/planner"
)

// Config holds the tuning constants of the optimizer.
type Config struct {
	RetryQualityStep float64       `mapstructure:"retry_quality_step"` // quality drop of the auto-adjust pass
	MinRetryQuality  float64       `mapstructure:"min_retry_quality"`  // floor for the auto-adjust quality
	RetryFormat      format.Format `mapstructure:"retry_format"`       // size-efficient format tried on retry
	DefaultFormat    format.Format `mapstructure:"default_format"`     // "auto" output for unknown sources
	SubstituteFormat format.Format `mapstructure:"substitute_format"`  // written when the requested format is unsupported
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		RetryQualityStep: 0.1,
		MinRetryQuality:  0.6,
		RetryFormat:      format.WebP,
		DefaultFormat:    format.WebP,
		SubstituteFormat: format.WebP,
	}
}

// autoFormats are source formats kept as-is by "auto".
var autoFormats = map[string]format.Format{
	"png":  format.PNG,
	"jpeg": format.JPEG,
	"jpg":  format.JPEG,
	"webp": format.WebP,
	"avif": format.AVIF,
}

// encoder draws and encodes rasters.
type encoder interface {
	Supports(f format.Format) bool
	Render(src image.Image, width, height int) (*canvas.Surface, error)
	Encode(ctx context.Context, s *canvas.Surface, p canvas.Params) (canvas.Blob, error)
}

// publisher emits user-facing notifications.
type publisher interface {
	Publish(title, message string, level notify.Level)
}

// Optimizer re-encodes images to reduce their byte size.
type Optimizer struct {
	enc     encoder
	planner *planner.Planner
	bus     publisher
	cfg     Config
}

// New creates an Optimizer. A nil planner uses the default limits.
func New(enc encoder, p *planner.Planner, bus publisher, cfg Config) *Optimizer {
	if p == nil {
		p = planner.New(nil)
	}
	if bus == nil {
		bus = (*notify.Bus)(nil)
	}

	return &Optimizer{enc: enc, planner: p, bus: bus, cfg: cfg}
}

// Optimize decodes src, resizes it according to opts.ResizeMode and encodes
// it in the resolved output format. When the result is not smaller than src
// and opts.AutoAdjust is set, one more encode is tried at a lower quality,
// possibly in a more efficient format; it is kept only if it is strictly
// smaller than src. A size regression is never an error.
func (o *Optimizer) Optimize(ctx context.Context, src model.SourceImage, opts model.CompressionOptions) (model.OptimizeResult, error) {
	originalSize := src.Size()

	raster, err := canvas.Decode(src)
	if err != nil {
		return model.OptimizeResult{}, fmt.Errorf("optimize image: %w", err)
	}

	outputFormat := o.resolveFormat(src, opts.OutputFormat)

	b := raster.Bounds()
	width, height := o.planner.Plan(b.Dx(), b.Dy(), originalSize, opts.ResizeMode)

	surface, err := o.enc.Render(raster, width, height)
	if err != nil {
		return model.OptimizeResult{}, fmt.Errorf("optimize image: %w", err)
	}

	params := o.params(outputFormat, opts)
	if !o.enc.Supports(params.Format) && o.enc.Supports(o.cfg.SubstituteFormat) {
		zlog.Logger.Warn().
			Str("requested", string(params.Format)).
			Str("substitute", string(o.cfg.SubstituteFormat)).
			Msg("output format not supported, using substitute")
		o.bus.Publish(
			"Format not supported",
			fmt.Sprintf("%s is not supported here, using %s instead.", strings.ToUpper(string(params.Format)), strings.ToUpper(string(o.cfg.SubstituteFormat))),
			notify.LevelWarning,
		)
		params = o.params(o.cfg.SubstituteFormat, opts)
	}

	blob, err := o.enc.Encode(ctx, surface, params)
	if err != nil {
		return model.OptimizeResult{}, fmt.Errorf("optimize image: %w", err)
	}
	if blob.Fallback {
		o.bus.Publish("Format fallback", fmt.Sprintf("%s could not be encoded, saved as PNG.", src.Name), notify.LevelWarning)
	}

	result := o.result(blob, surface, originalSize)
	if blob.Size() < originalSize || !opts.AutoAdjust {
		return result, nil
	}

	zlog.Logger.Info().
		Str("name", src.Name).
		Int64("original", originalSize).
		Int64("optimized", blob.Size()).
		Msg("optimization did not reduce size, trying automatic adjustment")

	retry := canvas.Params{
		Format:  params.Format,
		Quality: math.Max(o.cfg.MinRetryQuality, params.Quality-o.cfg.RetryQualityStep),
	}
	if format.Canonical(blob.Format) != o.cfg.RetryFormat && o.enc.Supports(o.cfg.RetryFormat) {
		retry.Format = o.cfg.RetryFormat
	}

	adjusted, err := o.enc.Encode(ctx, surface, retry)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("name", src.Name).Msg("automatic adjustment failed, keeping first pass")
		return result, nil
	}

	if adjusted.Size() < originalSize {
		result = o.result(adjusted, surface, originalSize)
		result.Adjusted = true
	}

	return result, nil
}

// resolveFormat picks the output format for src.
func (o *Optimizer) resolveFormat(src model.SourceImage, requested string) format.Format {
	if requested != "" && requested != model.OutputAuto {
		f, err := format.Parse(requested)
		if err != nil {
			return o.cfg.DefaultFormat
		}
		return format.Canonical(f)
	}

	mimeSub := ""
	if _, sub, ok := strings.Cut(strings.ToLower(src.Type), "/"); ok {
		mimeSub = sub
	}
	if f, ok := autoFormats[mimeSub]; ok {
		return f
	}

	if f, ok := autoFormats[format.FileExtension(src.Name)]; ok {
		return f
	}

	return o.cfg.DefaultFormat
}

// params maps the per-format option block onto encoder parameters.
func (o *Optimizer) params(f format.Format, opts model.CompressionOptions) canvas.Params {
	switch format.Canonical(f) {
	case format.PNG:
		return canvas.Params{Format: format.PNG, Quality: float64(opts.PNG.Quality) / 100}
	case format.JPEG:
		return canvas.Params{Format: format.JPEG, Quality: float64(opts.JPEG.Quality) / 100}
	case format.WebP:
		return canvas.Params{Format: format.WebP, Quality: float64(opts.WebP.Quality) / 100, Lossless: opts.WebP.Lossless}
	case format.AVIF:
		return canvas.Params{Format: format.AVIF, Quality: float64(opts.AVIF.Quality) / 100, Lossless: opts.AVIF.Lossless}
	default:
		return canvas.Params{Format: f, Quality: format.DefaultQuality(f)}
	}
}

func (o *Optimizer) result(blob canvas.Blob, s *canvas.Surface, originalSize int64) model.OptimizeResult {
	return model.OptimizeResult{
		Blob:          blob.Data,
		MIME:          blob.MIME,
		Format:        blob.Format,
		Width:         s.Width(),
		Height:        s.Height(),
		OriginalSize:  originalSize,
		OptimizedSize: blob.Size(),
	}
}
