package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliskhannn/image-optimizer/internal/converter"
	"github.com/aliskhannn/image-optimizer/internal/export"
	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/metrics"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/notify"
	"github.com/aliskhannn/image-optimizer/internal/processor"
)

var (
	// ErrNoFile is returned when a request carries no image.
	ErrNoFile = errors.New("no file provided")
	// ErrNotImage is returned for uploads that are not declared as images.
	ErrNotImage = errors.New("file is not an image")
)

// imageOptimizer compresses images.
type imageOptimizer interface {
	Optimize(ctx context.Context, src model.SourceImage, opts model.CompressionOptions) (model.OptimizeResult, error)
}

// imageConverter converts images between formats.
type imageConverter interface {
	Convert(ctx context.Context, src model.SourceImage, target format.Format, opts model.ConversionOptions) (model.ConversionResult, error)
	ConvertEach(ctx context.Context, srcs []model.SourceImage, target format.Format, opts model.ConversionOptions) converter.Items
}

// remoteProcessor is the best-effort server-side optimizer.
type remoteProcessor interface {
	Optimize(ctx context.Context, src model.SourceImage) (processor.Result, error)
}

// exporter uploads archives to object storage.
type exporter interface {
	Upload(ctx context.Context, name string, entries []export.Entry) (export.Upload, error)
}

// capabilities lists the formats the host can encode.
type capabilities interface {
	Supports(f format.Format) bool
}

// Service provides business logic for image operations.
type Service struct {
	optimizer imageOptimizer
	converter imageConverter
	processor remoteProcessor
	exporter  exporter
	caps      capabilities
	metrics   metrics.Metrics
	bus       *notify.Bus
	center    *notify.Center
}

// Option configures a Service.
type Option func(*Service)

// WithExporter stores batch archives in object storage instead of
// returning them inline.
func WithExporter(e exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithMetrics records processing metrics.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBus publishes the outcome of single-image operations on bus.
func WithBus(bus *notify.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithNotifications keeps recent notifications in c.
func WithNotifications(c *notify.Center) Option {
	return func(s *Service) { s.center = c }
}

// NewService creates a new Service.
func NewService(o imageOptimizer, c imageConverter, p remoteProcessor, caps capabilities, opts ...Option) *Service {
	s := &Service{
		optimizer: o,
		converter: c,
		processor: p,
		caps:      caps,
		metrics:   metrics.Noop{},
		center:    notify.NewCenter(0),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Optimize runs the server-side best-effort optimization.
func (s *Service) Optimize(ctx context.Context, src model.SourceImage) (processor.Result, error) {
	if err := validate(src); err != nil {
		return processor.Result{}, err
	}

	start := time.Now()
	res, err := s.processor.Optimize(ctx, src)
	if err != nil {
		s.metrics.RecordImage("optimize", metrics.OutcomeError, src.Size(), 0, time.Since(start))
		return processor.Result{}, fmt.Errorf("optimize: %w", err)
	}

	s.metrics.RecordImage("optimize", metrics.OutcomeSuccess, src.Size(), int64(len(res.Data)), time.Since(start))

	return res, nil
}

// Compress optimizes src with opts.
func (s *Service) Compress(ctx context.Context, src model.SourceImage, opts model.CompressionOptions) (model.OptimizeResult, error) {
	if err := validate(src); err != nil {
		return model.OptimizeResult{}, err
	}

	start := time.Now()
	res, err := s.optimizer.Optimize(ctx, src, opts)
	if err != nil {
		s.metrics.RecordImage("compress", metrics.OutcomeError, src.Size(), 0, time.Since(start))
		return model.OptimizeResult{}, err
	}

	s.metrics.RecordImage("compress", metrics.OutcomeSuccess, res.OriginalSize, res.OptimizedSize, time.Since(start))

	if res.OptimizedSize >= res.OriginalSize {
		s.bus.Publish("Image already optimized", src.Name+": no changes were made.", notify.LevelInfo)
	} else {
		s.bus.Publish("Image optimized", fmt.Sprintf(
			"%s: %.1f%% reduction (%s → %s)",
			src.Name, res.Reduction(), format.HumanSize(res.OriginalSize), format.HumanSize(res.OptimizedSize),
		), notify.LevelSuccess)
	}

	return res, nil
}

// Convert converts src into target.
func (s *Service) Convert(ctx context.Context, src model.SourceImage, target string, opts model.ConversionOptions) (model.ConversionResult, error) {
	if err := validate(src); err != nil {
		return model.ConversionResult{}, err
	}

	f, err := format.Parse(target)
	if err != nil {
		return model.ConversionResult{}, err
	}

	res, err := s.converter.Convert(ctx, src, f, opts)
	if err != nil {
		s.metrics.RecordImage("convert", metrics.OutcomeError, src.Size(), 0, 0)
		return model.ConversionResult{}, err
	}

	s.recordConversion(res)
	s.bus.Publish("Conversion complete", fmt.Sprintf(
		"%s converted to %s (%s)", src.Name, strings.ToUpper(string(res.TargetFormat)), res.CompressionRatio,
	), notify.LevelSuccess)

	return res, nil
}

// BatchFailure names a source that could not be converted.
type BatchFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult is the outcome of a batch conversion. Exactly one of Archive
// and Upload is set.
type BatchResult struct {
	Archive   []byte                   `json:"-"`
	Upload    *export.Upload           `json:"upload,omitempty"`
	Converted []model.ConversionResult `json:"converted"`
	Failed    []BatchFailure           `json:"failed"`
}

// ConvertBatch converts every source into target and bundles the results
// in a ZIP archive. Sources that fail are reported in Failed; the batch
// only fails when nothing could be converted.
func (s *Service) ConvertBatch(ctx context.Context, srcs []model.SourceImage, target string, opts model.ConversionOptions) (BatchResult, error) {
	if len(srcs) == 0 {
		return BatchResult{}, ErrNoFile
	}

	f, err := format.Parse(target)
	if err != nil {
		return BatchResult{}, err
	}

	items := s.converter.ConvertEach(ctx, srcs, f, opts)

	var (
		res     BatchResult
		entries []export.Entry
	)
	for _, it := range items {
		if it.Err != nil {
			s.metrics.RecordImage("convert", metrics.OutcomeError, it.Source.Size(), 0, 0)
			res.Failed = append(res.Failed, BatchFailure{Name: it.Source.Name, Error: it.Err.Error()})
			continue
		}

		s.recordConversion(it.Result)
		res.Converted = append(res.Converted, it.Result)
		entries = append(entries, export.Entry{
			Name: format.OutputFileName(it.Source.Name, it.Result.MIME, f),
			Data: it.Result.Blob,
		})
	}

	if len(entries) == 0 {
		return BatchResult{}, fmt.Errorf("convert batch: %w", items.Err())
	}

	if s.exporter != nil {
		up, err := s.exporter.Upload(ctx, "converted-"+string(f), entries)
		if err != nil {
			return BatchResult{}, err
		}
		res.Upload = &up

		return res, nil
	}

	res.Archive, err = export.Archive(entries)
	if err != nil {
		return BatchResult{}, fmt.Errorf("convert batch: %w", err)
	}

	return res, nil
}

// FormatInfo describes one registry format.
type FormatInfo struct {
	Format         format.Format `json:"format"`
	MIME           string        `json:"mime"`
	DefaultQuality float64       `json:"defaultQuality"`
	Lossy          bool          `json:"lossy"`
	Alpha          bool          `json:"alpha"`
	Supported      bool          `json:"supported"`
}

// Formats lists the registry with host support flags.
func (s *Service) Formats() []FormatInfo {
	all := format.All()
	out := make([]FormatInfo, 0, len(all))
	for _, f := range all {
		spec, _ := format.Lookup(f)
		out = append(out, FormatInfo{
			Format:         f,
			MIME:           spec.MIME,
			DefaultQuality: spec.DefaultQuality,
			Lossy:          spec.Lossy,
			Alpha:          spec.Alpha,
			Supported:      s.caps.Supports(f),
		})
	}

	return out
}

// Notifications returns the recent notifications, newest first.
func (s *Service) Notifications() []notify.Notification {
	return s.center.List()
}

// MarkNotificationsRead flags every notification as read.
func (s *Service) MarkNotificationsRead() {
	s.center.MarkAllAsRead()
}

// ClearNotifications drops every notification.
func (s *Service) ClearNotifications() {
	s.center.Clear()
}

func (s *Service) recordConversion(res model.ConversionResult) {
	s.metrics.RecordImage("convert", metrics.OutcomeSuccess, res.OriginalSize, res.ConvertedSize, res.ProcessingTime)
	if res.MIME != format.MIME(res.TargetFormat) {
		s.metrics.RecordFallback(string(res.TargetFormat))
	}
}

func validate(src model.SourceImage) error {
	if len(src.Data) == 0 {
		return ErrNoFile
	}
	if !strings.HasPrefix(strings.ToLower(src.Type), "image/") {
		return ErrNotImage
	}

	return nil
}
