package model

import (
	"fmt"
	"time"

	"github.com/aliskhannn/image-optimizer/internal/format"
)

// SourceImage is an encoded input image as selected by the user.
// Pipelines read it but never modify it.
type SourceImage struct {
	Name string `json:"name"`
	Type string `json:"type"` // declared MIME type, may be empty
	Data []byte `json:"-"`
}

// Size returns the byte length of the encoded source.
func (s SourceImage) Size() int64 {
	return int64(len(s.Data))
}

// ResizeMode controls how much the dimension planner may shrink an image.
type ResizeMode string

const (
	ResizeNone         ResizeMode = "none"
	ResizeConservative ResizeMode = "conservative"
	ResizeModerate     ResizeMode = "moderate"
	ResizeAggressive   ResizeMode = "aggressive"
)

// ParseResizeMode validates s. An empty string means conservative.
func ParseResizeMode(s string) (ResizeMode, error) {
	switch m := ResizeMode(s); m {
	case "":
		return ResizeConservative, nil
	case ResizeNone, ResizeConservative, ResizeModerate, ResizeAggressive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown resize mode: %s", s)
	}
}

// OutputAuto keeps the source format where possible.
const OutputAuto = "auto"

// PNGOptions holds PNG specific settings. Quality is on a 0-100 scale.
type PNGOptions struct {
	Quality   int  `json:"quality"`
	Dithering bool `json:"dithering"`
}

// JPEGOptions holds JPEG specific settings.
type JPEGOptions struct {
	Quality     int  `json:"quality"`
	Progressive bool `json:"progressive"`
}

// WebPOptions holds WebP specific settings.
type WebPOptions struct {
	Quality  int  `json:"quality"`
	Lossless bool `json:"lossless"`
}

// AVIFOptions holds AVIF specific settings.
type AVIFOptions struct {
	Quality  int  `json:"quality"`
	Lossless bool `json:"lossless"`
}

// CompressionOptions is the settings bundle consumed by the optimizer.
type CompressionOptions struct {
	PNG          PNGOptions  `json:"png"`
	JPEG         JPEGOptions `json:"jpeg"`
	WebP         WebPOptions `json:"webp"`
	AVIF         AVIFOptions `json:"avif"`
	OutputFormat string      `json:"outputFormat"` // "auto", "png", "jpeg", "webp" or "avif"
	ResizeMode   ResizeMode  `json:"resizeMode"`
	AutoAdjust   bool        `json:"autoAdjust"`
}

// Preset names a predefined CompressionOptions bundle.
type Preset string

const (
	PresetBalanced Preset = "balanced"
	PresetEnhanced Preset = "enhanced"
	PresetMaximum  Preset = "maximum"
)

// DefaultCompressionOptions returns the balanced preset with automatic output format.
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		PNG:          PNGOptions{Quality: 90},
		JPEG:         JPEGOptions{Quality: 85, Progressive: true},
		WebP:         WebPOptions{Quality: 85},
		AVIF:         AVIFOptions{Quality: 80},
		OutputFormat: OutputAuto,
		ResizeMode:   ResizeConservative,
		AutoAdjust:   true,
	}
}

// Apply overlays preset p on top of o. Unknown presets fall back to balanced.
func (o CompressionOptions) Apply(p Preset) CompressionOptions {
	switch p {
	case PresetEnhanced:
		o.PNG = PNGOptions{Quality: 80}
		o.JPEG = JPEGOptions{Quality: 75, Progressive: true}
		o.WebP = WebPOptions{Quality: 75}
		o.AVIF = AVIFOptions{Quality: 70}
		o.ResizeMode = ResizeModerate
	case PresetMaximum:
		o.PNG = PNGOptions{Quality: 70, Dithering: true}
		o.JPEG = JPEGOptions{Quality: 65, Progressive: true}
		o.WebP = WebPOptions{Quality: 65}
		o.AVIF = AVIFOptions{Quality: 60}
		o.OutputFormat = string(format.WebP)
		o.ResizeMode = ResizeModerate
	default:
		o.PNG = PNGOptions{Quality: 90}
		o.JPEG = JPEGOptions{Quality: 85, Progressive: true}
		o.WebP = WebPOptions{Quality: 85}
		o.AVIF = AVIFOptions{Quality: 80}
		o.ResizeMode = ResizeConservative
	}

	return o
}

// OptimizeResult is what the optimizer hands back to the caller.
type OptimizeResult struct {
	Blob          []byte        `json:"-"`
	MIME          string        `json:"mime"`
	Format        format.Format `json:"format"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	OriginalSize  int64         `json:"originalSize"`
	OptimizedSize int64         `json:"optimizedSize"`
	Adjusted      bool          `json:"adjusted"` // the auto-adjust retry produced the result
}

// Reduction returns the size reduction in percent. It may be zero or negative.
func (r OptimizeResult) Reduction() float64 {
	if r.OriginalSize <= 0 {
		return 0
	}

	return float64(r.OriginalSize-r.OptimizedSize) / float64(r.OriginalSize) * 100
}

// ConversionOptions tunes a format conversion. Zero width/height keep the original.
type ConversionOptions struct {
	Quality *float64 `json:"quality,omitempty"` // [0,1]; nil uses the format default
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
}

// ConversionResult describes one converted image.
type ConversionResult struct {
	Blob             []byte        `json:"-"`
	MIME             string        `json:"mime"`
	OriginalSize     int64         `json:"originalSize"`
	ConvertedSize    int64         `json:"convertedSize"`
	OriginalFormat   string        `json:"originalFormat"`
	TargetFormat     format.Format `json:"targetFormat"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	ProcessingTime   time.Duration `json:"processingTime"`
	CompressionRatio string        `json:"compressionRatio"`
}

// OptimizationStats aggregates results of a set of optimized images.
type OptimizationStats struct {
	TotalOriginalSize  int64   `json:"totalOriginalSize"`
	TotalOptimizedSize int64   `json:"totalOptimizedSize"`
	AverageReduction   float64 `json:"averageReduction"`
	ImagesOptimized    int     `json:"imagesOptimized"`
	SuccessRate        float64 `json:"successRate"`
}
