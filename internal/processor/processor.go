package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/model"
)

// Config bounds the server-side optimization.
type Config struct {
	MaxWidth  int `mapstructure:"max_width"`
	MaxHeight int `mapstructure:"max_height"`
	Quality   int `mapstructure:"quality"` // 1-100, used by lossy formats
}

// DefaultConfig fits images into a Full HD box.
func DefaultConfig() Config {
	return Config{MaxWidth: 1920, MaxHeight: 1080, Quality: 80}
}

// Result is the response body of a server-side optimization.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Fallback    bool // Data is the untouched upload
}

// encodeFunc writes img in one output format.
type encodeFunc func(w io.Writer, img image.Image, quality int) error

// Processor is the best-effort optimizer behind the HTTP optimize endpoint.
// It never fails because of image data: anything it cannot process is
// handed back unchanged.
type Processor struct {
	cfg      Config
	encoders map[string]encodeFunc
}

// New creates a new Processor with the given bounding box.
func New(cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}

	return &Processor{
		cfg: cfg,
		encoders: map[string]encodeFunc{
			"image/jpeg": func(w io.Writer, img image.Image, q int) error {
				return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
			},
			"image/png": func(w io.Writer, img image.Image, _ int) error {
				return imaging.Encode(w, img, imaging.PNG)
			},
			"image/gif": func(w io.Writer, img image.Image, _ int) error {
				return imaging.Encode(w, img, imaging.GIF)
			},
			"image/bmp": func(w io.Writer, img image.Image, _ int) error {
				return imaging.Encode(w, img, imaging.BMP)
			},
			"image/tiff": func(w io.Writer, img image.Image, _ int) error {
				return imaging.Encode(w, img, imaging.TIFF)
			},
			"image/webp": func(w io.Writer, img image.Image, q int) error {
				return webp.Encode(w, img, &webp.Options{Quality: float32(q)})
			},
		},
	}
}

// Optimize shrinks src to fit the configured box without enlarging it and
// re-encodes it in its declared content type. When decoding or encoding
// fails the original bytes are returned with Fallback set. Only a canceled
// context is reported as an error.
func (p *Processor) Optimize(ctx context.Context, src model.SourceImage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	contentType := src.Type
	if contentType == "" {
		contentType = canvas.SniffMIME(src.Data)
	}

	res, err := p.optimize(src, contentType)
	if err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("name", src.Name).
			Str("content_type", contentType).
			Msg("processing failed, returning original image")

		return Result{Data: src.Data, ContentType: contentType, Fallback: true}, nil
	}

	return res, nil
}

func (p *Processor) optimize(src model.SourceImage, contentType string) (Result, error) {
	mime, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}

	enc, ok := p.encoders[strings.TrimSpace(mime)]
	if !ok {
		return Result{}, fmt.Errorf("no encoder for %s", contentType)
	}

	// Decode into an image object.
	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode image: %w", err)
	}

	// Scale down only; imaging.Fit returns a copy for images that already fit.
	fitted := imaging.Fit(img, p.cfg.MaxWidth, p.cfg.MaxHeight, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := enc(buf, fitted, p.cfg.Quality); err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	b := fitted.Bounds()

	return Result{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}
