package canvas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/format"
)

var (
	// ErrUnsupportedFormat is returned when the host has no codec for a format.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrEncode is returned when both the requested and the fallback encode fail.
	ErrEncode = errors.New("failed to convert canvas to blob")
)

const (
	// FallbackFormat is written when the requested format cannot be encoded.
	FallbackFormat = format.PNG
	// FallbackQuality is passed to the fallback codec.
	FallbackQuality = 0.8
)

// Params selects the output of an encode.
type Params struct {
	Format   format.Format
	Quality  float64 // [0,1]
	Lossless bool
}

// Blob is an encoded image.
type Blob struct {
	Data     []byte
	MIME     string
	Format   format.Format
	Fallback bool // the fallback format was written instead of the requested one
}

// Size returns the byte length of the blob.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithCodec installs or replaces the codec for f.
func WithCodec(f format.Format, c Codec) Option {
	return func(e *Encoder) { e.codecs[format.Canonical(f)] = c }
}

// WithoutCodec removes the codec for f, making it unsupported.
func WithoutCodec(f format.Format) Option {
	return func(e *Encoder) { delete(e.codecs, format.Canonical(f)) }
}

// Encoder draws rasters onto surfaces and encodes them. The set of codecs
// is probed once at construction.
type Encoder struct {
	codecs map[format.Format]Codec
}

// NewEncoder returns an Encoder with every codec compiled into the binary.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{codecs: builtinCodecs()}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Supports reports whether f can be encoded without falling back.
func (e *Encoder) Supports(f format.Format) bool {
	_, ok := e.codecs[format.Canonical(f)]
	return ok
}

// Supported lists every registry format this encoder can write.
func (e *Encoder) Supported() []format.Format {
	var out []format.Format
	for _, f := range format.All() {
		if e.Supports(f) {
			out = append(out, f)
		}
	}

	return out
}

// Render draws src onto a new width x height surface. Raw pixel buffers of
// the target size are copied as they are.
func (e *Encoder) Render(src image.Image, width, height int) (*Surface, error) {
	s, err := NewSurface(width, height)
	if err != nil {
		return nil, err
	}

	if px, ok := src.(*image.NRGBA); ok && px.Rect.Dx() == width && px.Rect.Dy() == height {
		s.Put(px)
	} else {
		s.Draw(src)
	}

	return s, nil
}

// Encode writes the surface in the requested format. If that fails the
// surface is written as PNG instead; only a failure of that second attempt
// is returned, wrapped in ErrEncode.
func (e *Encoder) Encode(ctx context.Context, s *Surface, p Params) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	img := s.Image()

	data, err := e.encode(img, p.Format, p.Quality, p.Lossless)
	if err == nil {
		return Blob{Data: data, MIME: format.MIME(p.Format), Format: p.Format}, nil
	}

	zlog.Logger.Warn().
		Err(err).
		Str("format", string(p.Format)).
		Msg("encode failed, falling back to png")

	data, fbErr := e.encode(img, FallbackFormat, FallbackQuality, false)
	if fbErr != nil {
		return Blob{}, fmt.Errorf("%w: %s: %v; %s: %v", ErrEncode, p.Format, err, FallbackFormat, fbErr)
	}

	return Blob{Data: data, MIME: format.MIME(FallbackFormat), Format: FallbackFormat, Fallback: true}, nil
}

// DrawAndEncode renders src at width x height and encodes the result.
func (e *Encoder) DrawAndEncode(ctx context.Context, src image.Image, width, height int, p Params) (Blob, error) {
	s, err := e.Render(src, width, height)
	if err != nil {
		return Blob{}, err
	}

	return e.Encode(ctx, s, p)
}

// encode runs one codec and turns a panic or an empty output into an error.
func (e *Encoder) encode(img image.Image, f format.Format, quality float64, lossless bool) (data []byte, err error) {
	c, ok := e.codecs[format.Canonical(f)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%s codec panicked: %v", f, r)
		}
	}()

	var buf bytes.Buffer
	if err := c.Encode(&buf, img, quality, lossless); err != nil {
		return nil, err
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("%s codec produced no data", f)
	}

	return buf.Bytes(), nil
}
