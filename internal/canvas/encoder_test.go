package canvas

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-optimizer/internal/format"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/testutil"
)

func failingCodec(msg string) Codec {
	return CodecFunc(func(io.Writer, image.Image, float64, bool) error {
		return errors.New(msg)
	})
}

func TestDecode(t *testing.T) {
	src := model.SourceImage{Name: "a.png", Type: "image/png", Data: testutil.PNG(testutil.Gradient(40, 30))}

	img, err := Decode(src)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode(model.SourceImage{Name: "bad.png", Data: []byte("not an image")})
	require.ErrorIs(t, err, ErrDecode)

	_, err = Decode(model.SourceImage{Name: "empty.png"})
	require.ErrorIs(t, err, ErrDecode)
}

func TestSourceFormat(t *testing.T) {
	data := testutil.PNG(testutil.Gradient(4, 4))

	f, ok := SourceFormat(model.SourceImage{Type: "image/webp", Name: "x.png", Data: data})
	require.True(t, ok)
	assert.Equal(t, format.WebP, f)

	f, ok = SourceFormat(model.SourceImage{Name: "photo.JPG", Data: data})
	require.True(t, ok)
	assert.Equal(t, format.JPEG, f)

	f, ok = SourceFormat(model.SourceImage{Name: "blob", Data: data})
	require.True(t, ok)
	assert.Equal(t, format.PNG, f)

	_, ok = SourceFormat(model.SourceImage{Name: "notes.txt", Data: []byte("hello")})
	assert.False(t, ok)
}

func TestNewSurfaceRejectsEmpty(t *testing.T) {
	_, err := NewSurface(0, 10)
	require.ErrorIs(t, err, ErrContextUnavailable)

	_, err = NewSurface(1<<15, 1<<15)
	require.ErrorIs(t, err, ErrContextUnavailable)
}

func TestRenderScales(t *testing.T) {
	e := NewEncoder()

	s, err := e.Render(testutil.Gradient(200, 100), 50, 24)
	require.NoError(t, err)
	assert.Equal(t, 50, s.Image().Bounds().Dx())
	assert.Equal(t, 24, s.Image().Bounds().Dy())
}

func TestRenderCopiesSameSizePixels(t *testing.T) {
	src := testutil.Gradient(16, 8)

	s, err := NewEncoder().Render(src, 16, 8)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, s.Image().Pix)
}

func TestPutReplacesWithoutBlending(t *testing.T) {
	s, err := NewSurface(4, 4)
	require.NoError(t, err)
	s.Draw(testutil.Gradient(4, 4))

	s.Put(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	for _, v := range s.Image().Pix {
		require.Zero(t, v)
	}
}

func TestEncodeRequestedFormats(t *testing.T) {
	e := NewEncoder()
	src := testutil.Gradient(64, 48)

	cases := []struct {
		f    format.Format
		mime string
	}{
		{format.PNG, "image/png"},
		{format.JPEG, "image/jpeg"},
		{format.JPG, "image/jpeg"},
		{format.BMP, "image/bmp"},
		{format.WebP, "image/webp"},
	}

	for _, c := range cases {
		blob, err := e.DrawAndEncode(context.Background(), src, 64, 48, Params{Format: c.f, Quality: 0.9})
		require.NoError(t, err, c.f)
		assert.Equal(t, c.mime, blob.MIME)
		assert.False(t, blob.Fallback)
		assert.Equal(t, c.mime, SniffMIME(blob.Data), c.f)
	}
}

func TestEncodeUnsupportedFallsBackToPNG(t *testing.T) {
	e := NewEncoder()
	require.False(t, e.Supports(format.ICO))

	blob, err := e.DrawAndEncode(context.Background(), testutil.Gradient(16, 16), 16, 16, Params{Format: format.ICO, Quality: 1})
	require.NoError(t, err)
	assert.True(t, blob.Fallback)
	assert.Equal(t, "image/png", blob.MIME)
	assert.Equal(t, format.PNG, blob.Format)

	_, err = png.Decode(bytes.NewReader(blob.Data))
	require.NoError(t, err)
}

func TestEncodeFailingCodecFallsBack(t *testing.T) {
	e := NewEncoder(WithCodec(format.WebP, failingCodec("boom")))

	blob, err := e.DrawAndEncode(context.Background(), testutil.Gradient(8, 8), 8, 8, Params{Format: format.WebP, Quality: 0.5})
	require.NoError(t, err)
	assert.True(t, blob.Fallback)
	assert.Equal(t, "image/png", blob.MIME)
}

func TestEncodePanickingCodecFallsBack(t *testing.T) {
	e := NewEncoder(WithCodec(format.JPEG, CodecFunc(func(io.Writer, image.Image, float64, bool) error {
		panic("codec crashed")
	})))

	blob, err := e.DrawAndEncode(context.Background(), testutil.Gradient(8, 8), 8, 8, Params{Format: format.JPEG, Quality: 0.5})
	require.NoError(t, err)
	assert.True(t, blob.Fallback)
}

func TestEncodeFallbackFailurePropagates(t *testing.T) {
	e := NewEncoder(
		WithCodec(format.WebP, failingCodec("webp broken")),
		WithCodec(format.PNG, failingCodec("png broken")),
	)

	_, err := e.DrawAndEncode(context.Background(), testutil.Gradient(8, 8), 8, 8, Params{Format: format.WebP, Quality: 0.5})
	require.ErrorIs(t, err, ErrEncode)
	assert.Contains(t, err.Error(), "png broken")
}

func TestEncodeHonoursCanceledContext(t *testing.T) {
	e := NewEncoder()
	s, err := e.Render(testutil.Gradient(8, 8), 8, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Encode(ctx, s, Params{Format: format.PNG})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	e := NewEncoder(WithoutCodec(format.WebP))
	assert.False(t, e.Supports(format.WebP))
	assert.True(t, e.Supports(format.JPG))
	assert.NotContains(t, e.Supported(), format.WebP)
	assert.Contains(t, e.Supported(), format.BMP)
}
