package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-optimizer/internal/canvas"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/testutil"
)

func TestOptimizeFitsInsideBox(t *testing.T) {
	p := New(Config{MaxWidth: 100, MaxHeight: 50})
	src := model.SourceImage{Name: "big.jpg", Type: "image/jpeg", Data: testutil.JPEG(testutil.Gradient(400, 100), 95)}

	res, err := p.Optimize(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 25, res.Height)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, "image/jpeg", canvas.SniffMIME(res.Data))
}

func TestOptimizeNeverEnlarges(t *testing.T) {
	src := model.SourceImage{Name: "small.png", Type: "image/png", Data: testutil.PNG(testutil.Gradient(40, 30))}

	res, err := New(DefaultConfig()).Optimize(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
	assert.Equal(t, "image/png", canvas.SniffMIME(res.Data))
}

func TestOptimizeKeepsWebP(t *testing.T) {
	src := model.SourceImage{Name: "a.png", Type: "image/png", Data: testutil.PNG(testutil.Gradient(40, 30))}
	src.Type = "image/webp"

	res, err := New(DefaultConfig()).Optimize(context.Background(), src)
	require.NoError(t, err)
	// the payload is really a PNG, but it decodes and is written as declared
	assert.Equal(t, "image/webp", res.ContentType)
	assert.Equal(t, "image/webp", canvas.SniffMIME(res.Data))
}

func TestOptimizeReturnsOriginalOnFailure(t *testing.T) {
	p := New(DefaultConfig())

	corrupt := model.SourceImage{Name: "broken.png", Type: "image/png", Data: []byte("definitely not a png")}
	res, err := p.Optimize(context.Background(), corrupt)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, corrupt.Data, res.Data)
	assert.Equal(t, "image/png", res.ContentType)

	svg := model.SourceImage{Name: "logo.svg", Type: "image/svg+xml", Data: []byte("<svg/>")}
	res, err = p.Optimize(context.Background(), svg)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "image/svg+xml", res.ContentType)
}

func TestOptimizeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig()).Optimize(ctx, model.SourceImage{Data: []byte{1}})
	require.ErrorIs(t, err, context.Canceled)
}
