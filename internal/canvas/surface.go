package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// ErrContextUnavailable is returned when no drawing surface can be created.
var ErrContextUnavailable = errors.New("failed to create canvas context")

// MaxSurfacePixels caps the area of a drawing surface.
const MaxSurfacePixels = 1 << 28

// Surface is an off-screen drawing target of fixed size.
type Surface struct {
	dc *gg.Context
}

// NewSurface allocates a transparent width x height surface.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 || int64(width)*int64(height) > MaxSurfacePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrContextUnavailable, width, height)
	}

	return &Surface{dc: gg.NewContext(width, height)}, nil
}

// Width of the surface in pixels.
func (s *Surface) Width() int { return s.dc.Width() }

// Height of the surface in pixels.
func (s *Surface) Height() int { return s.dc.Height() }

// Draw paints img stretched over the whole surface. Scaling uses a Lanczos
// filter.
func (s *Surface) Draw(img image.Image) {
	w, h := s.Width(), s.Height()

	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	s.dc.DrawImage(img, 0, 0)
}

// Put replaces the surface pixels with img without blending.
func (s *Surface) Put(img *image.NRGBA) {
	dst, ok := s.dc.Image().(*image.RGBA)
	if !ok {
		s.Draw(img)
		return
	}

	draw.Draw(dst, dst.Rect, img, img.Rect.Min, draw.Src)
}

// Image returns a copy of the surface pixels.
func (s *Surface) Image() *image.NRGBA {
	return imaging.Clone(s.dc.Image())
}
