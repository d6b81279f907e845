package planner

import (
	"maps"
	"math"

	"github.com/aliskhannn/image-optimizer/internal/model"
)

// Limits is the resize policy of one mode.
type Limits struct {
	MaxDimension  int     // ceiling for the longer side
	SizeThreshold int64   // source byte size above which ShrinkFactor applies
	ShrinkFactor  float64 // multiplier applied to both sides after clamping
}

// DefaultLimits are the tuned per-mode limits. Higher aggressiveness never
// allows a larger ceiling, a higher threshold or a larger factor.
var DefaultLimits = map[model.ResizeMode]Limits{
	model.ResizeConservative: {MaxDimension: 2500, SizeThreshold: 3 << 20, ShrinkFactor: 0.9},
	model.ResizeModerate:     {MaxDimension: 2000, SizeThreshold: 1 << 20, ShrinkFactor: 0.85},
	model.ResizeAggressive:   {MaxDimension: 1600, SizeThreshold: 500 << 10, ShrinkFactor: 0.8},
}

// Planner computes target dimensions for the optimizer.
type Planner struct {
	limits map[model.ResizeMode]Limits
}

// New returns a Planner using DefaultLimits overridden by the entries of limits.
func New(limits map[model.ResizeMode]Limits) *Planner {
	merged := maps.Clone(DefaultLimits)
	maps.Copy(merged, limits)

	return &Planner{limits: merged}
}

// Plan returns the output dimensions for an image of width x height pixels
// whose encoded form is size bytes. The longer side is clamped to the mode
// ceiling first, then the size-based shrink factor is applied, then both
// sides are floored to an even number.
func (p *Planner) Plan(width, height int, size int64, mode model.ResizeMode) (int, int) {
	if mode == model.ResizeNone || width <= 0 || height <= 0 {
		return width, height
	}

	lim, ok := p.limits[mode]
	if !ok {
		lim = p.limits[model.ResizeConservative]
	}

	factor := 1.0
	if lim.ShrinkFactor > 0 && size > lim.SizeThreshold {
		factor = lim.ShrinkFactor
	}

	aspect := float64(width) / float64(height)
	w, h := float64(width), float64(height)

	if lim.MaxDimension > 0 && (width > lim.MaxDimension || height > lim.MaxDimension) {
		if width > height {
			w = float64(lim.MaxDimension)
			h = math.Round(w / aspect)
		} else {
			h = float64(lim.MaxDimension)
			w = math.Round(h * aspect)
		}
	}

	w = math.Round(w * factor)
	h = math.Round(h * factor)

	return even(w, width), even(h, height)
}

// Plan is a shortcut for New(nil).Plan.
func Plan(width, height int, size int64, mode model.ResizeMode) (int, int) {
	return New(nil).Plan(width, height, size, mode)
}

// even floors v to a multiple of two. A side that would collapse to zero
// becomes two pixels, or stays at orig when the source is narrower than that.
func even(v float64, orig int) int {
	n := int(math.Floor(v/2)) * 2
	if n == 0 {
		return min(2, orig)
	}

	return n
}

// FitWithin scales width x height down so that the width does not exceed
// maxWidth and then the height does not exceed maxHeight, keeping the aspect
// ratio. A zero bound is ignored. Images are never enlarged.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	w, h := float64(width), float64(height)

	if maxWidth > 0 && w > float64(maxWidth) {
		h = h * float64(maxWidth) / w
		w = float64(maxWidth)
	}

	if maxHeight > 0 && h > float64(maxHeight) {
		w = w * float64(maxHeight) / h
		h = float64(maxHeight)
	}

	rw, rh := int(math.Round(w)), int(math.Round(h))
	if rw < 1 {
		rw = 1
	}
	if rh < 1 {
		rh = 1
	}

	return rw, rh
}
