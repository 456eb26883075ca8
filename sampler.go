package luxmeter

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// Default raster size, matching a 100x100 analysis canvas.
const (
	DefaultWidth  = 100
	DefaultHeight = 100
)

// FrameSource is anything that can hand out its most recent frame without
// blocking. Frame returns ok false if no frame is ready yet.
type FrameSource interface {
	Frame() (img image.Image, ok bool, err error)
}

// Raster is a small, fixed-size frame reduced for analysis.
type Raster struct {
	img *image.NRGBA
}

// NewRaster wraps img as a raster without resizing it. Images that are not
// NRGBA are converted.
func NewRaster(img image.Image) *Raster {
	if n, ok := img.(*image.NRGBA); ok {
		return &Raster{n}
	}
	return &Raster{imaging.Clone(img)}
}

// Bounds returns the raster's bounds.
func (r *Raster) Bounds() image.Rectangle {
	return r.img.Bounds()
}

// Image returns the underlying image. Callers must not modify it.
func (r *Raster) Image() *image.NRGBA {
	return r.img
}

// Sampler reduces frames to rasters of a fixed size, so per-cycle cost does
// not depend on the camera's native resolution.
type Sampler struct {
	Width  int
	Height int
	Filter imaging.ResampleFilter // Zero value means imaging.NearestNeighbor.
}

// NewSampler returns a sampler for width x height rasters. Zero sizes use
// the defaults.
func NewSampler(width, height int, filter imaging.ResampleFilter) *Sampler {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Sampler{width, height, filter}
}

// Sample takes the current frame from src and scales it to the sampler's
// size. If src has no frame ready, Sample returns ok false and no error. It
// never waits for a frame.
func (s *Sampler) Sample(src FrameSource) (r *Raster, ok bool, err error) {
	img, ok, err := src.Frame()
	if err != nil {
		return nil, false, err
	}
	if !ok || img == nil {
		return nil, false, nil
	}
	return s.Reduce(img), true, nil
}

// Reduce scales img to the sampler's size. The whole frame is stretched, not
// cropped, so every part of the view contributes.
func (s *Sampler) Reduce(img image.Image) *Raster {
	size := image.Point{s.Width, s.Height}
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Size() == size {
		return &Raster{n}
	}
	filter := s.Filter
	if filter.Support == 0 && filter.Kernel == nil {
		filter = imaging.NearestNeighbor
	}
	t0 := time.Now()
	r := imaging.Resize(img, size.X, size.Y, filter)
	log.Debug().
		Stringer("from", img.Bounds().Size()).
		Stringer("to", size).
		Dur("took", time.Since(t0)).
		Msg("resized frame")
	return &Raster{r}
}

// ParseFilter returns the resample filter for a name as used in
// configuration files.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "", "nearest":
		return imaging.NearestNeighbor, nil
	case "box":
		return imaging.Box, nil
	case "linear":
		return imaging.Linear, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	}
	return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter %q, need one of: nearest, box, linear, catmullrom, lanczos", name)
}
