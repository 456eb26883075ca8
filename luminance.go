package luxmeter

import (
	"math"
)

// ITU-R BT.709 luma weights.
const (
	LumaR = 0.2126
	LumaG = 0.7152
	LumaB = 0.0722
)

// DefaultStride samples every 4th pixel.
const DefaultStride = 4

// Luma returns the relative luminance of one 8-bit RGB pixel, in [0,255].
func Luma(r, g, b uint8) float64 {
	return LumaR*float64(r) + LumaG*float64(g) + LumaB*float64(b)
}

// sampleCount is the number of pixels Estimate looks at for a raster of n
// pixels.
func sampleCount(n, stride int) int {
	if stride < 1 {
		return 0
	}
	return n / stride
}

// ValidateStride checks that a raster of width x height sampled with stride
// yields at least one pixel.
func ValidateStride(stride, width, height int) error {
	n := width * height
	if width <= 0 || height <= 0 {
		n = 0
	}
	if sampleCount(n, stride) == 0 {
		return &SamplingError{ErrEmptySample, stride, n}
	}
	return nil
}

// Estimate returns the mean relative luminance, in [0,255], of every
// stride-th pixel of r, starting at the first. A raster of n pixels
// contributes n/stride samples.
func Estimate(r *Raster, stride int) (float64, error) {
	var n int
	if r != nil && r.img != nil {
		b := r.img.Bounds()
		n = b.Dx() * b.Dy()
	}
	count := sampleCount(n, stride)
	if count == 0 {
		return 0, &SamplingError{ErrEmptySample, stride, n}
	}

	img := r.img
	w := img.Bounds().Dx()
	var sum float64
	for k := 0; k < count; k++ {
		i := k * stride
		x, y := i%w, i/w
		o := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
		p := img.Pix[o : o+3 : o+3]
		sum += Luma(p[0], p[1], p[2])
	}
	return sum / float64(count), nil
}

// Normalize maps a mean luma in [0,255] to an integer score in [0,100].
func Normalize(meanLuma float64) int {
	if math.IsNaN(meanLuma) {
		return 0
	}
	score := math.Round(meanLuma / 255 * 100)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}
