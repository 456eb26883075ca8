package luxmeter

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"testing/quick"
)

func uniformRaster(w, h int, c color.NRGBA) *Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return NewRaster(img)
}

func TestLumaCoefficients(t *testing.T) {
	if LumaR != 0.2126 || LumaG != 0.7152 || LumaB != 0.0722 {
		t.Fatalf("luma weights %v %v %v, expected BT.709 0.2126 0.7152 0.0722", LumaR, LumaG, LumaB)
	}
	tests := []struct {
		r, g, b uint8
		want    float64
	}{
		{255, 0, 0, 0.2126 * 255},
		{0, 255, 0, 0.7152 * 255},
		{0, 0, 255, 0.0722 * 255},
		{10, 20, 30, 0.2126*10 + 0.7152*20 + 0.0722*30},
	}
	for _, tt := range tests {
		if got := Luma(tt.r, tt.g, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Luma(%d,%d,%d) = %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

// Property: for a uniform raster, the estimate is the luma of its color, for
// any stride that samples at least one pixel.
func TestEstimateUniform(t *testing.T) {
	f := func(r, g, b uint8, s uint16) bool {
		stride := int(s)%(100*100) + 1
		mean, err := Estimate(uniformRaster(100, 100, color.NRGBA{r, g, b, 255}), stride)
		if err != nil {
			t.Logf("estimate: %v", err)
			return false
		}
		want := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
		return math.Abs(mean-want) < 1e-9
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

// Property: any raster yields a score in [0,100].
func TestScoreBounded(t *testing.T) {
	f := func(pix []byte, s uint8) bool {
		img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
		for i := range img.Pix {
			if len(pix) > 0 {
				img.Pix[i] = pix[i%len(pix)]
			}
		}
		mean, err := Estimate(NewRaster(img), int(s)%100+1)
		if err != nil {
			t.Logf("estimate: %v", err)
			return false
		}
		score := Normalize(mean)
		return mean >= 0 && mean <= 255 && score >= 0 && score <= 100
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestEstimateStride(t *testing.T) {
	// A 4x1 raster, white at even pixels, black at odd ones.
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for x := 0; x < 4; x += 2 {
		img.SetNRGBA(x, 0, color.NRGBA{255, 255, 255, 255})
	}
	r := NewRaster(img)

	tests := []struct {
		stride int
		want   float64
	}{
		{1, 127.5},
		{2, 255},
		{3, 255}, // Only pixel 0.
		{4, 255},
	}
	for _, tt := range tests {
		got, err := Estimate(r, tt.stride)
		if err != nil {
			t.Fatalf("estimate with stride %d: %v", tt.stride, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("stride %d, got %v, want %v", tt.stride, got, tt.want)
		}
	}
}

func TestEstimateSubImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 2; y < 4; y++ {
		for x := 2; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.NRGBA)
	got, err := Estimate(NewRaster(sub), 1)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if math.Abs(got-255) > 1e-9 {
		t.Fatalf("sub image estimate %v, expected 255", got)
	}
}

func TestEstimateEmptySample(t *testing.T) {
	tests := []struct {
		name   string
		r      *Raster
		stride int
	}{
		{"stride beyond raster", uniformRaster(10, 10, color.NRGBA{255, 255, 255, 255}), 101},
		{"zero stride", uniformRaster(10, 10, color.NRGBA{}), 0},
		{"empty raster", NewRaster(image.NewNRGBA(image.Rect(0, 0, 0, 0))), 1},
		{"nil raster", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Estimate(tt.r, tt.stride)
			if !errors.Is(err, ErrEmptySample) {
				t.Fatalf("got %v, expected ErrEmptySample", err)
			}
			var serr *SamplingError
			if !errors.As(err, &serr) || serr.Stride != tt.stride {
				t.Fatalf("error %v is not a SamplingError for stride %d", err, tt.stride)
			}
		})
	}
}

func TestValidateStride(t *testing.T) {
	if err := ValidateStride(DefaultStride, DefaultWidth, DefaultHeight); err != nil {
		t.Fatalf("default stride: %v", err)
	}
	if err := ValidateStride(100*100, 100, 100); err != nil {
		t.Fatalf("stride equal to pixel count: %v", err)
	}
	if err := ValidateStride(100*100+1, 100, 100); !errors.Is(err, ErrEmptySample) {
		t.Fatalf("stride beyond pixel count, got %v", err)
	}
	if err := ValidateStride(1, 0, 100); !errors.Is(err, ErrEmptySample) {
		t.Fatalf("zero width, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		mean float64
		want int
	}{
		{0, 0},
		{255, 100},
		{127.5, 50},
		{63.0, 25},  // 24.7 rounds up.
		{62.0, 24},  // 24.3 rounds down.
		{-3, 0},
		{300, 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Normalize(tt.mean); got != tt.want {
			t.Errorf("Normalize(%v) = %d, want %d", tt.mean, got, tt.want)
		}
	}
}

func TestBlackAndWhite(t *testing.T) {
	tests := []struct {
		name string
		c    color.NRGBA
		want Category
	}{
		{"black", color.NRGBA{0, 0, 0, 255}, LowLight},
		{"white", color.NRGBA{255, 255, 255, 255}, DirectLight},
	}
	for _, tt := range tests {
		mean, err := Estimate(uniformRaster(100, 100, tt.c), DefaultStride)
		if err != nil {
			t.Fatalf("%s: estimate: %v", tt.name, err)
		}
		if got := Classify(Normalize(mean)); got != tt.want {
			t.Errorf("%s classified as %v, want %v", tt.name, got, tt.want)
		}
	}
}
