package luxmeter

import (
	"fmt"
)

// MAF is a moving average filter, for smoothing out per-cycle luma values.
// Until the history is full, only the values seen so far are averaged, so
// the first readings are not pulled towards zero.
type MAF struct {
	values []float64
	index  int
	count  int
	sum    float64
}

// NewMAF returns a new moving average filter with a history of given size.
func NewMAF(size int) (*MAF, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be > 0")
	}
	return &MAF{values: make([]float64, size)}, nil
}

// Update adds one value to the filter and returns the average over the
// history.
func (m *MAF) Update(v float64) (float64, error) {
	if len(m.values) == 0 {
		return 0, fmt.Errorf("invalid MAF, use NewMAF")
	}
	if m.count == len(m.values) {
		m.sum -= m.values[m.index]
	} else {
		m.count++
	}
	m.sum += v
	m.values[m.index] = v
	m.index++
	if m.index >= len(m.values) {
		m.index = 0
	}
	return m.sum / float64(m.count), nil
}

// Reset empties the history.
func (m *MAF) Reset() {
	for i := range m.values {
		m.values[i] = 0
	}
	m.index = 0
	m.count = 0
	m.sum = 0
}
