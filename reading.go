// Package luxmeter turns camera frames into light readings: a 0-100 score from
// the mean relative luminance of a reduced frame, classified into a light
// category with plants that suit it.
package luxmeter

import (
	"fmt"
	"time"
)

// Reading is one classified light measurement. Category is always
// Classify(Score).
type Reading struct {
	Score     int // 0-100.
	Category  Category
	SampledAt time.Time
	Seq       uint64 // Cycle sequence number within a loop, starting at 1.
}

// NewReading clamps score to [0,100] and classifies it.
func NewReading(score int, at time.Time) Reading {
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return Reading{
		Score:     score,
		Category:  Classify(score),
		SampledAt: at,
	}
}

// String returns a one-line summary, eg "42 Indirect Light".
func (r Reading) String() string {
	return fmt.Sprintf("%d %s", r.Score, r.Category)
}
