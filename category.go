package luxmeter

import (
	"fmt"
	"strings"
)

// Category is one of three fixed brightness classes.
type Category int

const (
	LowLight Category = iota
	IndirectLight
	DirectLight
)

// Score boundaries between categories. A score equal to a boundary belongs to
// the brighter category.
const (
	IndirectLightMin = 25
	DirectLightMin   = 60
)

// Profile is the static description of a category, with plants suited to it.
type Profile struct {
	Label       string
	Description string
	species     []string
}

// Species returns the recommended species, in order of preference. The
// returned slice is a copy.
func (p Profile) Species() []string {
	return append([]string(nil), p.species...)
}

// String returns the label with its description and species.
func (p Profile) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.Label, p.Description, strings.Join(p.species, ", "))
}

var profiles = [...]Profile{
	LowLight: {
		Label:       "Low Light",
		Description: "Deep shade or North window.",
		species:     []string{"Snake Plant", "ZZ Plant", "Pothos"},
	},
	IndirectLight: {
		Label:       "Indirect Light",
		Description: "Bright room, no direct rays.",
		species:     []string{"Monstera", "Calathea", "Philodendron"},
	},
	DirectLight: {
		Label:       "Direct Light",
		Description: "Full sun exposure.",
		species:     []string{"Cactus", "Succulents", "Bird of Paradise"},
	},
}

// Classify maps a 0-100 score to its category.
func Classify(score int) Category {
	switch {
	case score < IndirectLightMin:
		return LowLight
	case score < DirectLightMin:
		return IndirectLight
	default:
		return DirectLight
	}
}

// Profile returns the static profile for c. Unknown values get LowLight's
// profile.
func (c Category) Profile() Profile {
	if c < LowLight || c > DirectLight {
		return profiles[LowLight]
	}
	return profiles[c]
}

// String returns the human-readable label, eg "Indirect Light".
func (c Category) String() string {
	if c < LowLight || c > DirectLight {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return profiles[c].Label
}
