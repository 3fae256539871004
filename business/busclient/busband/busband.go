// Package busband maps a temperature to one of five serving bands and paints
// the matching pattern onto a 3-pixel window of the indicator strip
package busband

import (
	"fmt"

	"github.com/jroedel/gluehwodisp/foundation/ledstrip"
)

type Color = ledstrip.Color

var (
	Off   = ledstrip.RGB(0, 0, 0)
	Red   = ledstrip.RGB(255, 0, 0)
	Green = ledstrip.RGB(0, 255, 0)
	Blue  = ledstrip.RGB(0, 0, 255)
)

type Band int

const (
	TooCold Band = iota + 1
	SlightlyCold
	Optimal
	SlightlyHot
	TooHot
)

func (b Band) String() string {
	switch b {
	case TooCold:
		return "too cold"
	case SlightlyCold:
		return "slightly too cold"
	case Optimal:
		return "optimal"
	case SlightlyHot:
		return "slightly too hot"
	case TooHot:
		return "too hot"
	default:
		return ""
	}
}

// Thresholds are the lower bounds (in °C) of bands 2 through 5
type Thresholds struct {
	SlightlyCold float64 `json:"slightlyCold"`
	Optimal      float64 `json:"optimal"`
	SlightlyHot  float64 `json:"slightlyHot"`
	TooHot       float64 `json:"tooHot"`
}

var DefaultThresholds = Thresholds{
	SlightlyCold: 57,
	Optimal:      63,
	SlightlyHot:  67,
	TooHot:       70,
}

func (th Thresholds) Validate() error {
	if !(th.SlightlyCold < th.Optimal && th.Optimal < th.SlightlyHot && th.SlightlyHot < th.TooHot) {
		return fmt.Errorf("band thresholds must be strictly ascending: %+v", th)
	}
	return nil
}

// Band evaluates low to high, first match wins. NaN fails every comparison
// and therefore ends up TooHot.
func (th Thresholds) Band(t float64) Band {
	switch {
	case t < th.SlightlyCold:
		return TooCold
	case t < th.Optimal:
		return SlightlyCold
	case t < th.SlightlyHot:
		return Optimal
	case t < th.TooHot:
		return SlightlyHot
	default:
		return TooHot
	}
}

// Pixel is one lit element of the strip
type Pixel struct {
	Index int
	Color Color
}

// Pattern returns the pixels lit for a band, relative to offset
func (b Band) Pattern(offset int) []Pixel {
	switch b {
	case TooCold:
		return []Pixel{{offset + 0, Blue}}
	case SlightlyCold:
		return []Pixel{{offset + 0, Blue}, {offset + 1, Green}}
	case Optimal:
		return []Pixel{{offset + 1, Green}}
	case SlightlyHot:
		return []Pixel{{offset + 1, Green}, {offset + 2, Red}}
	default:
		return []Pixel{{offset + 2, Red}}
	}
}

// Classify is Band followed by Pattern using the default thresholds
func Classify(t float64, offset int) []Pixel {
	return DefaultThresholds.Band(t).Pattern(offset)
}

// WindowSize is the number of strip elements one sensor owns
const WindowSize = 3

// Strip is the indicator segment. SetPixelColor never clears other pixels.
type Strip interface {
	SetPixelColor(index int, c Color)
	Clear()
	Show() error
	Len() int
}

// Apply paints pixels on the strip without touching anything else
func Apply(strip Strip, pixels []Pixel) {
	for _, p := range pixels {
		strip.SetPixelColor(p.Index, p.Color)
	}
}
