package busband

import (
	"errors"
	"fmt"

	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
)

// Indicator renders every sensor's band onto its own window of the strip.
//
// With clearBeforeSet the whole strip is blanked before the windows are
// painted. Without it, pixels that no band touches keep whatever colour
// they had on the previous tick.
type Indicator struct {
	strip          Strip
	thresholds     Thresholds
	offsets        map[string]int
	clearBeforeSet bool
}

func NewIndicator(strip Strip, thresholds Thresholds, offsets map[string]int, clearBeforeSet bool) (*Indicator, error) {
	if strip == nil {
		return nil, errors.New("indicator construct: Strip is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("indicator construct: %w", err)
	}
	used := make(map[int]string, len(offsets)*WindowSize)
	for sensor, offset := range offsets {
		if offset < 0 || offset+WindowSize > strip.Len() {
			return nil, fmt.Errorf("indicator construct: window of %s at %d doesn't fit a strip of %d", sensor, offset, strip.Len())
		}
		for i := offset; i < offset+WindowSize; i++ {
			if other, ok := used[i]; ok {
				return nil, fmt.Errorf("indicator construct: windows of %s and %s overlap at %d", other, sensor, i)
			}
			used[i] = sensor
		}
	}
	return &Indicator{
		strip:          strip,
		thresholds:     thresholds,
		offsets:        offsets,
		clearBeforeSet: clearBeforeSet,
	}, nil
}

// Consume implements busconversion.Consumer
func (ind *Indicator) Consume(readings []busconversion.Reading) error {
	if ind.clearBeforeSet {
		ind.strip.Clear()
	}
	for _, r := range readings {
		offset, ok := ind.offsets[r.Sensor]
		if !ok {
			continue
		}
		Apply(ind.strip, ind.thresholds.Band(r.Celsius).Pattern(offset))
	}
	return ind.strip.Show()
}
