package busband

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
)

type memStrip struct {
	pixels []Color
	shows  int
}

func newMemStrip(n int) *memStrip {
	return &memStrip{pixels: make([]Color, n)}
}

func (m *memStrip) SetPixelColor(index int, c Color) {
	if index < 0 || index >= len(m.pixels) {
		return
	}
	m.pixels[index] = c
}

func (m *memStrip) Clear() {
	for i := range m.pixels {
		m.pixels[i] = Off
	}
}

func (m *memStrip) Show() error {
	m.shows++
	return nil
}

func (m *memStrip) Len() int {
	return len(m.pixels)
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		temp float64
		want []Pixel
	}{
		{-127, []Pixel{{0, Blue}}},
		{56.999, []Pixel{{0, Blue}}},
		{57.0, []Pixel{{0, Blue}, {1, Green}}},
		{62.999, []Pixel{{0, Blue}, {1, Green}}},
		{63.0, []Pixel{{1, Green}}},
		{66.999, []Pixel{{1, Green}}},
		{67.0, []Pixel{{1, Green}, {2, Red}}},
		{69.999, []Pixel{{1, Green}, {2, Red}}},
		{70.0, []Pixel{{2, Red}}},
		{85, []Pixel{{2, Red}}},
	}
	for _, tt := range tests {
		got := Classify(tt.temp, 0)
		assert.Equal(t, tt.want, got, "Classify(%v, 0)", tt.temp)
	}
}

func TestClassifyOffset(t *testing.T) {
	assert.Equal(t, []Pixel{{5, Green}}, Classify(65.0, 4))
	assert.Equal(t, []Pixel{{4, Blue}, {5, Green}}, Classify(58.0, 4))
}

func TestBandsPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(57))
	bands := []Band{TooCold, SlightlyCold, Optimal, SlightlyHot, TooHot}
	for i := 0; i < 10_000; i++ {
		temp := -50 + rng.Float64()*200

		matches := 0
		th := DefaultThresholds
		lower := []float64{math.Inf(-1), th.SlightlyCold, th.Optimal, th.SlightlyHot, th.TooHot}
		upper := []float64{th.SlightlyCold, th.Optimal, th.SlightlyHot, th.TooHot, math.Inf(1)}
		var inInterval Band
		for j := range bands {
			if temp >= lower[j] && temp < upper[j] {
				matches++
				inInterval = bands[j]
			}
		}
		require.Equal(t, 1, matches, "%v must fall in exactly one interval", temp)
		require.Equal(t, inInterval, th.Band(temp), "band of %v", temp)
	}
}

func TestBandNaN(t *testing.T) {
	assert.Equal(t, TooHot, DefaultThresholds.Band(math.NaN()))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.Error(t, Thresholds{SlightlyCold: 60, Optimal: 60, SlightlyHot: 67, TooHot: 70}.Validate())
	assert.Error(t, Thresholds{}.Validate())
}

func readings(t1, t2 float64) []busconversion.Reading {
	return []busconversion.Reading{
		{Sensor: "T1", Celsius: t1},
		{Sensor: "T2", Celsius: t2},
	}
}

func TestIndicatorTwoSensors(t *testing.T) {
	strip := newMemStrip(7)
	ind, err := NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 0, "T2": 4}, true)
	require.NoError(t, err)

	require.NoError(t, ind.Consume(readings(65.0, 58.0)))
	assert.Equal(t, []Color{Off, Green, Off, Off, Blue, Green, Off}, strip.pixels)
	assert.Equal(t, 1, strip.shows)
}

func TestIndicatorClearBeforeSet(t *testing.T) {
	strip := newMemStrip(7)
	ind, err := NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 0, "T2": 4}, true)
	require.NoError(t, err)

	require.NoError(t, ind.Consume(readings(50, 75)))
	require.NoError(t, ind.Consume(readings(65, 65)))
	assert.Equal(t, []Color{Off, Green, Off, Off, Off, Green, Off}, strip.pixels)
}

func TestIndicatorKeepsStalePixels(t *testing.T) {
	strip := newMemStrip(7)
	strip.pixels[3] = Red
	ind, err := NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 0, "T2": 4}, false)
	require.NoError(t, err)

	require.NoError(t, ind.Consume(readings(50, 75)))
	require.NoError(t, ind.Consume(readings(65, 65)))
	// blue at 0 and red at 6 survive from the first tick, index 3 is never touched
	assert.Equal(t, []Color{Blue, Green, Off, Red, Off, Green, Red}, strip.pixels)
}

func TestIndicatorIgnoresUnknownSensor(t *testing.T) {
	strip := newMemStrip(7)
	ind, err := NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 0}, true)
	require.NoError(t, err)

	require.NoError(t, ind.Consume(readings(65, 65)))
	assert.Equal(t, []Color{Off, Green, Off, Off, Off, Off, Off}, strip.pixels)
}

func TestNewIndicatorValidation(t *testing.T) {
	strip := newMemStrip(7)
	_, err := NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 0, "T2": 2}, true)
	assert.Error(t, err, "overlapping windows")

	_, err = NewIndicator(strip, DefaultThresholds, map[string]int{"T1": 5}, true)
	assert.Error(t, err, "window past the end of the strip")

	_, err = NewIndicator(nil, DefaultThresholds, nil, true)
	assert.Error(t, err)

	_, err = NewIndicator(strip, Thresholds{}, nil, true)
	assert.Error(t, err)
}
