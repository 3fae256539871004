package appgluehwo

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconfiggopher"
	"github.com/jroedel/gluehwodisp/business/busclient/busstatus"
	"github.com/jroedel/gluehwodisp/foundation/logger"
)

const testConfigStr = `
{
  "sensors": [
    {"name": "T1", "address": "28-031724a5d2ff", "ledOffset": 0},
    {"name": "T2", "address": "28-031724fdc9ff", "ledOffset": 4}
  ],
  "sensorBus": {"driver": "sysfs", "resolutionBits": 9},
  "ledStrip": {"spiPort": "SPI0.0", "numPixels": 7, "brightness": 128},
  "pollInterval": "5ms",
  "bootMessage": {"duration": "0s"}
}`

type fakeBus struct {
	mu       sync.Mutex
	temps    map[string]float64
	requests int
}

func (b *fakeBus) RequestTemperatures() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	return nil
}

func (b *fakeBus) TempC(id string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.temps[id], nil
}

type syncStrip struct {
	mu     sync.Mutex
	pixels []busband.Color
	shows  int
}

func (s *syncStrip) SetPixelColor(index int, c busband.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.pixels) {
		s.pixels[index] = c
	}
}

func (s *syncStrip) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pixels)
}

func (s *syncStrip) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows++
	return nil
}

func (s *syncStrip) Len() int {
	return len(s.pixels)
}

func (s *syncStrip) snapshot() ([]busband.Color, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]busband.Color(nil), s.pixels...), s.shows
}

func writeConfig(t *testing.T) (*busconfiggopher.ConfigGopher, busconfiggopher.HardwareConfig) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gluehwo.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfigStr), 0o644))
	cg, err := busconfiggopher.New(path)
	require.NoError(t, err)
	config, err := cg.FetchConfig()
	require.NoError(t, err)
	return cg, config
}

func TestAppDrivesStrip(t *testing.T) {
	cg, config := writeConfig(t)
	var logs bytes.Buffer
	log, err := logger.NewWithOutput(&logs, "gluehwo_test", "info")
	require.NoError(t, err)

	bus := &fakeBus{temps: map[string]float64{
		"28-031724a5d2ff": 65,
		"28-031724fdc9ff": 58,
	}}
	strip := &syncStrip{pixels: make([]busband.Color, 7)}
	status, err := busstatus.New(log, config.Bands)
	require.NoError(t, err)

	app, err := New(Params{
		ConfigGopher: cg,
		Config:       config,
		Hardware:     &Hardware{Bus: bus, Strip: strip},
		Logger:       log,
		Status:       status,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx, ""))

	require.Eventually(t, func() bool {
		_, shows := strip.snapshot()
		return shows >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	app.Wait()

	pixels, _ := strip.snapshot()
	assert.Equal(t, []busband.Color{busband.Off, busband.Green, busband.Off, busband.Off, busband.Blue, busband.Green, busband.Off}, pixels)
	assert.Contains(t, logs.String(), "sensor=T1")
	bus.mu.Lock()
	assert.GreaterOrEqual(t, bus.requests, 3, "boot request plus one per delivered tick")
	bus.mu.Unlock()
}

func TestNewValidation(t *testing.T) {
	cg, config := writeConfig(t)
	log, err := logger.NewWithOutput(&bytes.Buffer{}, "gluehwo_test", "info")
	require.NoError(t, err)
	hw := &Hardware{Bus: &fakeBus{}, Strip: &syncStrip{pixels: make([]busband.Color, 7)}}

	_, err = New(Params{Config: config, Hardware: hw, Logger: log})
	assert.Error(t, err, "config gopher")
	_, err = New(Params{ConfigGopher: cg, Config: config, Logger: log})
	assert.Error(t, err, "hardware")
	_, err = New(Params{ConfigGopher: cg, Config: config, Hardware: hw})
	assert.Error(t, err, "logger")

	small := &Hardware{Bus: &fakeBus{}, Strip: &syncStrip{pixels: make([]busband.Color, 5)}}
	_, err = New(Params{ConfigGopher: cg, Config: config, Hardware: small, Logger: log})
	assert.Error(t, err, "second window doesn't fit")
}
