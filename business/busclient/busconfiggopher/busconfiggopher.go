// Package busconfiggopher loads and validates the hardware config
package busconfiggopher

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/business/busclient/busdisplay"
	"github.com/jroedel/gluehwodisp/foundation/ds18b20therm"
)

const DefaultSysfsRoot = ds18b20therm.ThermometerDevicesRootPath

// DefaultConfig is the stock build: two probes at 12 bits,
// a 7 pixel strip at half brightness with windows at 0 and 4
func DefaultConfig() HardwareConfig {
	return HardwareConfig{
		SensorBus: SensorBusConfig{
			Driver:         DriverSysfs,
			ResolutionBits: busconversion.MaxResolutionBits,
			SysfsRoot:      DefaultSysfsRoot,
		},
		LedStrip: LedStripConfig{
			NumPixels:      7,
			Brightness:     128,
			ClearBeforeSet: true,
		},
		Keypad: KeypadConfig{
			ReferenceVolts: 5,
			Tolerance:      10,
			SampleGap:      Duration{5 * time.Millisecond},
			MaxAttempts:    50,
		},
		Bands:        busband.DefaultThresholds,
		PollInterval: Duration{10 * time.Millisecond},
		BootMessage: BootMessageConfig{
			Text:     busdisplay.DefaultBootText,
			Duration: Duration{busdisplay.DefaultBootDuration},
		},
		Brewfather: BrewfatherConfig{
			Interval: Duration{15 * time.Minute},
		},
	}
}

type ConfigGopher struct {
	localConfigPath string
}

func New(localConfigPath string) (*ConfigGopher, error) {
	if localConfigPath == "" {
		return nil, fmt.Errorf("ConfigGopher: we require a localConfigPath")
	}
	return &ConfigGopher{localConfigPath: localConfigPath}, nil
}

func (cg *ConfigGopher) Path() string {
	return cg.localConfigPath
}

func (cg *ConfigGopher) FetchConfig() (HardwareConfig, error) {
	config, err := cg.fetchConfigFromFile()
	if err != nil {
		return HardwareConfig{}, fmt.Errorf("fetch config: %w", err)
	}
	if err := ValidateConfig(config); err != nil {
		return HardwareConfig{}, fmt.Errorf("validate config from local file: %w", err)
	}
	return config, nil
}

func (cg *ConfigGopher) fetchConfigFromFile() (HardwareConfig, error) {
	file, err := os.Open(cg.localConfigPath)
	if err != nil {
		return HardwareConfig{}, err
	}
	defer file.Close()

	return DecodeConfig(bufio.NewReader(file))
}

// DecodeConfig overlays the JSON document on top of DefaultConfig
func DecodeConfig(rd *bufio.Reader) (HardwareConfig, error) {
	config := DefaultConfig()
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		return HardwareConfig{}, err
	}
	return config, nil
}

func ValidateConfig(config HardwareConfig) error {
	var errs []error

	if len(config.Sensors) == 0 || len(config.Sensors) > busdisplay.Rows {
		errs = append(errs, fmt.Errorf("we need 1 to %d sensors, got %d", busdisplay.Rows, len(config.Sensors)))
	}
	//make sure there aren't two sensors with the same name or address
	names := make([]string, 0, len(config.Sensors))
	addresses := make([]string, 0, len(config.Sensors))
	offsets := make(map[string]int, len(config.Sensors))
	for _, sensor := range config.Sensors {
		if sensor.Name == "" || sensor.Address == "" {
			errs = append(errs, fmt.Errorf("sensor %+v: name and address are required", sensor))
			continue
		}
		if slices.Contains(names, sensor.Name) {
			errs = append(errs, fmt.Errorf("duplicate sensor name %q", sensor.Name))
		}
		if _, err := ds18b20therm.ParseAddress(sensor.Address); err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", sensor.Name, err))
		}
		if slices.Contains(addresses, sensor.Address) {
			errs = append(errs, fmt.Errorf("duplicate sensor address %q", sensor.Address))
		}
		names = append(names, sensor.Name)
		addresses = append(addresses, sensor.Address)
		offsets[sensor.Name] = sensor.LedOffset
	}
	if err := validateWindows(offsets, config.LedStrip.NumPixels); err != nil {
		errs = append(errs, err)
	}

	switch config.SensorBus.Driver {
	case DriverSysfs, DriverPeriph:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor bus driver %q", config.SensorBus.Driver))
	}
	if _, err := busconversion.WaitDuration(config.SensorBus.ResolutionBits); err != nil {
		errs = append(errs, err)
	}

	if config.LedStrip.Brightness < 0 || config.LedStrip.Brightness > 255 {
		errs = append(errs, fmt.Errorf("led brightness must be 0..255, got %d", config.LedStrip.Brightness))
	}
	if err := config.Bands.Validate(); err != nil {
		errs = append(errs, err)
	}
	if config.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("pollInterval must be positive"))
	}
	if config.BootMessage.Duration.Duration < 0 {
		errs = append(errs, errors.New("bootMessage duration can't be negative"))
	}

	if config.Display.Enabled {
		if len(config.Display.DataPins) != 4 || config.Display.RsPin == "" || config.Display.EnablePin == "" {
			errs = append(errs, errors.New("display needs 4 data pins, an rs pin and an enable pin"))
		}
	}
	if config.Keypad.Enabled && config.Keypad.ReferenceVolts <= 0 {
		errs = append(errs, errors.New("keypad referenceVolts must be positive"))
	}

	switch config.Log.Driver {
	case "":
	case LogDriverSqlite, LogDriverMysql:
		if config.Log.Dsn == "" {
			errs = append(errs, fmt.Errorf("log driver %s needs a dsn", config.Log.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown log driver %q", config.Log.Driver))
	}
	if config.Mqtt.Broker != "" && config.Mqtt.Topic == "" {
		errs = append(errs, errors.New("mqtt needs a topic"))
	}
	if config.Brewfather.LogId != "" && config.Brewfather.Interval.Duration <= 0 {
		errs = append(errs, errors.New("brewfather interval must be positive"))
	}

	return errors.Join(errs...)
}

func validateWindows(offsets map[string]int, numPixels int) error {
	used := make(map[int]string)
	for name, offset := range offsets {
		if offset < 0 || offset+busband.WindowSize > numPixels {
			return fmt.Errorf("led window of %s at %d doesn't fit %d pixels", name, offset, numPixels)
		}
		for i := offset; i < offset+busband.WindowSize; i++ {
			if other, ok := used[i]; ok {
				return fmt.Errorf("led windows of %s and %s overlap", other, name)
			}
			used[i] = name
		}
	}
	return nil
}

// Offsets maps sensor names to the first pixel of their window
func (config HardwareConfig) Offsets() map[string]int {
	offsets := make(map[string]int, len(config.Sensors))
	for _, sensor := range config.Sensors {
		offsets[sensor.Name] = sensor.LedOffset
	}
	return offsets
}

func AreConfigsEqual(a HardwareConfig, b HardwareConfig) bool {
	ha, hb := hashConfig(a), hashConfig(b)
	return ha != nil && bytes.Equal(ha, hb)
}

func hashConfig(c HardwareConfig) []byte {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(c)
	if err != nil {
		return nil
	}
	return b.Bytes()
}
