package appgluehwo

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/host/v3"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconfiggopher"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/business/busclient/busdisplay"
	"github.com/jroedel/gluehwodisp/business/busclient/buskeypad"
	"github.com/jroedel/gluehwodisp/foundation/charlcd"
	"github.com/jroedel/gluehwodisp/foundation/ds18b20therm"
	"github.com/jroedel/gluehwodisp/foundation/keypadadc"
	"github.com/jroedel/gluehwodisp/foundation/ledstrip"
	"github.com/jroedel/gluehwodisp/foundation/onewirebus"
)

// Hardware is everything the app drives. Display and Keypad are nil when
// disabled in the config.
type Hardware struct {
	Bus     busconversion.TempBus
	Strip   busband.Strip
	Display busdisplay.Display
	Keypad  busdisplay.ButtonReader

	closers []io.Closer
}

// Close releases the devices in reverse order of opening
func (h *Hardware) Close() error {
	if h == nil {
		return nil
	}
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i].Close())
	}
	h.closers = nil
	return errors.Join(errs...)
}

func (h *Hardware) addCloser(c io.Closer) {
	h.closers = append(h.closers, c)
}

// OpenHardware initializes the periph host drivers and opens every device
// the config enables. On error whatever was opened is closed again.
func OpenHardware(config busconfiggopher.HardwareConfig, logger Logger) (_ *Hardware, reterr error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	for _, failure := range state.Failed {
		logger.Printf("[hardware] periph driver %s failed: %s", failure.D, failure.Err)
	}

	hw := &Hardware{}
	defer func() {
		if reterr != nil {
			_ = hw.Close()
		}
	}()

	ids := make([]string, 0, len(config.Sensors))
	for _, s := range config.Sensors {
		ids = append(ids, s.Address)
	}
	switch config.SensorBus.Driver {
	case busconfiggopher.DriverPeriph:
		bus, err := onewirebus.Open(config.SensorBus.BusName, ids, config.SensorBus.ResolutionBits)
		if err != nil {
			return nil, err
		}
		hw.Bus = bus
		hw.addCloser(bus)
	default:
		bus, err := ds18b20therm.Open(config.SensorBus.SysfsRoot, ids, config.SensorBus.ResolutionBits)
		if err != nil {
			return nil, err
		}
		hw.Bus = bus
	}
	logger.Printf("[hardware] %d sensor(s) on the %s bus at %d bits", len(ids), config.SensorBus.Driver, config.SensorBus.ResolutionBits)

	strip, closer, err := ledstrip.OpenSPI(config.LedStrip.SpiPort, config.LedStrip.NumPixels, config.LedStrip.Brightness)
	if err != nil {
		return nil, err
	}
	hw.Strip = strip
	hw.addCloser(closer)

	if config.Display.Enabled {
		lcd, err := charlcd.Open(config.Display.DataPins, config.Display.RsPin, config.Display.EnablePin)
		if err != nil {
			return nil, err
		}
		hw.Display = lcd
		hw.addCloser(lcd)
	}

	if config.Keypad.Enabled {
		adc, err := keypadadc.Open(config.Keypad.I2cBus, config.Keypad.Channel, config.Keypad.ReferenceVolts)
		if err != nil {
			return nil, err
		}
		hw.addCloser(adc)
		kp, err := buskeypad.New(adc, config.Keypad.Tolerance, config.Keypad.SampleGap.Duration, config.Keypad.MaxAttempts)
		if err != nil {
			return nil, err
		}
		hw.Keypad = kp
	}

	return hw, nil
}
