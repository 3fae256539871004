// Package keypadadc samples the keypad resistor ladder with an ADS1115 on
// I²C, since the Raspberry Pi has no analog input of its own
package keypadadc

import (
	"errors"
	"fmt"
	"io"
	"math"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// FullScale is the largest sample Read returns, matching a 10-bit AVR ADC
const FullScale = 1023

var channels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

type sampler interface {
	Read() (analog.Sample, error)
}

type ADC struct {
	pin       sampler
	reference physic.ElectricPotential
	closers   []io.Closer
}

// Open binds one single-ended channel (0..3) of the ADS1115 at the default
// address on the named I²C bus. referenceVolts is the voltage of the
// ladder with no button pressed.
func Open(busName string, channel int, referenceVolts float64) (*ADC, error) {
	if channel < 0 || channel >= len(channels) {
		return nil, fmt.Errorf("keypadadc: channel %d out of range", channel)
	}
	if referenceVolts <= 0 {
		return nil, fmt.Errorf("keypadadc: invalid reference %vV", referenceVolts)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("keypadadc: open i2c %q: %w", busName, err)
	}
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("keypadadc: ads1115: %w", err)
	}
	reference := physic.ElectricPotential(referenceVolts * float64(physic.Volt))
	pin, err := dev.PinForChannel(channels[channel], reference, 860*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		_ = dev.Halt()
		_ = bus.Close()
		return nil, fmt.Errorf("keypadadc: channel %d: %w", channel, err)
	}
	return &ADC{pin: pin, reference: reference, closers: []io.Closer{bus}}, nil
}

// Read implements buskeypad.ADC
func (a *ADC) Read() (int, error) {
	s, err := a.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("keypadadc: %w", err)
	}
	return ScaleTo10Bit(s.V, a.reference), nil
}

func (a *ADC) Close() error {
	var errs []error
	if h, ok := a.pin.(interface{ Halt() error }); ok {
		errs = append(errs, h.Halt())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ScaleTo10Bit maps v from 0..reference onto 0..FullScale, clamping outside
func ScaleTo10Bit(v, reference physic.ElectricPotential) int {
	if reference <= 0 {
		return 0
	}
	scaled := math.Round(float64(v) / float64(reference) * FullScale)
	switch {
	case scaled < 0:
		return 0
	case scaled > FullScale:
		return FullScale
	}
	return int(scaled)
}
