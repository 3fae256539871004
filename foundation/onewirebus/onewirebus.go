// Package onewirebus drives DS18B20 thermometers through a periph 1-Wire bus
// (a DS2483 bridge or the bitbang driver) instead of the kernel w1 stack
package onewirebus

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ds18b20"

	"github.com/jroedel/gluehwodisp/foundation/ds18b20therm"
)

const (
	cmdSkipROM     = 0xcc
	cmdConvertTemp = 0x44
)

type thermometer interface {
	LastTemp() (physic.Temperature, error)
}

type Bus struct {
	bus     onewire.Bus
	closer  io.Closer
	devices map[string]thermometer
}

// Open opens the named periph 1-Wire bus, empty for the first one, and binds
// every listed sensor id at the given resolution. The periph host drivers
// must be initialized first.
func Open(name string, ids []string, resolutionBits int) (*Bus, error) {
	bc, err := onewirereg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("onewirebus: open %q: %w", name, err)
	}
	b, err := New(bc, ids, resolutionBits)
	if err != nil {
		_ = bc.Close()
		return nil, err
	}
	b.closer = bc
	return b, nil
}

func New(bus onewire.Bus, ids []string, resolutionBits int) (*Bus, error) {
	if bus == nil {
		return nil, errors.New("onewirebus: bus is required")
	}
	b := &Bus{bus: bus, devices: make(map[string]thermometer, len(ids))}
	for _, id := range ids {
		addr, err := ds18b20therm.ParseAddress(id)
		if err != nil {
			return nil, fmt.Errorf("onewirebus: %w", err)
		}
		dev, err := ds18b20.New(bus, onewire.Address(addr.Uint64()), resolutionBits)
		if err != nil {
			return nil, fmt.Errorf("onewirebus: sensor %s: %w", id, err)
		}
		b.devices[id] = dev
	}
	return b, nil
}

// RequestTemperatures broadcasts a convert command and returns without
// waiting. The strong pullup powers parasitic probes through the conversion.
func (b *Bus) RequestTemperatures() error {
	if err := b.bus.Tx([]byte{cmdSkipROM, cmdConvertTemp}, nil, onewire.StrongPullup); err != nil {
		return fmt.Errorf("onewirebus: convert: %w", err)
	}
	return nil
}

func (b *Bus) TempC(id string) (float64, error) {
	dev, ok := b.devices[id]
	if !ok {
		return 0, fmt.Errorf("onewirebus: unknown sensor %q", id)
	}
	t, err := dev.LastTemp()
	if err != nil {
		return 0, fmt.Errorf("onewirebus: %s: %w", id, err)
	}
	return celsius(t), nil
}

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Enumerate searches the bus and returns the DS18B20 ROM ids on it
func Enumerate(bus onewire.Bus) ([]ds18b20therm.Address, error) {
	addrs, err := bus.Search(false)
	if err != nil {
		return nil, fmt.Errorf("onewirebus: search: %w", err)
	}
	var found []ds18b20therm.Address
	for _, a := range addrs {
		addr := ds18b20therm.AddressFromUint64(uint64(a))
		if addr.Family() == ds18b20therm.FamilyDS18B20 {
			found = append(found, addr)
		}
	}
	return found, nil
}
