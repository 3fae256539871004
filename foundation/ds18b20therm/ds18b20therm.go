// Package ds18b20therm talks to DS18B20 thermometers through the Linux w1
// sysfs interface (w1-gpio + w1_therm kernel modules).
//
// Reading a device's temperature file normally blocks for a whole
// conversion. Instead we trigger a bulk conversion on every bus master
// through therm_bulk_read, which returns immediately, and read the
// temperature files once the conversion time has passed. The kernel then
// returns the result of the bulk conversion without converting again.
package ds18b20therm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ThermometerDevicesRootPath where to look for DS18B20 devices
const ThermometerDevicesRootPath = "/sys/bus/w1/devices"

const (
	minValidCelsiusTemperature = -55
	maxValidCelsiusTemperature = 125
)

var ErrNoBusMaster = errors.New("ds18b20therm: no w1 bus master found")

type Bus struct {
	root    string
	masters []string
	devices map[string]string //configured id -> temperature file path
}

// Open finds the bus masters under root and sets the resolution of every
// listed device. ids may be in any form ParseAddress accepts.
func Open(root string, ids []string, resolutionBits int) (*Bus, error) {
	if root == "" {
		root = ThermometerDevicesRootPath
	}
	masters, err := filepath.Glob(filepath.Join(root, "w1_bus_master*", "therm_bulk_read"))
	if err != nil {
		return nil, fmt.Errorf("ds18b20therm: %w", err)
	}
	if len(masters) == 0 {
		return nil, ErrNoBusMaster
	}

	b := &Bus{root: root, masters: masters, devices: make(map[string]string, len(ids))}
	for _, id := range ids {
		addr, err := ParseAddress(id)
		if err != nil {
			return nil, fmt.Errorf("ds18b20therm: %w", err)
		}
		dir := filepath.Join(root, addr.SysfsName())
		if err := setResolution(dir, resolutionBits); err != nil {
			return nil, fmt.Errorf("ds18b20therm: %s: %w", id, err)
		}
		b.devices[id] = filepath.Join(dir, "temperature")
	}
	return b, nil
}

func setResolution(dir string, bits int) error {
	current, err := os.ReadFile(filepath.Join(dir, "resolution"))
	if err != nil {
		return fmt.Errorf("read resolution: %w", err)
	}
	if strings.TrimSpace(string(current)) == strconv.Itoa(bits) {
		return nil
	}
	if err := os.WriteFile(filepath.Join(dir, "resolution"), []byte(strconv.Itoa(bits)), 0); err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}
	return nil
}

// RequestTemperatures starts a conversion on every sensor of every bus master
func (b *Bus) RequestTemperatures() error {
	var errs []error
	for _, master := range b.masters {
		if err := os.WriteFile(master, []byte("trigger\n"), 0); err != nil {
			errs = append(errs, fmt.Errorf("trigger %s: %w", master, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) TempC(id string) (float64, error) {
	path, ok := b.devices[id]
	if !ok {
		return 0, fmt.Errorf("ds18b20therm: unknown sensor %q", id)
	}
	return ReadTemperatureInC(path)
}

func ReadTemperatureInC(temperaturePath string) (float64, error) {
	temperatureBytes, err := os.ReadFile(temperaturePath)
	if err != nil {
		return 0, err
	}
	return processTemperatureFileBytes(temperatureBytes)
}

// the kernel reports millidegrees Celsius, e.g. "65125\n"
func processTemperatureFileBytes(temperatureBytes []byte) (float64, error) {
	temperatureString := strings.TrimSpace(string(temperatureBytes))
	if temperatureString == "" {
		return 0, errors.New("we received an empty string from the temperature file")
	}

	milli, err := strconv.ParseInt(temperatureString, 10, 32)
	if err != nil {
		return 0, err
	}
	temperature := float64(milli) / 1000

	// Check if the temperature is valid and reasonable.
	if temperature < minValidCelsiusTemperature || temperature > maxValidCelsiusTemperature {
		return 0, fmt.Errorf("invalid temperature: %#v", temperature)
	}
	return temperature, nil
}

// EnumerateThermometers lists the sysfs names of the DS18B20 devices the
// kernel has found. It doesn't read them, a read would start a conversion.
func EnumerateThermometers(root string) ([]string, error) {
	if root == "" {
		root = ThermometerDevicesRootPath
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		addr, err := ParseAddress(entry.Name())
		if err != nil || addr.Family() != FamilyDS18B20 {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), "temperature")); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
