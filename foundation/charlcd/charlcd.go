// Package charlcd drives an HD44780 character display in 4-bit mode over
// GPIO pins
package charlcd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/hd44780"
)

// controller is the part of *hd44780.Dev we use
type controller interface {
	Reset() error
	SetCursor(line uint8, column uint8) error
	Print(data string) error
	Halt() error
}

type LCD struct {
	dev controller
}

// Open looks up the pins by name ("GPIO25", "P1_22", ...) and resets the
// controller. dataPins are D4 through D7. The periph host drivers must be
// initialized first.
func Open(dataPins []string, rsPin, enablePin string) (*LCD, error) {
	if len(dataPins) != 4 {
		return nil, fmt.Errorf("charlcd: need 4 data pins, got %d", len(dataPins))
	}
	data := make([]gpio.PinOut, 0, len(dataPins))
	for _, name := range dataPins {
		p, err := pin(name)
		if err != nil {
			return nil, err
		}
		data = append(data, p)
	}
	rs, err := pin(rsPin)
	if err != nil {
		return nil, err
	}
	e, err := pin(enablePin)
	if err != nil {
		return nil, err
	}

	dev, err := hd44780.New(data, rs, e)
	if err != nil {
		return nil, fmt.Errorf("charlcd: %w", err)
	}
	return newLCD(dev)
}

func pin(name string) (gpio.PinOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("charlcd: no gpio pin %q", name)
	}
	return p, nil
}

func newLCD(dev controller) (*LCD, error) {
	if dev == nil {
		return nil, errors.New("charlcd: controller is required")
	}
	if err := dev.Reset(); err != nil {
		return nil, fmt.Errorf("charlcd: reset: %w", err)
	}
	return &LCD{dev: dev}, nil
}

// Clear blanks the display and homes the cursor. hd44780's Halt sends the
// clear-display instruction.
func (l *LCD) Clear() error {
	return l.dev.Halt()
}

// SetCursor takes the column first, hd44780 takes the line first
func (l *LCD) SetCursor(col, row int) error {
	if col < 0 || row < 0 || col > 255 || row > 255 {
		return fmt.Errorf("charlcd: cursor %d,%d out of range", col, row)
	}
	return l.dev.SetCursor(uint8(row), uint8(col))
}

func (l *LCD) Print(text string) error {
	return l.dev.Print(text)
}

// Close leaves the display blank
func (l *LCD) Close() error {
	return l.dev.Halt()
}
