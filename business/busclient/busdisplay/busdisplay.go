// Package busdisplay writes temperatures and the boot countdown to the 16x2
// character display
package busdisplay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/business/busclient/buskeypad"
)

type Logger interface {
	Printf(string, ...interface{})
}

const (
	Columns = 16
	Rows    = 2

	// DegreeSymbol is the HD44780 ROM code for °, not a UTF-8 sequence
	DegreeSymbol = "\xdf"
)

type Display interface {
	Clear() error
	SetCursor(col, row int) error
	Print(text string) error
}

// Screen shows one sensor per row
type Screen struct {
	display Display
}

func NewScreen(display Display) (*Screen, error) {
	if display == nil {
		return nil, errors.New("screen construct: Display is required")
	}
	return &Screen{display: display}, nil
}

// FormatTemp renders a row like "T1: 65.00 °C"
func FormatTemp(sensor string, celsius float64) string {
	line := fmt.Sprintf("%s: %.2f %sC", sensor, celsius, DegreeSymbol)
	if len(line) > Columns {
		line = line[:Columns]
	}
	return line
}

// Consume implements busconversion.Consumer
func (s *Screen) Consume(readings []busconversion.Reading) error {
	if err := s.display.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for row, r := range readings {
		if row >= Rows {
			break
		}
		if err := s.display.SetCursor(0, row); err != nil {
			return fmt.Errorf("set cursor: %w", err)
		}
		if err := s.display.Print(FormatTemp(r.Sensor, r.Celsius)); err != nil {
			return fmt.Errorf("print row %d: %w", row, err)
		}
	}
	return nil
}

type ButtonReader interface {
	ReadButton(ctx context.Context) (buskeypad.Button, error)
}

const (
	DefaultBootText     = "GLUEHWODISP v1.0"
	DefaultBootDuration = 3 * time.Second
	bootRefresh         = 200 * time.Millisecond
)

// BootMessage is the splash shown at power-up with a seconds countdown.
// Pressing RIGHT skips it.
type BootMessage struct {
	display Display
	buttons ButtonReader
	logger  Logger

	Text     string
	Duration time.Duration
	// Refresh keeps the display from flickering
	Refresh time.Duration

	now func() time.Time
}

// NewBootMessage accepts a nil ButtonReader, the splash then can't be skipped
func NewBootMessage(display Display, buttons ButtonReader, logger Logger) (*BootMessage, error) {
	if display == nil {
		return nil, errors.New("boot message construct: Display is required")
	}
	if logger == nil {
		return nil, errors.New("boot message construct: Logger is required")
	}
	return &BootMessage{
		display:  display,
		buttons:  buttons,
		logger:   logger,
		Text:     DefaultBootText,
		Duration: DefaultBootDuration,
		Refresh:  bootRefresh,
		now:      time.Now,
	}, nil
}

// Show blocks for at most Duration. It reports whether the splash was skipped.
func (bm *BootMessage) Show(ctx context.Context) (bool, error) {
	deadline := bm.now().Add(bm.Duration)
	for {
		now := bm.now()
		if !now.Before(deadline) {
			return false, nil
		}

		if bm.buttons != nil {
			b, err := bm.buttons.ReadButton(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				bm.logger.Printf("[boot] reading keypad: %s", err)
			} else if b == buskeypad.Right {
				return true, nil
			}
		}

		if err := bm.draw(remainingSeconds(deadline.Sub(bm.now()))); err != nil {
			bm.logger.Printf("[boot] drawing splash: %s", err)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(bm.Refresh):
		}
	}
}

// remainingSeconds counts down 3, 2, 1 over a three second splash
func remainingSeconds(left time.Duration) int {
	if left < 0 {
		left = 0
	}
	return int(left/time.Second) + 1
}

func (bm *BootMessage) draw(secondsLeft int) error {
	if err := bm.display.Clear(); err != nil {
		return err
	}
	if err := bm.display.SetCursor(0, 0); err != nil {
		return err
	}
	if err := bm.display.Print(bm.Text); err != nil {
		return err
	}
	if err := bm.display.SetCursor(7, 1); err != nil {
		return err
	}
	return bm.display.Print(strconv.Itoa(secondsLeft))
}
