// Package buskeypad decodes the 5-button resistor ladder of the LCD keypad
// shield. All buttons share one analog input; each one pulls it to a
// different voltage.
package buskeypad

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Button int

const (
	Right Button = iota
	Up
	Down
	Left
	Select
	None
)

func (b Button) String() string {
	switch b {
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Select:
		return "select"
	case None:
		return "none"
	default:
		return ""
	}
}

// ADC returns a 10-bit sample (0..1023) of the keypad line
type ADC interface {
	Read() (int, error)
}

// Decode maps a 10-bit sample to a button
func Decode(sample int) Button {
	//nothing pressed is by far the most common case
	if sample > 1000 {
		return None
	}
	switch {
	case sample < 50:
		return Right
	case sample < 195:
		return Up
	case sample < 380:
		return Down
	case sample < 555:
		return Left
	case sample < 790:
		return Select
	}
	return None
}

var ErrUnstable = errors.New("keypad: samples never settled")

const (
	DefaultTolerance   = 10
	DefaultSampleGap   = 5 * time.Millisecond
	DefaultMaxAttempts = 50
)

type Keypad struct {
	adc         ADC
	tolerance   int
	sampleGap   time.Duration
	maxAttempts int
}

// New returns a keypad reader; zero values fall back to the defaults
func New(adc ADC, tolerance int, sampleGap time.Duration, maxAttempts int) (*Keypad, error) {
	if adc == nil {
		return nil, errors.New("keypad construct: ADC is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if sampleGap <= 0 {
		sampleGap = DefaultSampleGap
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Keypad{adc: adc, tolerance: tolerance, sampleGap: sampleGap, maxAttempts: maxAttempts}, nil
}

// ReadButton samples the line twice, sampleGap apart, until both samples
// agree within the tolerance. It gives up with ErrUnstable after maxAttempts
// pairs, or when ctx is done.
func (k *Keypad) ReadButton(ctx context.Context) (Button, error) {
	for attempt := 0; attempt < k.maxAttempts; attempt++ {
		first, err := k.adc.Read()
		if err != nil {
			return None, fmt.Errorf("keypad: read: %w", err)
		}

		select {
		case <-ctx.Done():
			return None, ctx.Err()
		case <-time.After(k.sampleGap):
		}

		second, err := k.adc.Read()
		if err != nil {
			return None, fmt.Errorf("keypad: read: %w", err)
		}
		if abs(first-second) <= k.tolerance {
			return Decode(first), nil
		}
	}
	return None, ErrUnstable
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
