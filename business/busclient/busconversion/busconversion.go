// Package busconversion schedules DS18B20 temperature conversions without
// blocking the control loop.
//
// A conversion is started on every sensor of the bus at once. The scheduler
// only reads the results once the resolution-dependent conversion time has
// elapsed, hands them to every registered consumer and immediately starts
// the next conversion.
package busconversion

import (
	"errors"
	"fmt"
	"time"
)

type Logger interface {
	Printf(string, ...interface{})
}

// DisconnectedC is what a DS18B20 read yields when the probe can't be reached.
// It is delivered to consumers like any other value.
const DisconnectedC = -127.0

const (
	MinResolutionBits = 9
	MaxResolutionBits = 12

	// baseConversionMs is the conversion time at MaxResolutionBits
	baseConversionMs = 750
)

var ErrBadResolution = fmt.Errorf("resolution must be between %d and %d bits", MinResolutionBits, MaxResolutionBits)

// WaitDuration is the conversion time for the given resolution. It halves
// for every bit below the maximum, using whole milliseconds like the sensor
// datasheet does (9 bits -> 93ms).
func WaitDuration(resolutionBits int) (time.Duration, error) {
	if resolutionBits < MinResolutionBits || resolutionBits > MaxResolutionBits {
		return 0, ErrBadResolution
	}
	ms := baseConversionMs / (1 << (MaxResolutionBits - resolutionBits))
	return time.Duration(ms) * time.Millisecond, nil
}

// IsReady is true once strictly more than wait has passed since last
func IsReady(now, last time.Time, wait time.Duration) bool {
	return now.Sub(last) > wait
}

// TempBus is the temperature sensor bus. It must already be configured for
// non-blocking conversions.
type TempBus interface {
	// RequestTemperatures starts a conversion on every sensor and returns immediately
	RequestTemperatures() error
	// TempC returns the result of the last completed conversion of a sensor
	TempC(sensorID string) (float64, error)
}

// Sensor is one statically configured probe
type Sensor struct {
	Name string
	ID   string
}

type Reading struct {
	Sensor    string
	Celsius   float64
	Timestamp time.Time
	// Err is set when the read failed; Celsius is DisconnectedC in that case
	Err error
}

type Consumer interface {
	Consume(readings []Reading) error
}

type ConsumerFunc func(readings []Reading) error

func (f ConsumerFunc) Consume(readings []Reading) error {
	return f(readings)
}

type namedConsumer struct {
	name string
	c    Consumer
}

type Scheduler struct {
	bus     TempBus
	sensors []Sensor
	wait    time.Duration
	logger  Logger

	consumers []namedConsumer
	// OnConsumerError is called for every consumer failure, after logging
	OnConsumerError func(consumer string, err error)

	armed       bool
	lastRequest time.Time
}

func New(bus TempBus, sensors []Sensor, resolutionBits int, logger Logger) (*Scheduler, error) {
	if bus == nil {
		return nil, errors.New("scheduler construct: TempBus is required")
	}
	if logger == nil {
		return nil, errors.New("scheduler construct: Logger is required")
	}
	if len(sensors) == 0 {
		return nil, errors.New("scheduler construct: at least one sensor is required")
	}
	wait, err := WaitDuration(resolutionBits)
	if err != nil {
		return nil, fmt.Errorf("scheduler construct: %w", err)
	}
	return &Scheduler{
		bus:     bus,
		sensors: sensors,
		wait:    wait,
		logger:  logger,
	}, nil
}

// AddConsumer registers a consumer. Consumers run in registration order.
func (s *Scheduler) AddConsumer(name string, c Consumer) {
	s.consumers = append(s.consumers, namedConsumer{name: name, c: c})
}

func (s *Scheduler) Wait() time.Duration {
	return s.wait
}

// LastRequest returns the time of the last conversion request and whether
// one was made yet
func (s *Scheduler) LastRequest() (time.Time, bool) {
	return s.lastRequest, s.armed
}

// RequestConversion starts a conversion on all sensors and records now as the
// request time. A bus error is logged; the timestamp is recorded regardless
// so the next read happens one wait later.
func (s *Scheduler) RequestConversion(now time.Time) {
	if err := s.bus.RequestTemperatures(); err != nil {
		s.logger.Printf("[scheduler] requesting temperatures: %s", err)
	}
	s.lastRequest = now
	s.armed = true
}

// Tick is called repeatedly by the control loop. It reports whether readings
// were delivered.
func (s *Scheduler) Tick(now time.Time) bool {
	if !s.armed {
		s.RequestConversion(now)
		return false
	}
	if !IsReady(now, s.lastRequest, s.wait) {
		return false
	}

	readings := s.read(now)
	for _, nc := range s.consumers {
		if err := deliver(nc.c, append([]Reading(nil), readings...)); err != nil {
			s.logger.Printf("[scheduler] consumer %s: %s", nc.name, err)
			if s.OnConsumerError != nil {
				s.OnConsumerError(nc.name, err)
			}
		}
	}

	s.RequestConversion(now)
	return true
}

func (s *Scheduler) read(now time.Time) []Reading {
	readings := make([]Reading, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		r := Reading{Sensor: sensor.Name, Timestamp: now}
		t, err := s.bus.TempC(sensor.ID)
		if err != nil {
			r.Celsius = DisconnectedC
			r.Err = err
		} else {
			r.Celsius = t
		}
		readings = append(readings, r)
	}
	return readings
}

// deliver keeps a misbehaving consumer from taking the loop down with it
func deliver(c Consumer, readings []Reading) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.Consume(readings)
}
