// Package busclienttempdata handles the readings produced by the scheduler
// off the control loop. This includes:
// 1. storing readings locally
// 2. publishing every reading over MQTT
// 3. periodically sending temperature averages to brewfatherapi
package busclienttempdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/foundation/brewfatherapi"
)

type Logger interface {
	Printf(string, ...interface{})
}

type DB interface {
	Exec(query string, args ...any) (int64, error)
	Query(query string, params []any, scan func(rows *sql.Rows) error) error
}

type Publisher interface {
	Publish(subtopic string, payload any) error
}

type BrewfatherSender interface {
	SendTemperatureReading(ctx context.Context, reading brewfatherapi.TempReading) error
}

// ErrQueueFull is returned by Consume when Run can't keep up. The batch is dropped.
var ErrQueueFull = errors.New("temp handler: queue full, readings dropped")

const queueSize = 64

type Config struct {
	//required
	Logger     Logger
	Thresholds busband.Thresholds
	// Sensors in config order; the position decides the brewfather field
	Sensors []string

	//optional
	DB                 DB
	Publisher          Publisher
	Brewfather         BrewfatherSender
	BrewfatherInterval time.Duration
	DeviceName         string
}

type TempHandler struct {
	logger     Logger
	thresholds busband.Thresholds
	sensors    []string

	db         DB
	pub        Publisher
	bf         BrewfatherSender
	bfInterval time.Duration
	deviceName string

	//internal
	executionID string
	queue       chan []Temperature
}

func New(cfg Config) (*TempHandler, error) {
	if cfg.Logger == nil {
		return nil, errors.New("temp handler: logger is required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("temp handler: %w", err)
	}
	if cfg.Brewfather != nil {
		if cfg.DB == nil {
			return nil, errors.New("temp handler: brewfather needs the db for averages")
		}
		if cfg.BrewfatherInterval <= 0 {
			return nil, errors.New("temp handler: brewfather interval must be positive")
		}
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "gluehwo"
	}

	return &TempHandler{
		logger:      cfg.Logger,
		thresholds:  cfg.Thresholds,
		sensors:     cfg.Sensors,
		db:          cfg.DB,
		pub:         cfg.Publisher,
		bf:          cfg.Brewfather,
		bfInterval:  cfg.BrewfatherInterval,
		deviceName:  cfg.DeviceName,
		executionID: uuid.NewString(),
		queue:       make(chan []Temperature, queueSize),
	}, nil
}

func (th *TempHandler) ExecutionID() string {
	return th.executionID
}

// Enabled is false when there is nowhere to send readings
func (th *TempHandler) Enabled() bool {
	return th.db != nil || th.pub != nil
}

// Consume implements busconversion.Consumer. It never blocks; the readings
// are handled by Run.
func (th *TempHandler) Consume(readings []busconversion.Reading) error {
	temps := make([]Temperature, 0, len(readings))
	for _, r := range readings {
		temps = append(temps, Temperature{
			SensorName:          r.Sensor,
			Timestamp:           r.Timestamp,
			Celsius:             r.Celsius,
			Band:                th.thresholds.Band(r.Celsius),
			ReadFailed:          r.Err != nil,
			ExecutionIdentifier: th.executionID,
		})
	}
	select {
	case th.queue <- temps:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run handles queued readings until ctx is canceled
func (th *TempHandler) Run(ctx context.Context) error {
	var bfTick <-chan time.Time
	if th.bf != nil {
		tick := time.NewTicker(th.bfInterval)
		defer tick.Stop()
		bfTick = tick.C
	}
	th.logger.Printf("[tempdata] started with execution id %s", th.executionID)

	for {
		select {
		case temps := <-th.queue:
			th.handle(temps)
		case <-bfTick:
			if err := th.sendAvgToBrewfather(ctx); err != nil {
				th.logger.Printf("[tempdata] brewfather: %s", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (th *TempHandler) handle(temps []Temperature) {
	for _, temp := range temps {
		if th.db != nil {
			if err := th.create(temp); err != nil {
				th.logger.Printf("[tempdata] %s", err)
			}
		}
		if th.pub != nil {
			if err := th.pub.Publish(temp.SensorName, toMessage(temp)); err != nil {
				th.logger.Printf("[tempdata] publish %s: %s", temp.SensorName, err)
			}
		}
	}
}

func (th *TempHandler) sendAvgToBrewfather(ctx context.Context) error {
	avgs, err := th.queryUnsentAverages()
	if err != nil {
		return err
	}
	if len(avgs) == 0 {
		th.logger.Printf("[tempdata] no new readings for brewfather")
		return nil
	}

	reading := brewfatherapi.TempReading{
		DeviceName: th.deviceName,
		TempUnit:   brewfatherapi.Celsius,
		Temps:      make(map[brewfatherapi.TempType]float64, len(avgs)),
	}
	var maxId int64
	for _, avg := range avgs {
		maxId = max(maxId, avg.MaxId)
		tt, ok := th.tempType(avg.SensorName)
		if !ok {
			continue
		}
		reading.Temps[tt] = avg.Celsius
	}
	if len(reading.Temps) == 0 {
		return fmt.Errorf("none of %d sensors maps to a brewfather field", len(avgs))
	}

	if err := th.bf.SendTemperatureReading(ctx, reading); err != nil {
		return err
	}
	n, err := th.markSentToBrewfather(maxId)
	if err != nil {
		return err
	}
	th.logger.Printf("[tempdata] sent averages of %d rows to brewfather", n)
	return nil
}

func (th *TempHandler) tempType(sensor string) (brewfatherapi.TempType, bool) {
	for i, name := range th.sensors {
		if name == sensor {
			return brewfatherapi.TempTypeForSensor(i)
		}
	}
	return 0, false
}
