package busconfiggopher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
)

type HardwareConfig struct {
	Sensors      []SensorConfig     `json:"sensors"`
	SensorBus    SensorBusConfig    `json:"sensorBus"`
	LedStrip     LedStripConfig     `json:"ledStrip"`
	Display      DisplayConfig      `json:"display"`
	Keypad       KeypadConfig       `json:"keypad"`
	Bands        busband.Thresholds `json:"bands"`
	PollInterval Duration           `json:"pollInterval"`
	BootMessage  BootMessageConfig  `json:"bootMessage"`
	Log          LogConfig          `json:"log"`
	Mqtt         MqttConfig         `json:"mqtt"`
	Brewfather   BrewfatherConfig   `json:"brewfather"`
	//StatusAddr enables the http status endpoint when set, e.g. ":8080"
	StatusAddr string `json:"statusAddr"`
}

type SensorConfig struct {
	Name string `json:"name"`
	//Address is the 1-Wire ROM id, "28-031724a5d2ff" (sysfs) or "28FFD2A5241703D7" (ROM bytes)
	Address   string `json:"address"`
	LedOffset int    `json:"ledOffset"`
}

type SensorBusDriver string

const (
	DriverSysfs  SensorBusDriver = "sysfs"
	DriverPeriph SensorBusDriver = "periph"
)

type SensorBusConfig struct {
	Driver         SensorBusDriver `json:"driver"`
	ResolutionBits int             `json:"resolutionBits"`
	//BusName is the periph onewire bus name, empty for the first one
	BusName string `json:"busName"`
	//SysfsRoot defaults to /sys/bus/w1/devices
	SysfsRoot string `json:"sysfsRoot"`
}

type LedStripConfig struct {
	SpiPort        string `json:"spiPort"`
	NumPixels      int    `json:"numPixels"`
	Brightness     int    `json:"brightness"`
	ClearBeforeSet bool   `json:"clearBeforeSet"`
}

type DisplayConfig struct {
	Enabled   bool     `json:"enabled"`
	DataPins  []string `json:"dataPins"`
	RsPin     string   `json:"rsPin"`
	EnablePin string   `json:"enablePin"`
}

type KeypadConfig struct {
	Enabled        bool     `json:"enabled"`
	I2cBus         string   `json:"i2cBus"`
	Channel        int      `json:"channel"`
	ReferenceVolts float64  `json:"referenceVolts"`
	Tolerance      int      `json:"tolerance"`
	SampleGap      Duration `json:"sampleGap"`
	MaxAttempts    int      `json:"maxAttempts"`
}

type BootMessageConfig struct {
	Text     string   `json:"text"`
	Duration Duration `json:"duration"`
}

type LogDriver string

const (
	LogDriverSqlite LogDriver = "sqlite"
	LogDriverMysql  LogDriver = "mysql"
)

type LogConfig struct {
	Driver LogDriver `json:"driver"`
	Dsn    string    `json:"dsn"`
}

type MqttConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	ClientId string `json:"clientId"`
}

type BrewfatherConfig struct {
	LogId    string   `json:"logId"`
	Interval Duration `json:"interval"`
}

// Duration reads "750ms" style strings, and plain numbers as nanoseconds
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}
