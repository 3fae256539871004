package busclienttempdata

import (
	"time"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
)

type Temperature struct {
	SensorName string
	Timestamp  time.Time
	Celsius    float64
	Band       busband.Band
	// ReadFailed rows carry the disconnected placeholder and are left out of averages
	ReadFailed          bool
	DbAutoId            int64
	ExecutionIdentifier string
}

// Message is what we publish to MQTT for every reading
type Message struct {
	Sensor      string    `json:"sensor"`
	Celsius     float64   `json:"celsius"`
	Band        string    `json:"band"`
	ReadFailed  bool      `json:"readFailed,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionId string    `json:"executionId"`
}

func toMessage(t Temperature) Message {
	return Message{
		Sensor:      t.SensorName,
		Celsius:     t.Celsius,
		Band:        t.Band.String(),
		ReadFailed:  t.ReadFailed,
		Timestamp:   t.Timestamp,
		ExecutionId: t.ExecutionIdentifier,
	}
}

type sensorAverage struct {
	SensorName string
	Celsius    float64
	MaxId      int64
}
