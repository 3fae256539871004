// Package brewfatherapi posts readings to a Brewfather custom stream. The
// stream accepts at most one post every 15 minutes, so all probes of a
// device go out in a single request.
package brewfatherapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

const (
	DefaultEndpoint = "https://log.brewfather.net/stream"
	apiCallTimeout  = 5 * time.Second
	bodyLengthLimit = 1_000_000
)

var logIdRegex = regexp.MustCompile(`^[A-Za-z0-9-]{4,32}$`)

type Client struct {
	apiLogId string
	endpoint string
	http     *http.Client
}

func New(brewfatherApiLogId string) (*Client, error) {
	if brewfatherApiLogId == "" {
		return nil, errors.New("brewfatherapi: logId is empty")
	}
	if !logIdRegex.MatchString(brewfatherApiLogId) {
		return nil, errors.New("brewfatherapi: logId is not valid")
	}
	return &Client{
		apiLogId: brewfatherApiLogId,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: apiCallTimeout},
	}, nil
}

// WithEndpoint points the client somewhere else, e.g. a test server
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

func (c *Client) SendTemperatureReading(ctx context.Context, reading TempReading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()
	url := fmt.Sprintf("%s?id=%s", c.endpoint, c.apiLogId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("brewfatherapi: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyLengthLimit))
		return fmt.Errorf("brewfatherapi: bad status code: %d (%s)", resp.StatusCode, string(body))
	}
	return nil
}

// TempReading is one stream post. Each probe reports under its own key.
type TempReading struct {
	DeviceName string
	TempUnit   TempUnit
	Temps      map[TempType]float64
}

func (tr TempReading) valid() bool {
	if tr.DeviceName == "" || tr.TempUnit.String() == "" || len(tr.Temps) == 0 {
		return false
	}
	for tt := range tr.Temps {
		if tt.String() == "" {
			return false
		}
	}
	return true
}

func (tr TempReading) MarshalJSON() ([]byte, error) {
	if !tr.valid() {
		return nil, errors.New("invalid temperature reading")
	}
	body := map[string]any{
		"name":      tr.DeviceName,
		"temp_unit": tr.TempUnit.String(),
	}
	for tt, temp := range tr.Temps {
		body[tt.String()] = json.Number(fmt.Sprintf("%.2f", temp))
	}
	result, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("brewfather: request json: %w", err)
	}
	return result, nil
}

type TempUnit int

const (
	Celsius TempUnit = iota + 1
	Fahrenheit
)

func (tu TempUnit) String() string {
	switch tu {
	case Celsius:
		return "C"
	case Fahrenheit:
		return "F"
	}
	return ""
}

type TempType int

const (
	MainTemp TempType = iota + 1
	RoomTemp
	AuxTemp
)

func (t TempType) String() string {
	switch t {
	case MainTemp:
		return "temp"
	case RoomTemp:
		return "ext_temp"
	case AuxTemp:
		return "aux_temp"
	}
	return ""
}

// TempTypeForSensor maps the sensor's position in the config to a stream key:
// the first probe is the main temperature, the second the auxiliary one
func TempTypeForSensor(index int) (TempType, bool) {
	switch index {
	case 0:
		return MainTemp, true
	case 1:
		return AuxTemp, true
	case 2:
		return RoomTemp, true
	}
	return 0, false
}
