package busstatus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
)

var testLogger = log.New(os.Stdout, "[busstatus_test] ", 0)

func newTestStatus(t *testing.T, now time.Time) *Status {
	t.Helper()
	s, err := New(testLogger, busband.DefaultThresholds)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	s.started = now.Add(-time.Minute)
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestConsumeUpdatesMetrics(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestStatus(t, now)

	require.NoError(t, s.Consume([]busconversion.Reading{
		{Sensor: "T1", Celsius: 65, Timestamp: now},
		{Sensor: "T2", Celsius: busconversion.DisconnectedC, Timestamp: now, Err: errors.New("crc")},
	}))
	s.ConsumerFailed("lcd", errors.New("i/o"))

	assert.Equal(t, 65.0, testutil.ToFloat64(s.temperature.WithLabelValues("T1")))
	assert.Equal(t, float64(busband.Optimal), testutil.ToFloat64(s.band.WithLabelValues("T1")))
	assert.Equal(t, float64(busband.TooCold), testutil.ToFloat64(s.band.WithLabelValues("T2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.conversions))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.consumerErrors.WithLabelValues("lcd")))

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `gluehwo_temperature_celsius{sensor="T1"} 65`)
	assert.Contains(t, string(body), "gluehwo_conversions_total 1")
}

func TestReadings(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestStatus(t, now)
	require.NoError(t, s.Consume([]busconversion.Reading{
		{Sensor: "T1", Celsius: 68, Timestamp: now},
	}))

	rec := get(t, s.Handler(), "/readings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var all []SensorStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	require.Len(t, all, 1)
	assert.Equal(t, "slightly too hot", all[0].Band)

	rec = get(t, s.Handler(), "/readings/T1")
	require.Equal(t, http.StatusOK, rec.Code)
	var one SensorStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&one))
	assert.Equal(t, 68.0, one.Celsius)

	rec = get(t, s.Handler(), "/readings/T9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestStatus(t, now)

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code, "no readings yet is still healthy")
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "1m0s", body["uptime"])

	require.NoError(t, s.Consume([]busconversion.Reading{{Sensor: "T1", Celsius: 65, Timestamp: now.Add(-time.Minute)}}))
	rec = get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := newTestStatus(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server didn't stop")
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, busband.DefaultThresholds)
	assert.Error(t, err)
	_, err = New(testLogger, busband.Thresholds{})
	assert.Error(t, err)
}
