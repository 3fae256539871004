// Package busstatus exposes the latest readings and Prometheus metrics over
// HTTP
package busstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
)

type Logger interface {
	Printf(string, ...interface{})
}

// DefaultStaleAfter is how long /health tolerates no new readings
const DefaultStaleAfter = 30 * time.Second

const shutdownTimeout = 5 * time.Second

type SensorStatus struct {
	Sensor     string    `json:"sensor"`
	Celsius    float64   `json:"celsius"`
	Band       string    `json:"band"`
	ReadFailed bool      `json:"readFailed"`
	Timestamp  time.Time `json:"timestamp"`
}

type Status struct {
	logger     Logger
	thresholds busband.Thresholds
	staleAfter time.Duration
	started    time.Time
	now        func() time.Time

	mu     sync.RWMutex
	latest []SensorStatus

	registry       *prometheus.Registry
	temperature    *prometheus.GaugeVec
	band           *prometheus.GaugeVec
	conversions    prometheus.Counter
	consumerErrors *prometheus.CounterVec

	router *mux.Router
}

func New(logger Logger, thresholds busband.Thresholds) (*Status, error) {
	if logger == nil {
		return nil, errors.New("status construct: Logger is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("status construct: %w", err)
	}

	s := &Status{
		logger:     logger,
		thresholds: thresholds,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		registry:   prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gluehwo_temperature_celsius",
			Help: "Last temperature read from each sensor.",
		}, []string{"sensor"}),
		band: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gluehwo_band",
			Help: "Serving band of each sensor, 1 (too cold) to 5 (too hot).",
		}, []string{"sensor"}),
		conversions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gluehwo_conversions_total",
			Help: "Completed conversion cycles.",
		}),
		consumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gluehwo_consumer_errors_total",
			Help: "Failures of reading consumers.",
		}, []string{"consumer"}),
	}
	s.started = s.now()
	s.registry.MustRegister(s.temperature, s.band, s.conversions, s.consumerErrors)

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/readings", s.readings).Methods(http.MethodGet)
	r.HandleFunc("/readings/{sensor}", s.reading).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router = r

	return s, nil
}

func (s *Status) Handler() http.Handler {
	return s.router
}

// Consume implements busconversion.Consumer
func (s *Status) Consume(readings []busconversion.Reading) error {
	latest := make([]SensorStatus, 0, len(readings))
	for _, r := range readings {
		b := s.thresholds.Band(r.Celsius)
		latest = append(latest, SensorStatus{
			Sensor:     r.Sensor,
			Celsius:    r.Celsius,
			Band:       b.String(),
			ReadFailed: r.Err != nil,
			Timestamp:  r.Timestamp,
		})
		s.temperature.WithLabelValues(r.Sensor).Set(r.Celsius)
		s.band.WithLabelValues(r.Sensor).Set(float64(b))
	}
	s.conversions.Inc()

	s.mu.Lock()
	s.latest = latest
	s.mu.Unlock()
	return nil
}

// ConsumerFailed counts a consumer failure; hook it to Scheduler.OnConsumerError
func (s *Status) ConsumerFailed(consumer string, err error) {
	s.consumerErrors.WithLabelValues(consumer).Inc()
}

func (s *Status) snapshot() []SensorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SensorStatus(nil), s.latest...)
}

func (s *Status) health(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	body := map[string]any{
		"status": "ok",
		"uptime": now.Sub(s.started).Round(time.Second).String(),
	}
	code := http.StatusOK

	latest := s.snapshot()
	if len(latest) > 0 && now.Sub(latest[0].Timestamp) > s.staleAfter {
		body["status"] = "stale"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, body)
}

func (s *Status) readings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Status) reading(w http.ResponseWriter, r *http.Request) {
	sensor := mux.Vars(r)["sensor"]
	for _, st := range s.snapshot() {
		if st.Sensor == sensor {
			s.writeJSON(w, http.StatusOK, st)
			return
		}
	}
	s.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no reading for %q", sensor)})
}

func (s *Status) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("[status] write response: %s", err)
	}
}

// ListenAndServe serves until ctx is canceled
func (s *Status) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[status] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
