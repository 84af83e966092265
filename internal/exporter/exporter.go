// Package exporter serves the latest sensor snapshot as Prometheus metrics.
package exporter

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luki/lhmsensors/internal/sensor"
)

const namespace = "lhm"

var sensorLabels = []string{"sensor_id", "device_id", "device_name", "device_type", "name", "unit"}

// Exporter owns a private registry so repeated construction in tests never
// collides with the global one.
type Exporter struct {
	registry     *prometheus.Registry
	value        *prometheus.GaugeVec
	min          *prometheus.GaugeVec
	max          *prometheus.GaugeVec
	scrapeErrors prometheus.Counter
	lastUpdate   prometheus.Gauge
	sensors      prometheus.Gauge
}

// New creates an exporter with its metrics registered.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Current sensor value as reported by LibreHardwareMonitor.",
		}, sensorLabels),
		min: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_min",
			Help:      "Minimum sensor value since the agent started.",
		}, sensorLabels),
		max: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_max",
			Help:      "Maximum sensor value since the agent started.",
		}, sensorLabels),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Polls of the agent that failed.",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last successful poll.",
		}),
		sensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensors",
			Help:      "Number of sensors in the last snapshot.",
		}),
	}
	e.registry.MustRegister(e.value, e.min, e.max, e.scrapeErrors, e.lastUpdate, e.sensors)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Update replaces all sensor series with data. Sensors whose values are not
// numeric are left out; min and max are exported only when they parse.
func (e *Exporter) Update(data *sensor.Data, t time.Time) {
	e.value.Reset()
	e.min.Reset()
	e.max.Reset()

	for _, r := range data.Sensors {
		v, ok := r.Number()
		if !ok {
			continue
		}
		labels := prometheus.Labels{
			"sensor_id":   r.SensorID,
			"device_id":   r.DeviceID,
			"device_name": r.DeviceName,
			"device_type": r.DeviceType,
			"name":        r.Name,
			"unit":        r.UnitString(),
		}
		e.value.With(labels).Set(v)
		if lo, err := sensor.ParseNumber(r.Min); err == nil {
			e.min.With(labels).Set(lo)
		}
		if hi, err := sensor.ParseNumber(r.Max); err == nil {
			e.max.With(labels).Set(hi)
		}
	}
	e.sensors.Set(float64(len(data.Sensors)))
	e.lastUpdate.Set(float64(t.Unix()))
}

// RecordError counts a failed poll.
func (e *Exporter) RecordError() {
	e.scrapeErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Route is an extra handler served next to the metrics.
type Route struct {
	Path    string
	Handler http.Handler
}

// Serve runs an HTTP server on addr with the metrics at path, a /health
// endpoint and any extra routes, until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr, path string, routes ...Route) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, e.Handler())
	for _, r := range routes {
		mux.Handle(r.Path, r.Handler)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "serve metrics on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
