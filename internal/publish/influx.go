package publish

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

const (
	measurement           = "lhm_sensor"
	influxConnectTimeout  = 10 * time.Second
	millisecondsPerSecond = 1000
)

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink writes one point per numeric sensor through the non-blocking
// write API. Write failures surface asynchronously and are logged.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	log    *logrus.Entry
}

// ConnectInflux pings the server and opens a batching writer.
func ConnectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logrus.Entry) (*InfluxSink, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	pingCtx, cancel := context.WithTimeout(ctx, influxConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping %s", cfg.URL)
	}
	if !healthy {
		client.Close()
		return nil, errors.Errorf("influxdb %s not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	log = log.WithField("bucket", cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.WithError(err).Error("influxdb write failed")
		}
	}()

	return &InfluxSink{client: client, writer: writeAPI, log: log}, nil
}

// Publish queues one point per sensor whose value is numeric.
func (s *InfluxSink) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	for _, r := range data.Readings() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p := NewPoint(r, t); p != nil {
			s.writer.WritePoint(p)
		}
	}
	return nil
}

// NewPoint converts a reading into an InfluxDB point, or nil when its value
// is not numeric.
func NewPoint(r sensor.SensorData, t time.Time) *write.Point {
	v, ok := r.Number()
	if !ok {
		return nil
	}
	fields := map[string]interface{}{"value": v}
	if lo, err := sensor.ParseNumber(r.Min); err == nil {
		fields["min"] = lo
	}
	if hi, err := sensor.ParseNumber(r.Max); err == nil {
		fields["max"] = hi
	}

	tags := map[string]string{
		"sensor_id":   r.SensorID,
		"device_id":   r.DeviceID,
		"device_type": r.DeviceType,
		"device_name": r.DeviceName,
		"type":        r.Type,
	}
	if r.Unit != nil {
		tags["unit"] = *r.Unit
	}
	return write.NewPoint(measurement, tags, fields, t)
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
