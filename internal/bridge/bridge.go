// Package bridge polls LibreHardwareMonitor and forwards every snapshot to
// the exporter, the stores and the publishers.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/exporter"
	"github.com/luki/lhmsensors/internal/publish"
	"github.com/luki/lhmsensors/internal/sensor"
	"github.com/luki/lhmsensors/internal/store"
	"github.com/luki/lhmsensors/internal/transform"
)

const defaultInterval = 2 * time.Second

// Reader produces one flattened snapshot per call.
type Reader interface {
	Read(ctx context.Context) (*sensor.Data, error)
}

// Bridge wires a reader to its outputs. Every output is optional.
type Bridge struct {
	reader   Reader
	interval time.Duration
	log      *logrus.Entry
	now      func() time.Time

	exporter *exporter.Exporter
	store    store.Backend
	sink     publish.Sink

	mu          sync.RWMutex
	transformer *transform.Transformer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) { b.log = log }
}

// WithExporter updates e after every poll.
func WithExporter(e *exporter.Exporter) Option {
	return func(b *Bridge) { b.exporter = e }
}

// WithStore writes every snapshot to s.
func WithStore(s store.Backend) Option {
	return func(b *Bridge) { b.store = s }
}

// WithSink publishes every snapshot to s.
func WithSink(s publish.Sink) Option {
	return func(b *Bridge) { b.sink = s }
}

// WithTransformer runs t over every snapshot first.
func WithTransformer(t *transform.Transformer) Option {
	return func(b *Bridge) { b.transformer = t }
}

// New creates a bridge reading from reader.
func New(reader Reader, opts ...Option) *Bridge {
	b := &Bridge{
		reader:   reader,
		interval: defaultInterval,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetTransformer swaps the transformer, e.g. after a config reload. nil
// disables transformation.
func (b *Bridge) SetTransformer(t *transform.Transformer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transformer = t
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (b *Bridge) Run(ctx context.Context) error {
	b.log.WithField("interval", b.interval).Info("bridge started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.PollOnce(ctx); err != nil {
			b.logPollError(err)
		}

		select {
		case <-ctx.Done():
			b.log.Info("bridge stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (b *Bridge) logPollError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, sensor.ErrNoDevices) {
		b.log.WithError(err).Warn("agent reports no devices")
		return
	}
	b.log.WithError(err).Error("poll failed")
}

// PollOnce reads one snapshot and hands it to every output. A failing output
// does not stop the others; the first error is returned.
func (b *Bridge) PollOnce(ctx context.Context) error {
	data, err := b.reader.Read(ctx)
	if err != nil {
		if b.exporter != nil {
			b.exporter.RecordError()
		}
		return errors.Wrap(err, "read")
	}
	t := b.now()

	b.mu.RLock()
	tr := b.transformer
	b.mu.RUnlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if tr != nil {
		transformed, err := tr.Apply(data)
		if err != nil {
			b.log.WithError(err).Warn("transform failed for some records")
			keep(err)
		}
		data = transformed
	}

	b.log.WithFields(logrus.Fields{
		"sensors": len(data.Sensors),
		"devices": len(data.MainDevices),
	}).Debug("polled")

	if b.exporter != nil {
		b.exporter.Update(data, t)
	}
	if b.store != nil {
		keep(errors.Wrap(b.store.Write(data.Readings(), t), "store"))
	}
	if b.sink != nil {
		keep(errors.Wrap(b.sink.Publish(ctx, data, t), "publish"))
	}
	return firstErr
}
