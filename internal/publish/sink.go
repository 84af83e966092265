// Package publish forwards sensor snapshots to message brokers and time
// series databases.
package publish

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/sensor"
)

// ErrNotConnected is returned when a sink has lost its connection.
var ErrNotConnected = errors.New("publish: not connected")

// Sink receives every snapshot the bridge reads.
type Sink interface {
	Publish(ctx context.Context, data *sensor.Data, t time.Time) error
	Close() error
}

// Fanout publishes to a set of sinks.
type Fanout struct {
	sinks []Sink
	log   *logrus.Entry
	mu    sync.RWMutex
}

// NewFanout creates a fanout over sinks.
func NewFanout(log *logrus.Entry, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

// Add registers another sink.
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Publish hands data to every sink. Failures are logged and counted; one
// failing sink does not keep the others from receiving the snapshot.
func (f *Fanout) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	failed := 0
	for _, s := range f.sinks {
		if err := s.Publish(ctx, data, t); err != nil {
			failed++
			f.log.WithError(err).Errorf("publish to %T failed", s)
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d sinks failed", failed, len(f.sinks))
	}
	return nil
}

// Close closes every sink and returns the first error.
func (f *Fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			f.log.WithError(err).Errorf("closing %T failed", s)
			if first == nil {
				first = err
			}
		}
	}
	f.sinks = nil
	return first
}
