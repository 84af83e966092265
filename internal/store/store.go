// Package store persists sensor readings: a daily-rotated CSV log under
// ~/.lhm-sensors/ and an optional SQL table.
package store

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/sensor"
)

// Backend is one persistent destination for readings.
type Backend interface {
	Write(records []sensor.SensorData, t time.Time) error
	Close() error
}

// History is a backend that can be browsed one day at a time. Days are
// "2006-01-02" in local time, newest first.
type History interface {
	Days() ([]string, error)
	LoadDay(day string) ([]StoredReading, error)
}

// StoredReading is a reading read back from a backend.
type StoredReading struct {
	Time time.Time
	sensor.SensorData
}

// Manager writes every batch to all of its backends.
type Manager struct {
	backends []Backend
	log      *logrus.Entry
	mutex    sync.RWMutex
}

// NewManager creates a manager over backends.
func NewManager(log *logrus.Entry, backends ...Backend) *Manager {
	return &Manager{backends: backends, log: log}
}

// Add registers another backend.
func (m *Manager) Add(b Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.backends = append(m.backends, b)
}

// Len returns the number of backends.
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.backends)
}

// Write hands records to every backend. A failing backend is logged and
// does not stop the others; the returned error counts the failures.
func (m *Manager) Write(records []sensor.SensorData, t time.Time) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	failed := 0
	for _, b := range m.backends {
		if err := b.Write(records, t); err != nil {
			failed++
			m.log.WithError(err).Errorf("store write to %T failed", b)
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d store backends failed", failed, len(m.backends))
	}
	return nil
}

// Close closes every backend.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var first error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			m.log.WithError(err).Errorf("closing %T failed", b)
			if first == nil {
				first = err
			}
		}
	}
	m.backends = nil
	return first
}
