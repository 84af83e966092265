// Package history keeps the most recent numeric samples of every sensor in
// fixed-size circular buffers.
package history

import (
	"math"
	"sort"
	"time"

	"github.com/luki/lhmsensors/internal/sensor"
)

// Point is a single sample.
type Point struct {
	Value float64
	Time  time.Time
}

// Stats summarizes a buffer. Min and Peak cover every sample ever pushed,
// Avg only the retained ones.
type Stats struct {
	Min  float64
	Peak float64
	Avg  float64
}

// Buffer is a circular buffer of samples for one sensor.
type Buffer struct {
	points []Point
	head   int // index of the oldest sample once full
	full   bool
	min    float64
	peak   float64
}

// NewBuffer creates a buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		points: make([]Point, 0, capacity),
		min:    math.Inf(1),
		peak:   math.Inf(-1),
	}
}

// Push stores a sample, overwriting the oldest once full.
func (b *Buffer) Push(v float64, t time.Time) {
	p := Point{Value: v, Time: t}
	if b.full {
		b.points[b.head] = p
		b.head = (b.head + 1) % len(b.points)
	} else {
		b.points = append(b.points, p)
		b.full = len(b.points) == cap(b.points)
	}
	b.min = math.Min(b.min, v)
	b.peak = math.Max(b.peak, v)
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	return len(b.points)
}

// at returns the i-th retained sample, oldest first.
func (b *Buffer) at(i int) Point {
	return b.points[(b.head+i)%len(b.points)]
}

// Last returns the newest value, or 0 when empty.
func (b *Buffer) Last() float64 {
	if len(b.points) == 0 {
		return 0
	}
	return b.at(len(b.points) - 1).Value
}

// Stats returns min, peak and average. All are 0 when empty.
func (b *Buffer) Stats() Stats {
	if len(b.points) == 0 {
		return Stats{}
	}
	sum := 0.0
	for _, p := range b.points {
		sum += p.Value
	}
	return Stats{Min: b.min, Peak: b.peak, Avg: sum / float64(len(b.points))}
}

// LastNPoints returns up to n of the newest samples, oldest first.
func (b *Buffer) LastNPoints(n int) []Point {
	if n > len(b.points) {
		n = len(b.points)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Point, n)
	offset := len(b.points) - n
	for i := range out {
		out[i] = b.at(offset + i)
	}
	return out
}

// LastN is LastNPoints without timestamps.
func (b *Buffer) LastN(n int) []float64 {
	pts := b.LastNPoints(n)
	if pts == nil {
		return nil
	}
	vals := make([]float64, len(pts))
	for i, p := range pts {
		vals[i] = p.Value
	}
	return vals
}

// Store holds one buffer per sensor id.
type Store struct {
	buffers  map[string]*Buffer
	capacity int
}

// NewStore creates a store whose buffers hold capacity samples each.
func NewStore(capacity int) *Store {
	return &Store{buffers: make(map[string]*Buffer), capacity: capacity}
}

// Record adds a sample for sensor id.
func (s *Store) Record(id string, v float64, t time.Time) {
	b, ok := s.buffers[id]
	if !ok {
		b = NewBuffer(s.capacity)
		s.buffers[id] = b
	}
	b.Push(v, t)
}

// RecordAll records every reading whose value parses as a number and
// returns how many were skipped.
func (s *Store) RecordAll(records []sensor.SensorData, t time.Time) int {
	skipped := 0
	for _, r := range records {
		v, ok := r.Number()
		if !ok {
			skipped++
			continue
		}
		s.Record(r.SensorID, v, t)
	}
	return skipped
}

// Get returns the buffer of sensor id, or nil.
func (s *Store) Get(id string) *Buffer {
	return s.buffers[id]
}

// Keys returns the recorded sensor ids, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.buffers))
	for k := range s.buffers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
