package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/lhmsensors/internal/sensor"
)

func TestBufferWraps(t *testing.T) {
	b := NewBuffer(5)

	now := time.Now()
	for i := 0; i < 7; i++ {
		b.Push(float64(30+i), now.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 36.0, b.Last())
	assert.Equal(t, Stats{Min: 30, Peak: 36, Avg: 34}, b.Stats())
	assert.Equal(t, []float64{34, 35, 36}, b.LastN(3))
	assert.Equal(t, []float64{32, 33, 34, 35, 36}, b.LastN(50))
}

func TestEmptyBuffer(t *testing.T) {
	b := NewBuffer(3)
	assert.Zero(t, b.Last())
	assert.Equal(t, Stats{}, b.Stats())
	assert.Nil(t, b.LastN(2))
	assert.Nil(t, b.LastNPoints(2))
	assert.Nil(t, b.LastNPoints(-1))
}

func TestZeroCapacity(t *testing.T) {
	b := NewBuffer(0)
	b.Push(1, time.Now())
	b.Push(2, time.Now())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2.0, b.Last())
}

func TestLastNPointsOrdered(t *testing.T) {
	b := NewBuffer(100)
	base := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)

	for i := 0; i < 120; i++ {
		b.Push(float64(30+i%10), base.Add(time.Duration(i)*time.Second))
	}

	pts := b.LastNPoints(5)
	require.Len(t, pts, 5)
	for i := 1; i < len(pts); i++ {
		assert.True(t, pts[i].Time.After(pts[i-1].Time))
	}
	assert.Equal(t, base.Add(119*time.Second), pts[len(pts)-1].Time)
	assert.Equal(t, base.Add(20*time.Second), b.LastNPoints(100)[0].Time)
}

func TestRecordAll(t *testing.T) {
	unit := "°C"
	records := []sensor.SensorData{
		{SensorID: "amdcpu-0-temperature-2", Value: "54,5", Unit: &unit},
		{SensorID: "gpu-nvidia-0-load-0", Value: "12.0"},
		{SensorID: "broken", Value: "n/a"},
	}

	s := NewStore(10)
	now := time.Now()
	skipped := s.RecordAll(records, now)

	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"amdcpu-0-temperature-2", "gpu-nvidia-0-load-0"}, s.Keys())
	assert.Equal(t, 54.5, s.Get("amdcpu-0-temperature-2").Last())
	assert.Nil(t, s.Get("broken"))

	s.RecordAll(records[:1], now.Add(time.Second))
	assert.Equal(t, 2, s.Get("amdcpu-0-temperature-2").Len())
}
