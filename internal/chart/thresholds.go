package chart

import (
	"math"

	"github.com/luki/lhmsensors/internal/sensor"
)

// Thresholds are the warning levels used for coloring a value.
type Thresholds struct {
	High    float64
	Crit    float64
	HasHigh bool
	HasCrit bool
}

// scale is the display range and thresholds for one sensor category.
type scale struct {
	min, max float64
	fixed    bool
	th       Thresholds
}

var scales = map[sensor.SensorType]scale{
	sensor.SensorTypeTemperature: {min: 20, max: 110, fixed: true, th: Thresholds{High: 80, Crit: 95, HasHigh: true, HasCrit: true}},
	sensor.SensorTypeLoad:        {min: 0, max: 100, fixed: true, th: Thresholds{High: 85, Crit: 98, HasHigh: true, HasCrit: true}},
	sensor.SensorTypeControl:     {min: 0, max: 100, fixed: true, th: Thresholds{High: 90, HasHigh: true}},
	sensor.SensorTypeLevel:       {min: 0, max: 100, fixed: true},
	sensor.SensorTypeHumidity:    {min: 0, max: 100, fixed: true, th: Thresholds{High: 70, Crit: 85, HasHigh: true, HasCrit: true}},
}

// ThresholdsFor returns the warning levels for a sensor category. Categories
// without meaningful limits get none.
func ThresholdsFor(sensorType string) Thresholds {
	return scales[sensor.SensorType(sensorType)].th
}

// Range returns the chart range for values of a sensor category. Categories
// with a natural scale use it; the others fit the observed values with a
// little headroom.
func Range(sensorType string, values []float64) (float64, float64) {
	if s, ok := scales[sensor.SensorType(sensorType)]; ok && s.fixed {
		lo, hi := s.min, s.max
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		return lo, hi
	}

	if len(values) == 0 {
		return 0, 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.1, 1)
	}
	if lo >= 0 && lo-pad < 0 {
		return 0, hi + pad
	}
	return lo - pad, hi + pad
}
