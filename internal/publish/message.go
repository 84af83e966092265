package publish

import (
	"time"

	"github.com/luki/lhmsensors/internal/sensor"
)

// Reading is the JSON form of one sensor reading on the wire. Value holds
// the parsed number when the agent's value is numeric; Raw always carries
// the agent's original text.
type Reading struct {
	SensorID   string   `json:"sensor_id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Value      *float64 `json:"value"`
	Raw        string   `json:"raw"`
	Min        string   `json:"min"`
	Max        string   `json:"max"`
	Unit       string   `json:"unit,omitempty"`
	DeviceID   string   `json:"device_id"`
	DeviceName string   `json:"device_name"`
	DeviceType string   `json:"device_type"`
	Time       string   `json:"time"`
}

// Snapshot is one full poll on the wire.
type Snapshot struct {
	Time        string            `json:"time"`
	MainDevices map[string]string `json:"main_devices"`
	Readings    []Reading         `json:"readings"`
}

// NewReading converts r for the wire.
func NewReading(r sensor.SensorData, t time.Time) Reading {
	out := Reading{
		SensorID:   r.SensorID,
		Name:       r.Name,
		Type:       r.Type,
		Raw:        r.Value,
		Min:        r.Min,
		Max:        r.Max,
		Unit:       r.UnitString(),
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		DeviceType: r.DeviceType,
		Time:       t.UTC().Format(time.RFC3339),
	}
	if v, ok := r.Number(); ok {
		out.Value = &v
	}
	return out
}

// NewSnapshot converts data for the wire, readings ordered by device.
func NewSnapshot(data *sensor.Data, t time.Time) Snapshot {
	readings := data.Readings()
	s := Snapshot{
		Time:        t.UTC().Format(time.RFC3339),
		MainDevices: data.MainDevices,
		Readings:    make([]Reading, 0, len(readings)),
	}
	for _, r := range readings {
		s.Readings = append(s.Readings, NewReading(r, t))
	}
	return s
}
