// Package sensor turns the nested hardware tree served by LibreHardwareMonitor
// (data.json) into a flat set of sensor readings keyed by a stable id.
package sensor

import "sort"

// SensorData is one normalized sensor reading.
//
// Value, Min and Max are kept exactly as the agent formats them (the decimal
// separator follows the agent's locale); use ParseNumber to interpret them.
type SensorData struct {
	SensorID   string  `json:"sensor_id" yaml:"sensor_id"`     // e.g. "amdcpu-0-load-0"
	Name       string  `json:"name" yaml:"name"`               // e.g. "CPU Total Load"
	Type       string  `json:"type" yaml:"type"`               // e.g. "Load"
	Value      string  `json:"value" yaml:"value"`             // e.g. "12,5"
	Min        string  `json:"min" yaml:"min"`                 //
	Max        string  `json:"max" yaml:"max"`                 //
	Unit       *string `json:"unit,omitempty" yaml:"unit"`     // nil when the agent sent no unit
	DeviceName string  `json:"device_name" yaml:"device_name"` // e.g. "AMD Ryzen 7 7800X3D"
	DeviceType string  `json:"device_type" yaml:"device_type"` // e.g. "AMDCPU"
	DeviceID   string  `json:"device_id" yaml:"device_id"`     // e.g. "amdcpu-0"
}

// UnitString returns the unit or "" when absent.
func (s SensorData) UnitString() string {
	if s.Unit == nil {
		return ""
	}
	return *s.Unit
}

// DisplayUnit is the unit, falling back to the default unit of the sensor's
// type. Rows loaded from the CSV log carry no unit for empty cells.
func (s SensorData) DisplayUnit() string {
	if s.Unit != nil {
		return *s.Unit
	}
	return SensorType(s.Type).DefaultUnit()
}

// Number parses Value. ok is false when the value is not numeric.
func (s SensorData) Number() (v float64, ok bool) {
	v, err := ParseNumber(s.Value)
	return v, err == nil
}

// Data is the result of one parse of a data.json document.
type Data struct {
	// Sensors maps sensor id to reading.
	Sensors map[string]SensorData `json:"sensor_data" yaml:"sensor_data"`
	// MainDevices maps every hardware id that owns at least one sensor to the
	// name of its main device.
	MainDevices map[string]string `json:"main_devices" yaml:"main_devices"`
}

// SensorIDs returns the sensor ids in sorted order.
func (d *Data) SensorIDs() []string {
	ids := make([]string, 0, len(d.Sensors))
	for id := range d.Sensors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Readings returns the readings ordered by device name, then sensor id.
func (d *Data) Readings() []SensorData {
	out := make([]SensorData, 0, len(d.Sensors))
	for _, s := range d.Sensors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceName != out[j].DeviceName {
			return out[i].DeviceName < out[j].DeviceName
		}
		return out[i].SensorID < out[j].SensorID
	})
	return out
}
