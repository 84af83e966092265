package sensor

import (
	"fmt"
	"strings"
)

// Device describes the hardware that owns a sensor: the main device's name
// and type, and the id of the (sub-)hardware the sensor hangs below.
type Device struct {
	ID   string
	Name string
	Type string
}

// DescribeDevice derives name and type of a main device.
func DescribeDevice(device *Node) Device {
	d := Device{Name: device.Text}
	if device.ImageURL != nil {
		d.Type = DeviceType(*device.ImageURL)
	}
	return d
}

// HardwareID returns the device id of leaf: the HardwareId it was found
// below, or, when the agent sent none, the sensor path without its trailing
// "<type>/<index>" ("/amdcpu/0/load/0" -> "amdcpu-0").
func HardwareID(leaf Leaf) string {
	if leaf.HardwareID != "" {
		return pathID(leaf.HardwareID)
	}
	if leaf.SensorID == nil {
		return ""
	}
	segs := strings.Split(*leaf.SensorID, "/")
	if len(segs) < 4 {
		return ""
	}
	return pathID(strings.Join(segs[:len(segs)-2], "/"))
}

// Normalize converts one sensor leaf into a SensorData owned by device.
func Normalize(leaf *Node, device Device) (SensorData, error) {
	if leaf.SensorID == nil || *leaf.SensorID == "" {
		return SensorData{}, &MalformedSensorIDError{Text: leaf.Text}
	}
	id := pathID(*leaf.SensorID)
	if id == "" {
		return SensorData{}, &MalformedSensorIDError{Path: *leaf.SensorID, Text: leaf.Text}
	}

	required := []struct {
		name  string
		value *string
	}{
		{"Type", leaf.Type},
		{"Value", leaf.Value},
		{"Min", leaf.Min},
		{"Max", leaf.Max},
	}
	for _, f := range required {
		if f.value == nil {
			return SensorData{}, fmt.Errorf("%w: %s has no %s", ErrMalformedNode, *leaf.SensorID, f.name)
		}
	}

	value, unit, hasUnit := strings.Cut(*leaf.Value, " ")
	minimum, _, _ := strings.Cut(*leaf.Min, " ")
	maximum, _, _ := strings.Cut(*leaf.Max, " ")

	s := SensorData{
		SensorID:   id,
		Name:       leaf.Text + " " + *leaf.Type,
		Type:       *leaf.Type,
		Value:      value,
		Min:        minimum,
		Max:        maximum,
		DeviceName: device.Name,
		DeviceType: device.Type,
		DeviceID:   device.ID,
	}
	if hasUnit {
		s.Unit = &unit
	}
	return s, nil
}

// pathID turns an agent path like "/gpu-nvidia/0/load%/0" into
// "gpu-nvidia-0-load-0": the first segment is dropped, the rest joined with
// dashes, and every '%' removed.
func pathID(path string) string {
	segs := strings.Split(path, "/")
	return strings.ReplaceAll(strings.Join(segs[1:], "-"), "%", "")
}
