package sensor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevices is returned when a document yields no usable data.
	ErrNoDevices = errors.New("sensor: no devices with sensor data")

	// ErrMalformedNode is returned when a sensor leaf lacks a field the
	// normalizer needs.
	ErrMalformedNode = errors.New("sensor: malformed sensor node")

	// ErrInvalidDocument is returned by Decode when the payload does not
	// have the node shape.
	ErrInvalidDocument = errors.New("sensor: invalid document")

	// ErrNotNumeric is returned by ParseNumber.
	ErrNotNumeric = errors.New("sensor: value is not numeric")
)

// MalformedSensorIDError is returned when a sensor leaf has no usable
// SensorId. It matches ErrMalformedNode with errors.Is.
type MalformedSensorIDError struct {
	Path string // raw SensorId, empty when absent
	Text string // display name of the offending node
}

func (e *MalformedSensorIDError) Error() string {
	return fmt.Sprintf("sensor: malformed sensor id %q on node %q", e.Path, e.Text)
}

// Is makes errors.Is(err, ErrMalformedNode) true.
func (e *MalformedSensorIDError) Is(target error) bool {
	return target == ErrMalformedNode
}
