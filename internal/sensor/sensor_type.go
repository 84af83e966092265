package sensor

// SensorType is the sensor category reported in a sensor node's Type field.
// The set mirrors LibreHardwareMonitor's SensorType enum.
type SensorType string

const (
	SensorTypeVoltage      SensorType = "Voltage"
	SensorTypeCurrent      SensorType = "Current"
	SensorTypePower        SensorType = "Power"
	SensorTypeClock        SensorType = "Clock"
	SensorTypeTemperature  SensorType = "Temperature"
	SensorTypeLoad         SensorType = "Load"
	SensorTypeFrequency    SensorType = "Frequency"
	SensorTypeFan          SensorType = "Fan"
	SensorTypeFlow         SensorType = "Flow"
	SensorTypeControl      SensorType = "Control"
	SensorTypeLevel        SensorType = "Level"
	SensorTypeFactor       SensorType = "Factor"
	SensorTypeData         SensorType = "Data"
	SensorTypeSmallData    SensorType = "SmallData"
	SensorTypeThroughput   SensorType = "Throughput"
	SensorTypeTimeSpan     SensorType = "TimeSpan"
	SensorTypeTiming       SensorType = "Timing"
	SensorTypeEnergy       SensorType = "Energy"
	SensorTypeNoise        SensorType = "Noise"
	SensorTypeConductivity SensorType = "Conductivity"
	SensorTypeHumidity     SensorType = "Humidity"
)

var defaultUnits = map[SensorType]string{
	SensorTypeVoltage:      "V",
	SensorTypeCurrent:      "A",
	SensorTypePower:        "W",
	SensorTypeClock:        "MHz",
	SensorTypeTemperature:  "°C",
	SensorTypeLoad:         "%",
	SensorTypeFrequency:    "Hz",
	SensorTypeFan:          "RPM",
	SensorTypeFlow:         "L/h",
	SensorTypeControl:      "%",
	SensorTypeLevel:        "%",
	SensorTypeFactor:       "",
	SensorTypeData:         "GB",
	SensorTypeSmallData:    "MB",
	SensorTypeThroughput:   "B/s",
	SensorTypeTimeSpan:     "s",
	SensorTypeTiming:       "ns",
	SensorTypeEnergy:       "mWh",
	SensorTypeNoise:        "dBA",
	SensorTypeConductivity: "µS/cm",
	SensorTypeHumidity:     "%",
}

// DefaultUnit is the unit the agent uses for t when it formats values.
func (t SensorType) DefaultUnit() string {
	return defaultUnits[t]
}
