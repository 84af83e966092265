package sensor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type parserSuite struct {
	suite.Suite
	root *Node
}

func (s *parserSuite) SetupTest() {
	payload, err := os.ReadFile("testdata/librehardwaremonitor.json")
	require.NoError(s.T(), err)
	s.root, err = Decode(payload)
	require.NoError(s.T(), err)
}

func (s *parserSuite) computer() *Node {
	return &s.root.Children[0]
}

func (s *parserSuite) TestDocumentIsParsed() {
	data, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), map[string]string{
		"lpc-nct6687d-0":    "MSI MAG B650M MORTAR WIFI (MS-7D76)",
		"amdcpu-0":          "AMD Ryzen 7 7800X3D",
		"gpu-nvidia-test-0": "NVIDIA GeForce RTX 4080 SUPER",
	}, data.MainDevices)
	assert.Len(s.T(), data.Sensors, 16)

	deviceIDs := map[string]bool{}
	for _, r := range data.Sensors {
		deviceIDs[r.DeviceID] = true
	}
	assert.Equal(s.T(), map[string]bool{
		"lpc-nct6687d-0":    true,
		"amdcpu-0":          true,
		"gpu-nvidia-test-0": true,
	}, deviceIDs)

	perDevice := map[string]int{}
	for _, r := range data.Sensors {
		perDevice[r.DeviceName]++
	}
	assert.Equal(s.T(), 4, perDevice["MSI MAG B650M MORTAR WIFI (MS-7D76)"])
	assert.Equal(s.T(), 5, perDevice["AMD Ryzen 7 7800X3D"])
	assert.Equal(s.T(), 7, perDevice["NVIDIA GeForce RTX 4080 SUPER"])

	control := data.Sensors["gpu-nvidia-0-control-1"]
	assert.Equal(s.T(), "gpu-nvidia-test-0", control.DeviceID)
	assert.Equal(s.T(), "NVIDIA", control.DeviceType)
	assert.Equal(s.T(), "GPU Fan 2 Control", control.Name)

	rx := data.Sensors["gpu-nvidia-0-throughput-0"]
	assert.Equal(s.T(), "100,0", rx.Value)
	assert.Equal(s.T(), "50,0", rx.Min)
	assert.Equal(s.T(), "199,3", rx.Max)
	require.NotNil(s.T(), rx.Unit)
	assert.Equal(s.T(), "MB/s", *rx.Unit)

	tx := data.Sensors["gpu-nvidia-0-throughput-1"]
	assert.Equal(s.T(), "300,0", tx.Value)
	assert.Equal(s.T(), "683250,0", tx.Max)
	assert.Equal(s.T(), "KB/s", tx.UnitString())

	_, ok := data.Sensors["gpu-nvidia-0-load-0"]
	assert.True(s.T(), ok, "percent sign must be stripped from sensor ids")

	factor := data.Sensors["gpu-nvidia-0-factor-0"]
	assert.Nil(s.T(), factor.Unit)
	assert.Equal(s.T(), "0,9", factor.Value)

	assert.Equal(s.T(), "AMDCPU", data.Sensors["amdcpu-0-load-0"].DeviceType)
	assert.Equal(s.T(), "MAINBOARD", data.Sensors["lpc-nct6687d-0-fan-0"].DeviceType)
}

func (s *parserSuite) TestDeviceWithoutSensorsIsIgnored() {
	s.computer().Children[0].Children = nil

	data, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), map[string]string{
		"amdcpu-0":          "AMD Ryzen 7 7800X3D",
		"gpu-nvidia-test-0": "NVIDIA GeForce RTX 4080 SUPER",
	}, data.MainDevices)
	assert.Len(s.T(), data.Sensors, 12)
}

func (s *parserSuite) TestDeviceIDWithoutHardwareID() {
	board := &s.computer().Children[0]
	board.HardwareID = nil
	board.Children[0].HardwareID = nil

	data, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "lpc-nct6687d-0", data.Sensors["lpc-nct6687d-0-fan-0"].DeviceID)
	assert.Equal(s.T(), "MSI MAG B650M MORTAR WIFI (MS-7D76)", data.MainDevices["lpc-nct6687d-0"])
}

func (s *parserSuite) TestBoardHardwareIDOwnsDirectSensors() {
	board := &s.computer().Children[0]
	board.Children = append(board.Children, sensorLeaf("Board Temp", "/motherboard/temperature/0", "Temperature", "30 °C"))

	data, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "motherboard", data.Sensors["motherboard-temperature-0"].DeviceID)
	assert.Equal(s.T(), "lpc-nct6687d-0", data.Sensors["lpc-nct6687d-0-fan-0"].DeviceID)
	assert.Equal(s.T(), "MSI MAG B650M MORTAR WIFI (MS-7D76)", data.MainDevices["motherboard"])
	assert.Len(s.T(), data.MainDevices, 4)
}

func (s *parserSuite) TestNoSensorsAnywhere() {
	s.computer().Children = s.computer().Children[:1]
	s.computer().Children[0].Children[0].Children = nil

	_, err := ParseSensorData(s.root)
	assert.ErrorIs(s.T(), err, ErrNoDevices)

	// Listing names does not care about sensors.
	names, err := MainDeviceNames(s.root)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"MSI MAG B650M MORTAR WIFI (MS-7D76)"}, names)
}

func (s *parserSuite) TestMainDeviceNames() {
	names, err := MainDeviceNames(s.root)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{
		"MSI MAG B650M MORTAR WIFI (MS-7D76)",
		"AMD Ryzen 7 7800X3D",
		"NVIDIA GeForce RTX 4080 SUPER",
	}, names)
}

func (s *parserSuite) TestMainDeviceNamesWithoutDevices() {
	s.computer().Children = nil

	_, err := MainDeviceNames(s.root)
	assert.ErrorIs(s.T(), err, ErrNoDevices)

	_, err = ParseSensorData(s.root)
	assert.ErrorIs(s.T(), err, ErrNoDevices)
}

func (s *parserSuite) TestParseIsRepeatable() {
	first, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)
	second, err := ParseSensorData(s.root)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first, second)

	names1, _ := MainDeviceNames(s.root)
	names2, _ := MainDeviceNames(s.root)
	assert.Equal(s.T(), names1, names2)
}

func (s *parserSuite) TestMalformedSensorIDPropagates() {
	empty := ""
	cpu := &s.computer().Children[1]
	cpu.Children[0].Children[0].SensorID = &empty

	_, err := ParseSensorData(s.root)
	var malformed *MalformedSensorIDError
	require.ErrorAs(s.T(), err, &malformed)
	assert.Equal(s.T(), "Core (SVI2 TFN)", malformed.Text)
	assert.ErrorIs(s.T(), err, ErrMalformedNode)
}

func TestParserSuite(t *testing.T) {
	suite.Run(t, new(parserSuite))
}

func strp(s string) *string { return &s }

func sensorLeaf(text, id, typ, value string) Node {
	return Node{Text: text, SensorID: strp(id), Type: strp(typ), Value: strp(value), Min: strp(value), Max: strp(value)}
}

func TestParseSensorDataScenario(t *testing.T) {
	root := &Node{Children: []Node{{
		Text: "computer",
		Children: []Node{{
			Text:     "CPU",
			ImageURL: strp("images/amdcpu.png"),
			Children: []Node{{
				Text:     "Core",
				SensorID: strp("/cpu/0/temperature/0"),
				Type:     strp("Temperature"),
				Value:    strp("45.0 °C"),
				Min:      strp("30.0 °C"),
				Max:      strp("80.0 °C"),
			}},
		}},
	}}}

	data, err := ParseSensorData(root)
	require.NoError(t, err)
	require.Len(t, data.Sensors, 1)

	got := data.Sensors["cpu-0-temperature-0"]
	assert.Equal(t, "Core Temperature", got.Name)
	assert.Equal(t, "45.0", got.Value)
	assert.Equal(t, "30.0", got.Min)
	assert.Equal(t, "80.0", got.Max)
	assert.Equal(t, "°C", got.UnitString())
	assert.Equal(t, "AMDCPU", got.DeviceType)
	assert.Equal(t, "CPU", got.DeviceName)
	assert.Equal(t, "cpu-0", got.DeviceID)
	assert.Equal(t, map[string]string{"cpu-0": "CPU"}, data.MainDevices)
}

func TestParseSensorDataLastWriterWins(t *testing.T) {
	root := &Node{Children: []Node{{Children: []Node{
		{Text: "A", ImageURL: strp("images/a.png"), Children: []Node{sensorLeaf("first", "/x/0/load/0", "Load", "1 %")}},
		{Text: "B", ImageURL: strp("images/b.png"), Children: []Node{sensorLeaf("second", "/x/0/load/0", "Load", "2 %")}},
	}}}}

	data, err := ParseSensorData(root)
	require.NoError(t, err)
	require.Len(t, data.Sensors, 1)
	assert.Equal(t, "second Load", data.Sensors["x-0-load-0"].Name)
	assert.Equal(t, "B", data.Sensors["x-0-load-0"].DeviceName)
}

func TestParseWithoutComputerNode(t *testing.T) {
	_, err := ParseSensorData(&Node{Text: "Sensor"})
	assert.ErrorIs(t, err, ErrNoDevices)

	_, err = MainDeviceNames(nil)
	assert.ErrorIs(t, err, ErrNoDevices)
}

func TestReadingsOrdering(t *testing.T) {
	data := &Data{Sensors: map[string]SensorData{
		"b-1": {SensorID: "b-1", DeviceName: "GPU"},
		"a-2": {SensorID: "a-2", DeviceName: "CPU"},
		"a-1": {SensorID: "a-1", DeviceName: "CPU"},
	}}

	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, data.SensorIDs())

	var ids []string
	for _, r := range data.Readings() {
		ids = append(ids, r.SensorID)
	}
	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, ids)
}
