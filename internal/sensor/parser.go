package sensor

// mainDevices returns the devices below the root's computer node.
func mainDevices(root *Node) ([]Node, error) {
	if root == nil || len(root.Children) == 0 {
		return nil, ErrNoDevices
	}
	return root.Children[0].Children, nil
}

// ParseSensorData collects the readings of every main device in the tree.
// Each sensor's device id comes from the closest HardwareId above it, so a
// main device may map several ids (e.g. a board and its Super I/O chip).
// A later sensor whose id collides with an earlier one replaces it.
// ErrNoDevices is returned when no device exposes a single sensor.
func ParseSensorData(root *Node) (*Data, error) {
	devices, err := mainDevices(root)
	if err != nil {
		return nil, err
	}

	data := &Data{
		Sensors:     make(map[string]SensorData),
		MainDevices: make(map[string]string),
	}
	for i := range devices {
		device := DescribeDevice(&devices[i])
		for _, leaf := range FlattenHardware(&devices[i]) {
			owner := device
			owner.ID = HardwareID(leaf)
			s, err := Normalize(leaf.Node, owner)
			if err != nil {
				return nil, err
			}
			data.Sensors[s.SensorID] = s
			if owner.ID != "" {
				data.MainDevices[owner.ID] = owner.Name
			}
		}
	}

	if len(data.Sensors) == 0 {
		return nil, ErrNoDevices
	}
	return data, nil
}

// MainDeviceNames returns the names of the main devices (CPU, GPU, SSD...)
// in document order. Unlike ParseSensorData it only fails when there are no
// main devices at all; devices without sensors are still listed.
func MainDeviceNames(root *Node) ([]string, error) {
	devices, err := mainDevices(root)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Text)
	}
	return names, nil
}
