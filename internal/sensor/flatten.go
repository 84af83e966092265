package sensor

// Leaf is a sensor node together with the HardwareId of the closest node
// above it (or the node itself) that carries one. HardwareID is empty when
// no such node exists.
type Leaf struct {
	*Node
	HardwareID string
}

// Flatten returns every sensor leaf below node in depth-first, left-to-right
// order. Childless nodes without a SensorId are dropped.
func Flatten(node *Node) []*Node {
	leaves := FlattenHardware(node)
	if leaves == nil {
		return nil
	}
	nodes := make([]*Node, len(leaves))
	for i, l := range leaves {
		nodes[i] = l.Node
	}
	return nodes
}

// FlattenHardware is Flatten keeping track of the owning hardware of each
// leaf. An explicit stack is used so that deep trees never recurse.
func FlattenHardware(node *Node) []Leaf {
	if node == nil {
		return nil
	}

	type frame struct {
		node       *Node
		hardwareID string
	}

	var leaves []Leaf
	stack := []frame{{node: node}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		hw := f.hardwareID
		if f.node.HardwareID != nil && *f.node.HardwareID != "" {
			hw = *f.node.HardwareID
		}

		if f.node.IsLeaf() {
			if f.node.SensorID != nil {
				leaves = append(leaves, Leaf{Node: f.node, HardwareID: hw})
			}
			continue
		}

		// Push in reverse so the first child is visited first.
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &f.node.Children[i], hardwareID: hw})
		}
	}
	return leaves
}
