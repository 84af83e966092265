package sensor

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Node is one entry of the data.json tree. Optional fields are pointers so
// that an absent field can be told apart from an empty one.
type Node struct {
	ID         int     `json:"id"`
	Text       string  `json:"Text"`
	Children   []Node  `json:"Children"`
	Type       *string `json:"Type,omitempty"`
	SensorID   *string `json:"SensorId,omitempty"`
	HardwareID *string `json:"HardwareId,omitempty"`
	Value      *string `json:"Value,omitempty"`
	Min        *string `json:"Min,omitempty"`
	Max        *string `json:"Max,omitempty"`
	ImageURL   *string `json:"ImageURL,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// IsSensor reports whether the node is a sensor leaf.
func (n *Node) IsSensor() bool {
	return n.IsLeaf() && n.SensorID != nil
}

//go:embed schema.json
var nodeSchemaJSON string

var nodeSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(nodeSchemaJSON))
})

// Decode validates a data.json payload and unmarshals it into a Node tree.
func Decode(payload []byte) (*Node, error) {
	schema, err := nodeSchema()
	if err != nil {
		return nil, fmt.Errorf("sensor: compile node schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.Field()+": "+desc.Description())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var root Node
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &root, nil
}
