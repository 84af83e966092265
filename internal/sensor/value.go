package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber interprets a value as formatted by the agent, accepting either
// '.' or ',' as decimal separator and the other one as thousands separator:
// "45.0", "100,0" and "1.234,5" all parse.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrNotNumeric)
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	normalized := s
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		normalized = strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case comma >= 0 && dot >= 0:
		normalized = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		normalized = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return v, nil
}
