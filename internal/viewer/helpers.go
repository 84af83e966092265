package viewer

import (
	"time"

	"github.com/luki/lhmsensors/internal/history"
)

type deviceGroup struct {
	id      string
	name    string
	kind    string
	sensors []string
}

// groupByDevice groups m.sensors by device, preserving their order.
func (m model) groupByDevice() []*deviceGroup {
	groups := make(map[string]*deviceGroup)
	var out []*deviceGroup
	for _, id := range m.sensors {
		info := m.meta[id]
		key := info.DeviceID + "\x00" + info.DeviceName
		g, ok := groups[key]
		if !ok {
			g = &deviceGroup{id: info.DeviceID, name: info.DeviceName, kind: info.DeviceType}
			groups[key] = g
			out = append(out, g)
		}
		g.sensors = append(g.sensors, id)
	}
	return out
}

func findValueAtTime(pts []dataPoint, t time.Time) float64 {
	best := pts[0].value
	bestDiff := absDuration(pts[0].time.Sub(t))
	for _, p := range pts {
		diff := absDuration(p.time.Sub(t))
		if diff < bestDiff {
			bestDiff = diff
			best = p.value
		}
		if p.time.After(t) && diff > bestDiff {
			break
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// buildSparkWindow returns the points of one series that fall in the
// width time slots ending at the cursor.
func buildSparkWindow(pts []dataPoint, cursorIdx int, width int, timeSlots []time.Time) []history.Point {
	if len(pts) == 0 || len(timeSlots) == 0 {
		return nil
	}

	valueMap := make(map[int64]float64, len(pts))
	for _, p := range pts {
		valueMap[p.time.Unix()] = p.value
	}

	var result []history.Point
	for i := width - 1; i >= 0; i-- {
		slotIdx := cursorIdx - i
		if slotIdx < 0 || slotIdx >= len(timeSlots) {
			continue
		}
		t := timeSlots[slotIdx]
		if v, ok := valueMap[t.Unix()]; ok {
			result = append(result, history.Point{Value: v, Time: t})
		}
	}
	return result
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}
