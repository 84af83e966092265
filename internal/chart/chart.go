// Package chart provides sparkline rendering with color-coded thresholds,
// minute tick marks, timeline labels, and threshold scale bars.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/lhmsensors/internal/history"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// ValueColor returns the color for v given thresholds.
func ValueColor(v float64, th Thresholds) lipgloss.Color {
	switch {
	case th.HasCrit && v >= th.Crit:
		return lipgloss.Color("196") // red
	case th.HasHigh && v >= th.High:
		return lipgloss.Color("208") // orange
	case th.HasHigh && v >= th.High*0.85:
		return lipgloss.Color("220") // yellow
	default:
		return lipgloss.Color("78") // soft green
	}
}

// RenderSparkline renders a sparkline of bare values (no timestamp ticks).
func RenderSparkline(values []float64, width int, rangeMin, rangeMax float64, th Thresholds) string {
	if width <= 0 {
		return ""
	}
	pts := make([]history.Point, len(values))
	for i, v := range values {
		pts[i] = history.Point{Value: v}
	}
	return RenderSparklinePoints(pts, width, rangeMin, rangeMax, th)
}

// isMinuteTick reports whether points[i] starts a new minute.
func isMinuteTick(points []history.Point, i int) bool {
	p := points[i]
	if p.Time.IsZero() {
		return false
	}
	if p.Time.Second() == 0 {
		return true
	}
	return i > 0 && !points[i-1].Time.IsZero() && p.Time.Minute() != points[i-1].Time.Minute()
}

// RenderSparklinePoints renders a sparkline with minute tick marks on the
// timeline. A subtle pipe is drawn at each minute boundary.
func RenderSparklinePoints(points []history.Point, width int, rangeMin, rangeMax float64, th Thresholds) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < padLen; i++ {
		sb.WriteString(dim.Render("╌"))
	}

	tickStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i, p := range points {
		if isMinuteTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}

		norm := (p.Value - rangeMin) / span
		norm = math.Max(0, math.Min(1, norm))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}

		style := lipgloss.NewStyle().Foreground(ValueColor(p.Value, th))
		if th.HasCrit && p.Value >= th.Crit {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}

	return sb.String()
}

// RenderTimeline renders the time labels under the sparkline, showing
// HH:MM at each minute tick position.
func RenderTimeline(points []history.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)

	line := make([]rune, width)
	for i := range line {
		line[i] = ' '
	}

	type tick struct {
		pos   int
		label string
	}
	var ticks []tick
	for i, p := range points {
		if isMinuteTick(points, i) {
			ticks = append(ticks, tick{pos: padLen + i, label: p.Time.Format("15:04")})
		}
	}

	lastEnd := -1
	for _, t := range ticks {
		start := t.pos - 2
		if start < 0 {
			start = 0
		}
		end := start + len(t.label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range t.label {
			line[start+j] = ch
		}
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render(string(line))
}

// RenderThresholdScale renders a scale bar showing current position vs thresholds.
func RenderThresholdScale(current, rangeMin, rangeMax float64, th Thresholds, width int) string {
	if width <= 0 {
		return ""
	}

	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}
	position := func(v float64) int {
		return int(float64(width-1) * (v - rangeMin) / span)
	}

	highPos, critPos := -1, -1
	if th.HasHigh && th.High > rangeMin {
		highPos = position(th.High)
	}
	if th.HasCrit && th.Crit > rangeMin {
		critPos = position(th.Crit)
	}

	curPos := position(current)
	if curPos < 0 {
		curPos = 0
	}
	if curPos >= width {
		curPos = width - 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch i {
		case curPos:
			style := lipgloss.NewStyle().Foreground(ValueColor(current, th)).Bold(true)
			sb.WriteString(style.Render("◆"))
		case critPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("▪"))
		case highPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("▪"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Render("·"))
		}
	}

	return sb.String()
}

// FormatValue formats v with unit, choosing precision by magnitude.
func FormatValue(v float64, unit string) string {
	var s string
	switch {
	case math.Abs(v) >= 1000:
		s = fmt.Sprintf("%7.0f", v)
	case math.Abs(v) >= 100:
		s = fmt.Sprintf("%7.1f", v)
	default:
		s = fmt.Sprintf("%7.2f", v)
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// RenderValue renders a value with its unit, color coded.
func RenderValue(v float64, unit string, th Thresholds) string {
	style := lipgloss.NewStyle().Foreground(ValueColor(v, th))
	if th.HasCrit && v >= th.Crit {
		style = style.Bold(true)
	}
	return style.Render(FormatValue(v, unit))
}
