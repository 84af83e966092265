package viewer

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/lhmsensors/internal/chart"
	"github.com/luki/lhmsensors/internal/sensor"
)

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg    = lipgloss.Color("17")
	colorTitleFg    = lipgloss.Color("51")
	colorBorder     = lipgloss.Color("62")
	colorDeviceName = lipgloss.Color("147")
	colorLabel      = lipgloss.Color("252")
	colorDim        = lipgloss.Color("240")
	colorFooterBg   = lipgloss.Color("235")
	colorWarn       = lipgloss.Color("220")
	colorCrit       = lipgloss.Color("196")
	colorCursor     = lipgloss.Color("214")
)

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitle(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.timeSlots) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(2, 0).
			Align(lipgloss.Center).
			Width(contentWidth).
			Render("No data for this day.")
		sections = append(sections, empty)
	} else {
		sections = append(sections, m.renderCursorInfo(contentWidth))
		sections = append(sections, m.renderPanels(contentWidth)...)
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := m.height
	if visibleLines < 5 {
		visibleLines = 5
	}
	maxScroll := len(lines) - visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	start := m.scroll
	if start > maxScroll {
		start = maxScroll
	}
	end := start + visibleLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("LHM SENSORS HISTORY")

	dayText := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.days[m.dayIdx])

	nav := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  [ %d/%d ]", m.dayIdx+1, len(m.days)))

	dataInfo := ""
	if len(m.timeSlots) > 0 {
		first := m.timeSlots[0].Format("15:04:05")
		last := m.timeSlots[len(m.timeSlots)-1].Format("15:04:05")
		dataInfo = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  %s - %s  (%d readings, %d sensors)",
				first, last, len(m.readings), len(m.sensors)))
	}

	right := dayText + nav + dataInfo

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderCursorInfo(width int) string {
	if m.cursor < 0 || m.cursor >= len(m.timeSlots) {
		return ""
	}

	ts := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.timeSlots[m.cursor].Format("15:04:05"))

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.timeSlots)))

	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + m.renderScrubber(barWidth))
}

func (m model) renderScrubber(width int) string {
	if len(m.timeSlots) == 0 || width <= 0 {
		return ""
	}

	pos := 0
	if len(m.timeSlots) > 1 {
		pos = m.cursor * (width - 1) / (len(m.timeSlots) - 1)
	}
	if pos >= width {
		pos = width - 1
	}

	var sb strings.Builder
	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i := 0; i < width; i++ {
		if i == pos {
			sb.WriteString(curS.Render("◆"))
			continue
		}
		slotIdx := 0
		if len(m.timeSlots) > 1 && width > 1 {
			slotIdx = i * (len(m.timeSlots) - 1) / (width - 1)
		}
		if slotIdx > 0 && slotIdx < len(m.timeSlots) &&
			m.timeSlots[slotIdx].Hour() != m.timeSlots[slotIdx-1].Hour() {
			sb.WriteString(tickS.Render("│"))
			continue
		}
		sb.WriteString(dimS.Render("─"))
	}

	return sb.String()
}

func (m model) renderPanels(totalWidth int) []string {
	if m.cursor < 0 || m.cursor >= len(m.timeSlots) {
		return nil
	}
	cursorTime := m.timeSlots[m.cursor]

	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	labelW := 24
	valueW := 14
	scaleWidth := 12

	chartWidth := innerWidth - labelW - valueW - scaleWidth - 40
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > 140 {
		chartWidth = 140
	}

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	var panels []string

	for _, g := range m.groupByDevice() {
		var rows []string

		friendly := lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDeviceName).
			Render(sensor.FriendlyName(g.kind))
		rows = append(rows, friendly+"  "+
			lipgloss.NewStyle().Foreground(colorLabel).Render(g.name)+"  "+
			dimS.Render(g.id))

		colLabel := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(labelW).Render("sensor")
		colVal := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(valueW).Align(lipgloss.Right).Render("value")
		colHist := lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(strings.Repeat(" ", chartWidth/2-3) + "history")
		rows = append(rows, colLabel+" "+colVal+"  "+colHist)
		rows = append(rows, lipgloss.NewStyle().
			Foreground(lipgloss.Color("237")).
			Render(strings.Repeat("─", innerWidth)))

		for _, id := range g.sensors {
			pts := m.series[id]
			if len(pts) == 0 {
				continue
			}
			info := m.meta[id]
			th := chart.ThresholdsFor(info.Type)

			cur := findValueAtTime(pts, cursorTime)

			minV, maxV, sum := math.MaxFloat64, -math.MaxFloat64, 0.0
			values := make([]float64, len(pts))
			for i, p := range pts {
				minV = math.Min(minV, p.value)
				maxV = math.Max(maxV, p.value)
				sum += p.value
				values[i] = p.value
			}
			avg := sum / float64(len(pts))
			rangeMin, rangeMax := chart.Range(info.Type, values)

			sparkPts := buildSparkWindow(pts, m.cursor, chartWidth, m.timeSlots)

			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Bold(true).
				Width(labelW).
				Render(truncate(info.Name, labelW))

			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(cur, info.DisplayUnit(), th))

			spark := chart.RenderSparklinePoints(sparkPts, chartWidth, rangeMin, rangeMax, th)

			stats := dimS.Render("avg") + valS.Render(fmt.Sprintf("%8.1f", avg)) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf("%8.1f", minV)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf("%8.1f", maxV))

			var threshTags string
			if th.HasHigh {
				threshTags += " " + lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("H:%.0f", th.High))
			}
			if th.HasCrit {
				threshTags += " " + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprintf("C:%.0f", th.Crit))
			}
			if th.HasHigh || th.HasCrit {
				threshTags += " " + chart.RenderThresholdScale(cur, rangeMin, rangeMax, th, scaleWidth)
			}

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+" "+stats+threshTags)

			timeline := chart.RenderTimeline(sparkPts, chartWidth)
			if strings.TrimSpace(timeline) != "" {
				rows = append(rows, strings.Repeat(" ", labelW+valueW+2)+" "+timeline)
			}
		}

		panels = append(panels, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(totalWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}

	return panels
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(":skip 60") +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  [/]") + keyS.Render(":day") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}
