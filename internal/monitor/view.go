package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/lhmsensors/internal/chart"
	"github.com/luki/lhmsensors/internal/history"
	"github.com/luki/lhmsensors/internal/sensor"
)

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg    = lipgloss.Color("17")
	colorTitleFg    = lipgloss.Color("51")
	colorBorder     = lipgloss.Color("62")
	colorDeviceName = lipgloss.Color("147")
	colorDeviceID   = lipgloss.Color("243")
	colorLabel      = lipgloss.Color("252")
	colorDim        = lipgloss.Color("240")
	colorFooterBg   = lipgloss.Color("235")
	colorOk         = lipgloss.Color("78")
	colorWarn       = lipgloss.Color("220")
	colorHigh       = lipgloss.Color("208")
	colorCrit       = lipgloss.Color("196")
	colorPaused     = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if m.data == nil || len(m.data.Sensors) == 0 {
		msg := "Waiting for sensor data..."
		if m.noDevices {
			msg = "LibreHardwareMonitor reports no devices yet"
		}
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render(msg)
		sections = append(sections, waiting)
	} else {
		sections = append(sections, m.renderDevicePanels(contentWidth)...)
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

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("LHM SENSORS")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	var statusParts []string

	if m.opts.Source != "" {
		statusParts = append(statusParts, dimS.Render(m.opts.Source))
	}
	statusParts = append(statusParts, dimS.Render(fmt.Sprintf("up %s", fmtDuration(time.Since(m.startTime)))))

	if !m.lastPoll.IsZero() {
		statusParts = append(statusParts, dimS.Render(m.lastPoll.Format("15:04:05")))
	}

	if m.paused {
		p := lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED")
		statusParts = append(statusParts, p)
	}

	if m.opts.Store != nil {
		rec := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("REC")
		if m.opts.StoreLabel != "" {
			rec += dimS.Render(" " + m.opts.StoreLabel)
		}
		statusParts = append(statusParts, rec)
	}

	sep := dimS.Render(" │ ")
	right := strings.Join(statusParts, sep)

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

type deviceGroup struct {
	id       string
	name     string
	kind     string
	readings []sensor.SensorData
}

// groupByDevice groups readings by device, in first-seen order of m.order.
func (m Model) groupByDevice() []*deviceGroup {
	groups := make(map[string]*deviceGroup)
	var out []*deviceGroup
	for _, id := range m.order {
		r, ok := m.data.Sensors[id]
		if !ok {
			continue
		}
		key := r.DeviceID + "\x00" + r.DeviceName
		g, ok := groups[key]
		if !ok {
			g = &deviceGroup{id: r.DeviceID, name: r.DeviceName, kind: r.DeviceType}
			groups[key] = g
			out = append(out, g)
		}
		g.readings = append(g.readings, r)
	}
	return out
}

func (m Model) renderDevicePanels(totalWidth int) []string {
	innerWidth := totalWidth - 4
	if innerWidth < 30 {
		innerWidth = 30
	}

	labelW := 24
	valueW := 14

	chartWidth := innerWidth - labelW - valueW - 40
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
		name := lipgloss.NewStyle().Foreground(colorLabel).Render(g.name)
		id := lipgloss.NewStyle().Foreground(colorDeviceID).Render(g.id)
		rows = append(rows, friendly+"  "+name+"  "+id)

		var lastPts []history.Point

		for _, r := range g.readings {
			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Width(labelW).
				Render(truncate(r.Name, labelW))

			hist := m.history.Get(r.SensorID)
			v, numeric := r.Number()
			if hist == nil || !numeric {
				raw := strings.TrimSpace(r.Value + " " + r.DisplayUnit())
				rows = append(rows, label+" "+dimS.Width(valueW).Align(lipgloss.Right).Render(raw))
				continue
			}

			th := chart.ThresholdsFor(r.Type)
			pts := hist.LastNPoints(chartWidth)
			lastPts = pts
			rangeMin, rangeMax := chart.Range(r.Type, hist.LastN(chartWidth))

			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(v, r.DisplayUnit(), th))

			spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, th)

			st := hist.Stats()
			stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%8.1f", st.Avg)) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf("%8.1f", st.Min)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf("%8.1f", st.Peak))

			var threshTags string
			if th.HasHigh {
				threshTags += dimS.Render(" H") + lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%.0f", th.High))
			}
			if th.HasCrit {
				threshTags += dimS.Render(" C") + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprintf("%.0f", th.Crit))
			}

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+stats+threshTags)
		}

		if lastPts != nil {
			timeline := chart.RenderTimeline(lastPts, chartWidth)
			if strings.TrimSpace(timeline) != "" {
				pad := strings.Repeat(" ", labelW+valueW+2)
				rows = append(rows, pad+" "+timeline)
			}
		}

		panel := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(totalWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

		panels = append(panels, panel)
	}

	return panels
}

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	highS := lipgloss.NewStyle().Foreground(colorHigh).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	legend := okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" warm ") +
		highS + dimS.Render(" high ") +
		critS + dimS.Render(" crit ") +
		tickS + dimS.Render(" 1min")

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  j/k") + keyS.Render(":scroll") +
		dimS.Render("  p") + keyS.Render(":pause")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
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

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
