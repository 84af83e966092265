// Package viewer implements the historical sensor data browser TUI
// with time scrubbing, day navigation, and sparkline windows.
package viewer

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/luki/lhmsensors/internal/sensor"
	"github.com/luki/lhmsensors/internal/store"
)

// ErrNoHistory is returned by Run when the history holds no days.
var ErrNoHistory = errors.New("viewer: no history data")

// Run launches the historical data viewer over h. label names the history
// in errors.
func Run(h store.History, label string) error {
	days, err := h.Days()
	if err != nil || len(days) == 0 {
		return errors.Wrapf(ErrNoHistory, "in %s", label)
	}

	p := tea.NewProgram(
		initModel(h, days),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return err
}

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	history  store.History
	days     []string              // available dates, newest first
	dayIdx   int                   // currently selected day
	readings []store.StoredReading // all readings for current day
	sensors  []string              // unique sensor ids, grouped by device
	cursor   int                   // time cursor position
	scroll   int                   // vertical scroll offset
	width    int
	height   int
	err      error

	timeSlots []time.Time                  // unique timestamps (sorted)
	series    map[string][]dataPoint       // sensor id -> sorted numeric points
	meta      map[string]sensor.SensorData // sensor id -> last seen reading
}

type dataPoint struct {
	time  time.Time
	value float64
}

func initModel(h store.History, days []string) model {
	m := model{
		history: h,
		days:    days,
		dayIdx:  0,
	}
	m.loadDay()
	return m
}

func (m *model) loadDay() {
	readings, err := m.history.LoadDay(m.days[m.dayIdx])
	if err != nil {
		m.err = err
		return
	}
	m.setReadings(readings)
}

func (m *model) setReadings(readings []store.StoredReading) {
	m.readings = readings
	m.err = nil

	timeSet := make(map[int64]time.Time)
	seriesMap := make(map[string][]dataPoint)
	meta := make(map[string]sensor.SensorData)

	for _, r := range readings {
		timeSet[r.Time.Unix()] = r.Time
		meta[r.SensorID] = r.SensorData
		if v, ok := r.Number(); ok {
			seriesMap[r.SensorID] = append(seriesMap[r.SensorID], dataPoint{time: r.Time, value: v})
		}
	}

	sensors := make([]string, 0, len(meta))
	for id := range meta {
		sensors = append(sensors, id)
	}
	sort.Slice(sensors, func(i, j int) bool {
		a, b := meta[sensors[i]], meta[sensors[j]]
		if a.DeviceName != b.DeviceName {
			return a.DeviceName < b.DeviceName
		}
		return sensors[i] < sensors[j]
	})
	m.sensors = sensors

	times := make([]time.Time, 0, len(timeSet))
	for _, t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	m.timeSlots = times

	for k, pts := range seriesMap {
		sort.Slice(pts, func(i, j int) bool { return pts[i].time.Before(pts[j].time) })
		seriesMap[k] = pts
	}
	m.series = seriesMap
	m.meta = meta

	m.cursor = 0
	if len(m.timeSlots) > 0 {
		m.cursor = len(m.timeSlots) - 1
	}
	m.scroll = 0
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			if m.cursor > 0 {
				m.cursor--
			}
		case "right", "l":
			if m.cursor < len(m.timeSlots)-1 {
				m.cursor++
			}
		case "shift+left", "H":
			m.cursor -= 60
			if m.cursor < 0 {
				m.cursor = 0
			}
		case "shift+right", "L":
			m.cursor += 60
			if m.cursor >= len(m.timeSlots) {
				m.cursor = len(m.timeSlots) - 1
			}
		case "home":
			m.cursor = 0
		case "end":
			if len(m.timeSlots) > 0 {
				m.cursor = len(m.timeSlots) - 1
			}

		case "[":
			if m.dayIdx < len(m.days)-1 {
				m.dayIdx++
				m.loadDay()
			}
		case "]":
			if m.dayIdx > 0 {
				m.dayIdx--
				m.loadDay()
			}

		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}
