// Package monitor implements the live sensor monitoring TUI using
// BubbleTea with real-time sparkline charts and color-coded thresholds.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/lhmsensors/internal/history"
	"github.com/luki/lhmsensors/internal/sensor"
	"github.com/luki/lhmsensors/internal/store"
)

const (
	defaultPollInterval = 2 * time.Second
	historySize         = 600
)

// Reader produces one flattened snapshot per call.
type Reader interface {
	Read(ctx context.Context) (*sensor.Data, error)
}

// Options tune the monitor. Zero values are usable.
type Options struct {
	PollInterval time.Duration
	// Store receives every snapshot; nil disables recording.
	Store store.Backend
	// StoreLabel is shown next to the REC marker.
	StoreLabel string
	// Source is shown in the title bar.
	Source string
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type sensorDataMsg struct {
	data *sensor.Data
	time time.Time
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	reader    Reader
	opts      Options
	data      *sensor.Data
	history   *history.Store
	order     []string
	err       error
	noDevices bool
	width     int
	height    int
	scroll    int
	lastPoll  time.Time
	startTime time.Time
	paused    bool
}

// New creates the initial model for the live monitor.
func New(reader Reader, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return Model{
		reader:    reader,
		opts:      opts,
		history:   history.NewStore(historySize),
		startTime: time.Now(),
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) pollSensors() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 4*m.opts.PollInterval)
	defer cancel()

	data, err := m.reader.Read(ctx)
	if err != nil {
		return errMsg{err}
	}
	return sensorDataMsg{data: data, time: time.Now()}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollSensors, m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.opts.Store != nil {
				_ = m.opts.Store.Close()
			}
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.pollSensors, m.tickCmd())

	case sensorDataMsg:
		m.data = msg.data
		m.lastPoll = msg.time
		m.err = nil
		m.noDevices = false

		readings := msg.data.Readings()
		m.history.RecordAll(readings, msg.time)
		m.order = buildOrder(readings, m.order)

		if m.opts.Store != nil {
			if err := m.opts.Store.Write(readings, msg.time); err != nil {
				m.err = fmt.Errorf("write: %w", err)
			}
		}

	case errMsg:
		if errors.Is(msg.err, sensor.ErrNoDevices) {
			m.noDevices = true
			m.err = nil
		} else {
			m.err = msg.err
		}
	}

	return m, nil
}

// buildOrder appends sensor ids not seen before, keeping earlier positions
// stable so rows do not jump between polls.
func buildOrder(readings []sensor.SensorData, existing []string) []string {
	seen := make(map[string]bool)
	for _, k := range existing {
		seen[k] = true
	}
	var newKeys []string
	for _, r := range readings {
		if !seen[r.SensorID] {
			newKeys = append(newKeys, r.SensorID)
			seen[r.SensorID] = true
		}
	}
	sort.Strings(newKeys)
	return append(existing, newKeys...)
}
