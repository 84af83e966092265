package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/luki/lhmsensors/internal/bridge"
	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/exporter"
	"github.com/luki/lhmsensors/internal/monitor"
	"github.com/luki/lhmsensors/internal/publish"
	"github.com/luki/lhmsensors/internal/sensor"
	"github.com/luki/lhmsensors/internal/source"
	"github.com/luki/lhmsensors/internal/store"
	"github.com/luki/lhmsensors/internal/transform"
	"github.com/luki/lhmsensors/internal/viewer"
)

// ── monitor ──────────────────────────────────────────────────────────

func runMonitor(a *app, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	record := fs.Bool("record", true, "write readings to the configured stores")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// The TUI owns the terminal.
	a.log.Logger.SetLevel(logrus.ErrorLevel)

	client := source.New(a.cfg.Source, a.component("source"))
	opts := monitor.Options{
		PollInterval: a.cfg.Source.PollInterval,
		Source:       client.URL(),
	}
	if *record {
		stores, label, err := openStores(a.cfg.Store, a.component("store"))
		if err != nil {
			return err
		}
		defer stores.Close()
		if stores.Len() > 0 {
			opts.Store = stores
			opts.StoreLabel = label
		}
	}

	p := tea.NewProgram(monitor.New(client, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// ── history ──────────────────────────────────────────────────────────

func runHistory(a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dir := fs.String("dir", a.cfg.Store.CSV.Dir, "CSV history directory")
	fromSQL := fs.Bool("sql", false, "browse the configured SQL store instead of the CSV logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *fromSQL {
		db, err := store.NewSQLStore(a.cfg.Store.SQL.Driver, a.cfg.Store.SQL.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return viewer.Run(db, a.cfg.Store.SQL.Driver)
	}

	path := *dir
	if path == "" {
		path = store.DataDir()
	}
	return viewer.Run(store.DirHistory(path), path)
}

// ── devices ──────────────────────────────────────────────────────────

func runDevices(a *app, _ []string) error {
	client := source.New(a.cfg.Source, a.component("source"))
	names, err := client.Devices(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// ── dump ─────────────────────────────────────────────────────────────

func runDump(a *app, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	format := fs.String("format", "table", "output format: json, yaml or table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := source.New(a.cfg.Source, a.component("source"))
	data, err := client.Read(context.Background())
	if err != nil {
		return err
	}

	tr, err := transform.Load(a.cfg.Transform, a.component("transform"))
	if err != nil {
		return err
	}
	if tr != nil {
		if data, err = tr.Apply(data); err != nil {
			a.log.WithError(err).Warn("transform failed for some records")
		}
	}

	out, err := renderDump(data, *format)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func renderDump(data *sensor.Data, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "encode json")
		}
		return string(b) + "\n", nil
	case "yaml", "yml":
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", errors.Wrap(err, "encode yaml")
		}
		return string(b), nil
	case "table":
		return renderTable(data), nil
	default:
		return "", errors.Errorf("unknown format %q", format)
	}
}

func renderTable(data *sensor.Data) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle()
		}).
		Headers("DEVICE", "SENSOR", "VALUE", "MIN", "MAX", "UNIT")

	for _, r := range data.Readings() {
		t.Row(r.DeviceName, r.Name, r.Value, r.Min, r.Max, r.UnitString())
	}
	return t.Render() + "\n"
}

// ── bridge ───────────────────────────────────────────────────────────

func runBridge(a *app, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	client := source.New(cfg.Source, a.component("source"))
	opts := []bridge.Option{
		bridge.WithInterval(cfg.Source.PollInterval),
		bridge.WithLogger(a.component("bridge")),
	}

	tr, err := transform.Load(cfg.Transform, a.component("transform"))
	if err != nil {
		return err
	}
	if tr != nil {
		opts = append(opts, bridge.WithTransformer(tr))
	}

	stores, _, err := openStores(cfg.Store, a.component("store"))
	if err != nil {
		return err
	}
	defer stores.Close()
	if stores.Len() > 0 {
		opts = append(opts, bridge.WithStore(stores))
	}

	sinks, err := openSinks(ctx, cfg, a.component("publish"))
	if err != nil {
		return err
	}
	defer sinks.Close()

	if cfg.Metrics.Enabled {
		e := exporter.New()
		opts = append(opts, bridge.WithExporter(e))

		var routes []exporter.Route
		if cfg.Stream.Enabled {
			stream := publish.NewStream(cfg.Stream, a.component("stream"))
			sinks.Add(stream)
			routes = append(routes, exporter.Route{Path: cfg.Stream.Path, Handler: stream})
		}

		log := a.component("exporter").WithField("listen", cfg.Metrics.Listen)
		go func() {
			log.Info("serving metrics")
			if err := e.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Path, routes...); err != nil {
				log.WithError(err).Error("metrics server stopped")
				stop()
			}
		}()
	}

	if sinks.Len() > 0 {
		opts = append(opts, bridge.WithSink(sinks))
	}
	b := bridge.New(client, opts...)

	if a.configPath != "" {
		watchLog := a.component("config")
		err := config.Watch(a.configPath, watchLog, func(next *config.Config) error {
			if level, err := logrus.ParseLevel(next.Logging.Level); err == nil {
				a.log.Logger.SetLevel(level)
			}
			tr, err := transform.Load(next.Transform, a.component("transform"))
			if err != nil {
				return err
			}
			b.SetTransformer(tr)
			return nil
		})
		if err != nil {
			watchLog.WithError(err).Warn("config hot reload disabled")
		}
	}

	return b.Run(ctx)
}

// ── wiring ───────────────────────────────────────────────────────────

// openStores opens every enabled store backend. label names them for the
// monitor's REC marker.
func openStores(cfg config.StoreConfig, log *logrus.Entry) (*store.Manager, string, error) {
	m := store.NewManager(log)
	var labels []string

	if cfg.CSV.Enabled {
		ds, err := store.New(cfg.CSV.Dir)
		if err != nil {
			return nil, "", err
		}
		m.Add(ds)
		labels = append(labels, ds.Dir())
	}
	if cfg.SQL.Enabled {
		sqlStore, err := store.NewSQLStore(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			_ = m.Close()
			return nil, "", err
		}
		m.Add(sqlStore)
		labels = append(labels, cfg.SQL.Driver)
	}
	return m, strings.Join(labels, ", "), nil
}

// openSinks connects every enabled publisher.
func openSinks(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*publish.Fanout, error) {
	f := publish.NewFanout(log)

	if cfg.MQTT.Enabled {
		s, err := publish.ConnectMQTT(cfg.MQTT, log.WithField("sink", "mqtt"))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		f.Add(s)
	}
	if cfg.AMQP.Enabled {
		s, err := publish.DialAMQP(ctx, cfg.AMQP, log.WithField("sink", "amqp"))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		f.Add(s)
	}
	if cfg.NATS.Enabled {
		s, err := publish.ConnectNATS(cfg.NATS, log.WithField("sink", "nats"))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		f.Add(s)
	}
	if cfg.InfluxDB.Enabled {
		s, err := publish.ConnectInflux(ctx, cfg.InfluxDB, log.WithField("sink", "influxdb"))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		f.Add(s)
	}
	return f, nil
}
