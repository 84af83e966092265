// Command lhmsensors reads LibreHardwareMonitor's sensor tree and shows,
// records, exports or publishes it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/logging"
)

const defaultConfigPath = "config.yaml"

// errUnknownCommand makes main exit with status 2.
var errUnknownCommand = errors.New("unknown command")

var commands = []struct {
	name string
	desc string
	run  func(app *app, args []string) error
}{
	{"monitor", "Live sensor dashboard (default)", runMonitor},
	{"history", "Browse recorded history (CSV, or -sql)", runHistory},
	{"devices", "List main devices reported by the agent", runDevices},
	{"dump", "Print one snapshot (-format json|yaml|table)", runDump},
	{"bridge", "Poll and feed exporter, stores and publishers", runBridge},
}

// app carries what every subcommand needs.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Entry
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUnknownCommand) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("lhmsensors", flag.ContinueOnError)
	configPath := global.String("config", defaultConfigPath, "path to the YAML config file")
	global.Usage = printHelp
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	args = global.Args()

	explicitConfig := false
	global.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	name := "monitor"
	if len(args) > 0 {
		name = strings.ToLower(args[0])
		args = args[1:]
	}
	if name == "help" || name == "-h" || name == "--help" {
		printHelp()
		return nil
	}

	for _, c := range commands {
		if c.name != name {
			continue
		}
		a, err := newApp(*configPath, explicitConfig)
		if err != nil {
			return err
		}
		return c.run(a, args)
	}

	printHelp()
	return errors.Wrap(errUnknownCommand, name)
}

// newApp loads the config. The default config file is optional; an
// explicitly named one must exist.
func newApp(path string, required bool) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(path); statErr != nil && !required {
		path = ""
	}
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	log := logging.NewLogrus(cfg.Logging.Level, os.Stderr).
		WithFormat(cfg.Logging.Format).
		Get("lhmsensors")
	return &app{configPath: path, cfg: cfg, log: log}, nil
}

// component returns a logger tagged for one part of the program. All
// components share one logger so a level change reaches every one.
func (a *app) component(name string) *logrus.Entry {
	return a.log.WithField("Context", name)
}

func printHelp() {
	fmt.Println("Usage: lhmsensors [-config file] <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-8s  %s\n", c.name, c.desc)
	}
	fmt.Printf("  %-8s  %s\n", "help", "Show this help")
	fmt.Println()
	fmt.Printf("Config: %s (optional), overridden by %s_* environment variables\n",
		defaultConfigPath, config.EnvPrefix)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  lhmsensors")
	fmt.Println("  lhmsensors dump -format yaml")
	fmt.Println("  lhmsensors -config /etc/lhmsensors.yaml bridge")
}
