package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/lhmsensors/internal/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8085", cfg.Source.URL)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Source.PollInterval)
	assert.Equal(t, 3, cfg.Source.Retries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Store.CSV.Enabled)
	assert.False(t, cfg.Store.SQL.Enabled)
	assert.Equal(t, "sqlite3", cfg.Store.SQL.Driver)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, ":9184", cfg.Metrics.Listen)
	assert.Equal(t, "lhm.snapshot", cfg.NATS.Subject)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, "/ws", cfg.Stream.Path)
	assert.False(t, cfg.Transform.Enabled())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
source:
  url: http://10.0.0.5:8085
  poll_interval: 500ms
  username: admin
logging:
  level: debug
  format: json
store:
  sql:
    enabled: true
    driver: postgres
    dsn: postgres://lhm@localhost/lhm?sslmode=disable
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 1
transform:
  script_code: "function transform(r) { return r }"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8085", cfg.Source.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Source.PollInterval)
	assert.Equal(t, "admin", cfg.Source.Username)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres", cfg.Store.SQL.Driver)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.True(t, cfg.Transform.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LHM_SOURCE_URL", "http://envhost:9000")
	t.Setenv("LHM_LOGGING_LEVEL", "warn")

	path := writeConfig(t, "source:\n  url: http://filehost:8085\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://envhost:9000", cfg.Source.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
store:
  sql:
    enabled: true
    driver: oracle
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty url", func(c *Config) { c.Source.URL = "" }, false},
		{"zero poll", func(c *Config) { c.Source.PollInterval = 0 }, false},
		{"negative retries", func(c *Config) { c.Source.Retries = -1 }, false},
		{"sql without dsn", func(c *Config) { c.Store.SQL.Enabled = true; c.Store.SQL.DSN = "" }, false},
		{"mqtt qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, false},
		{"mqtt filter", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.FilterProbability = 1 }, false},
		{"mqtt filter off", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.SuppressUnchanged = false
			c.MQTT.FilterProbability = 0
		}, true},
		{"amqp exchange", func(c *Config) { c.AMQP.Enabled = true; c.AMQP.Exchange = "" }, false},
		{"influx bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "" }, false},
		{"metrics listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, false},
		{"nats subject", func(c *Config) { c.NATS.Enabled = true; c.NATS.Subject = "" }, false},
		{"nats defaults", func(c *Config) { c.NATS.Enabled = true }, true},
		{"stream without metrics", func(c *Config) { c.Stream.Enabled = true }, false},
		{"stream on metrics path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Stream.Enabled = true
			c.Stream.Path = "/metrics"
		}, false},
		{"stream", func(c *Config) { c.Metrics.Enabled = true; c.Stream.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
			}
		})
	}
}

func TestWatchReloadsFinalContent(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	var mu sync.Mutex
	var levels []string
	err := watch(path, logging.Discard(), 200*time.Millisecond, func(cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, cfg.Logging.Level)
		return nil
	})
	require.NoError(t, err)

	// An editor truncating the file before writing it.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(600 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"debug"}, levels)
}
