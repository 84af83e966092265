package config

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var sqlDrivers = map[string]bool{
	"sqlite3":  true,
	"mysql":    true,
	"postgres": true,
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return errors.Wrap(ErrInvalid, "source.url is required")
	}
	if c.Source.PollInterval <= 0 {
		return errors.Wrap(ErrInvalid, "source.poll_interval must be positive")
	}
	if c.Source.Timeout <= 0 {
		return errors.Wrap(ErrInvalid, "source.timeout must be positive")
	}
	if c.Source.Retries < 0 {
		return errors.Wrap(ErrInvalid, "source.retries must not be negative")
	}

	if c.Store.SQL.Enabled {
		if !sqlDrivers[c.Store.SQL.Driver] {
			return errors.Wrapf(ErrInvalid, "store.sql.driver %q is not one of sqlite3, mysql, postgres", c.Store.SQL.Driver)
		}
		if c.Store.SQL.DSN == "" {
			return errors.Wrap(ErrInvalid, "store.sql.dsn is required")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.Wrap(ErrInvalid, "mqtt.broker is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.Wrapf(ErrInvalid, "mqtt.qos %d out of range", c.MQTT.QoS)
		}
		if c.MQTT.SuppressUnchanged && (c.MQTT.FilterCapacity == 0 || c.MQTT.FilterProbability <= 0 || c.MQTT.FilterProbability >= 1) {
			return errors.Wrap(ErrInvalid, "mqtt filter settings out of range")
		}
	}

	if c.AMQP.Enabled && (c.AMQP.URL == "" || c.AMQP.Exchange == "") {
		return errors.Wrap(ErrInvalid, "amqp.url and amqp.exchange are required")
	}

	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		return errors.Wrap(ErrInvalid, "nats.url and nats.subject are required")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return errors.Wrap(ErrInvalid, "influxdb.url and influxdb.bucket are required")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.Wrap(ErrInvalid, "metrics.listen is required")
	}
	if c.Stream.Enabled {
		if !c.Metrics.Enabled {
			return errors.Wrap(ErrInvalid, "stream needs metrics.enabled, it shares the metrics listener")
		}
		if !strings.HasPrefix(c.Stream.Path, "/") || c.Stream.Path == c.Metrics.Path {
			return errors.Wrapf(ErrInvalid, "stream.path %q must start with / and differ from metrics.path", c.Stream.Path)
		}
	}
	return nil
}
