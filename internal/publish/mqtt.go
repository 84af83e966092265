package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
	mqttKeepAlive         = 60 * time.Second
)

// mqttClient is the part of the paho client the sink uses.
type mqttClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes one state message per sensor and announces every sensor
// once through Home Assistant MQTT discovery.
type MQTTSink struct {
	client mqttClient
	cfg    config.MQTTConfig
	log    *logrus.Entry

	mu        sync.Mutex
	announced *bloom.BloomFilter
	last      map[string]string
}

// ConnectMQTT connects to the configured broker.
func ConnectMQTT(cfg config.MQTTConfig, log *logrus.Entry) (*MQTTSink, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "lhmsensors-" + uuid.NewString()[:8]
	}
	log = log.WithField("broker", cfg.Broker)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetWill(availabilityTopic(cfg), "offline", 1, true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		log.Info("connected to MQTT broker")
		c.Publish(availabilityTopic(cfg), 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return nil, errors.Errorf("connect %s: timeout after %v", cfg.Broker, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect %s", cfg.Broker)
	}

	return newMQTTSink(client, cfg, log), nil
}

func newMQTTSink(client mqttClient, cfg config.MQTTConfig, log *logrus.Entry) *MQTTSink {
	capacity := cfg.FilterCapacity
	if capacity == 0 {
		capacity = 100000
	}
	probability := cfg.FilterProbability
	if probability <= 0 || probability >= 1 {
		probability = 0.01
	}
	return &MQTTSink{
		client:    client,
		cfg:       cfg,
		log:       log,
		announced: bloom.NewWithEstimates(capacity, probability),
		last:      make(map[string]string),
	}
}

// Publish announces unseen sensors and publishes their states. With
// suppress_unchanged set, a sensor whose raw value did not change since the
// previous publish is skipped.
func (s *MQTTSink) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetAnnouncements()

	for _, r := range data.Readings() {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := []byte(r.DeviceID + "/" + r.SensorID)
		if !s.announced.Test(key) {
			if err := s.announce(r); err != nil {
				return err
			}
			s.announced.Add(key)
		}

		if prev, ok := s.last[r.SensorID]; ok && s.cfg.SuppressUnchanged && prev == r.Value {
			continue
		}
		payload, err := json.Marshal(NewReading(r, t))
		if err != nil {
			return errors.Wrap(err, "encode state")
		}
		if err := s.publish(StateTopic(s.cfg.TopicPrefix, r), s.cfg.Retain, payload); err != nil {
			return err
		}
		s.last[r.SensorID] = r.Value
	}
	return nil
}

// resetAnnouncements clears the filter once its estimated fill passes the
// configured ratio. Sensors are then announced again, which is harmless as
// discovery configs are retained.
func (s *MQTTSink) resetAnnouncements() {
	ratio := s.cfg.FilterResetRatio
	if ratio <= 0 {
		ratio = 0.75
	}
	usage := float64(s.announced.ApproximatedSize()) / float64(s.announced.Cap())
	if usage >= ratio {
		s.log.WithField("usage", usage).Debug("resetting discovery filter")
		s.announced.ClearAll()
	}
}

func (s *MQTTSink) announce(r sensor.SensorData) error {
	payload, err := json.Marshal(NewDiscoveryConfig(s.cfg, r))
	if err != nil {
		return errors.Wrap(err, "encode discovery config")
	}
	return s.publish(DiscoveryTopic(s.cfg.DiscoveryPrefix, s.cfg.NodeID, r), true, payload)
}

func (s *MQTTSink) publish(topic string, retained bool, payload []byte) error {
	token := s.client.Publish(topic, byte(s.cfg.QoS), retained, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("publish %s: timeout", topic)
	}
	return errors.Wrapf(token.Error(), "publish %s", topic)
}

// Close publishes the offline marker and disconnects.
func (s *MQTTSink) Close() error {
	if s.client.IsConnectionOpen() {
		token := s.client.Publish(availabilityTopic(s.cfg), 1, true, "offline")
		token.WaitTimeout(mqttPublishTimeout)
	}
	s.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}

// ── Topics and discovery ─────────────────────────────────────────────

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

func topicSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return topicReplacer.Replace(s)
}

// StateTopic is <prefix>/<device_id>/<sensor_id>/state.
func StateTopic(prefix string, r sensor.SensorData) string {
	return fmt.Sprintf("%s/%s/%s/state", prefix, topicSegment(r.DeviceID), topicSegment(r.SensorID))
}

// DiscoveryTopic is <discovery_prefix>/sensor/<node_id>/<sensor_id>/config.
func DiscoveryTopic(discoveryPrefix, nodeID string, r sensor.SensorData) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, topicSegment(nodeID), topicSegment(r.SensorID))
}

func availabilityTopic(cfg config.MQTTConfig) string {
	return cfg.TopicPrefix + "/status"
}

// DiscoveryDevice groups entities under one device in Home Assistant.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer"`
}

// DiscoveryConfig is a Home Assistant MQTT sensor discovery payload.
type DiscoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	ValueTemplate     string          `json:"value_template"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	Device            DiscoveryDevice `json:"device"`
}

var deviceClasses = map[sensor.SensorType]string{
	sensor.SensorTypeTemperature: "temperature",
	sensor.SensorTypeVoltage:     "voltage",
	sensor.SensorTypeCurrent:     "current",
	sensor.SensorTypePower:       "power",
	sensor.SensorTypeClock:       "frequency",
	sensor.SensorTypeFrequency:   "frequency",
	sensor.SensorTypeEnergy:      "energy_storage",
	sensor.SensorTypeHumidity:    "humidity",
	sensor.SensorTypeData:        "data_size",
	sensor.SensorTypeSmallData:   "data_size",
	sensor.SensorTypeThroughput:  "data_rate",
	sensor.SensorTypeNoise:       "sound_pressure",
	sensor.SensorTypeTimeSpan:    "duration",
}

// NewDiscoveryConfig builds the discovery payload for one sensor.
func NewDiscoveryConfig(cfg config.MQTTConfig, r sensor.SensorData) DiscoveryConfig {
	dc := DiscoveryConfig{
		Name:              r.Name,
		UniqueID:          fmt.Sprintf("%s_%s", topicSegment(cfg.NodeID), topicSegment(r.SensorID)),
		StateTopic:        StateTopic(cfg.TopicPrefix, r),
		AvailabilityTopic: availabilityTopic(cfg),
		ValueTemplate:     "{{ value_json.value }}",
		Unit:              r.UnitString(),
		Device: DiscoveryDevice{
			Identifiers:  []string{fmt.Sprintf("%s_%s", topicSegment(cfg.NodeID), topicSegment(r.DeviceID))},
			Name:         r.DeviceName,
			Model:        sensor.FriendlyName(r.DeviceType),
			Manufacturer: "LibreHardwareMonitor",
		},
	}
	if _, numeric := r.Number(); numeric {
		dc.StateClass = "measurement"
		// a device class requires a unit Home Assistant knows for it
		if dc.Unit != "" {
			dc.DeviceClass = deviceClasses[sensor.SensorType(r.Type)]
		}
	}
	return dc
}
