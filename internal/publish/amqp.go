package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

const (
	exchangeTypeTopic = "topic"
	durable           = true
	deleteWhenUnused  = false
	internal          = false
	noWait            = false
	mandatory         = false
	immediate         = false
)

// amqpChannel is the part of *amqp.Channel the sink uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes every snapshot as one JSON message to a topic exchange.
type AMQPSink struct {
	cfg     config.AMQPConfig
	log     *logrus.Entry
	conn    *amqp.Connection
	channel amqpChannel
	mu      sync.Mutex
}

// DialAMQP connects to the broker, retrying with exponential backoff, and
// declares the exchange.
func DialAMQP(ctx context.Context, cfg config.AMQPConfig, log *logrus.Entry) (*AMQPSink, error) {
	s := &AMQPSink{cfg: cfg, log: log.WithField("exchange", cfg.Exchange)}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(s.connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		s.log.WithError(err).Warn("amqp dial failed")
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := declareExchange(channel, s.cfg.Exchange); err != nil {
		channel.Close()
		conn.Close()
		return backoff.Permanent(err)
	}

	s.mu.Lock()
	s.conn = conn
	s.channel = channel
	s.mu.Unlock()
	return nil
}

func declareExchange(ch amqpChannel, name string) error {
	return errors.Wrapf(ch.ExchangeDeclare(name, exchangeTypeTopic, durable, deleteWhenUnused, internal, noWait, nil),
		"declare exchange %s", name)
}

func newAMQPSink(channel amqpChannel, cfg config.AMQPConfig, log *logrus.Entry) (*AMQPSink, error) {
	if err := declareExchange(channel, cfg.Exchange); err != nil {
		return nil, err
	}
	return &AMQPSink{cfg: cfg, log: log, channel: channel}, nil
}

// Publish sends the snapshot with routing key cfg.RoutingKey.
func (s *AMQPSink) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel == nil || (s.conn != nil && s.conn.IsClosed()) {
		return ErrNotConnected
	}

	body, err := json.Marshal(NewSnapshot(data, t))
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	err = s.channel.PublishWithContext(ctx, s.cfg.Exchange, s.cfg.RoutingKey, mandatory, immediate, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    t,
		Body:         body,
	})
	return errors.Wrap(err, "publish snapshot")
}

// Close closes the channel and connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.channel != nil {
		err = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil && !s.conn.IsClosed() {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
