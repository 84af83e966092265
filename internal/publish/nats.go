package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

const natsConnectTimeout = 5 * time.Second

// natsConn is the part of *nats.Conn the sink uses.
type natsConn interface {
	IsConnected() bool
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSSink publishes every snapshot as one JSON message on a subject.
type NATSSink struct {
	conn    natsConn
	subject string
	log     *logrus.Entry
	mu      sync.Mutex
}

// ConnectNATS connects to the server. Reconnects are handled by the client
// and logged.
func ConnectNATS(cfg config.NATSConfig, log *logrus.Entry) (*NATSSink, error) {
	log = log.WithField("server", cfg.URL)

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Debug("NATS connection closed")
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", cfg.URL)
	}
	log.Info("connected to NATS")
	return newNATSSink(conn, cfg.Subject, log), nil
}

func newNATSSink(conn natsConn, subject string, log *logrus.Entry) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, log: log.WithField("subject", subject)}
}

// Publish sends the snapshot. The client buffers while reconnecting.
func (s *NATSSink) Publish(_ context.Context, data *sensor.Data, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if !s.conn.IsConnected() {
		s.log.Debug("publishing while disconnected, message is buffered")
	}

	body, err := json.Marshal(NewSnapshot(data, t))
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return errors.Wrapf(s.conn.Publish(s.subject, body), "publish %s", s.subject)
}

// Close drains pending messages and closes the connection.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Drain()
	s.conn = nil
	return errors.Wrap(err, "drain nats")
}
