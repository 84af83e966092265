package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

const (
	streamReadDeadline = 60 * time.Second
	streamPingPeriod   = 30 * time.Second
)

// Stream broadcasts every snapshot to connected WebSocket clients. A client
// that connects receives the latest snapshot right away.
type Stream struct {
	upgrader websocket.Upgrader
	timeout  time.Duration
	log      *logrus.Entry

	mu      sync.RWMutex
	clients map[*websocket.Conn]*streamClient
	last    []byte
	closed  bool
}

type streamClient struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewStream creates a stream. Mount it as an http.Handler.
func NewStream(cfg config.StreamConfig, log *logrus.Entry) *Stream {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		timeout: timeout,
		log:     log,
		clients: make(map[*websocket.Conn]*streamClient),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := &streamClient{conn: conn, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[conn] = c
	last := s.last
	count := len(s.clients)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "clients": count}).Info("stream client connected")

	if last != nil {
		if err := s.write(c, websocket.TextMessage, last); err != nil {
			s.remove(c)
			return
		}
	}
	go s.keepAlive(c)
	go s.readLoop(c)
}

// readLoop discards client messages and notices disconnects.
func (s *Stream) readLoop(c *streamClient) {
	defer s.remove(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) keepAlive(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := s.write(c, websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}

func (s *Stream) write(c *streamClient, messageType int, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return c.conn.WriteMessage(messageType, body)
}

func (s *Stream) remove(c *streamClient) {
	c.closeOnce.Do(func() {
		close(c.done)
		s.mu.Lock()
		delete(s.clients, c.conn)
		s.mu.Unlock()
		_ = c.conn.Close()
		s.log.Debug("stream client disconnected")
	})
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish sends the snapshot to every client. Clients that cannot keep up
// are dropped; that is not an error for the caller.
func (s *Stream) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	body, err := json.Marshal(NewSnapshot(data, t))
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	s.mu.Lock()
	s.last = body
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(c *streamClient) {
			defer wg.Done()
			if err := s.write(c, websocket.TextMessage, body); err != nil {
				s.log.WithError(err).Debug("dropping slow stream client")
				s.remove(c)
			}
		}(c)
	}
	wg.Wait()
	return ctx.Err()
}

// Close disconnects every client and refuses new ones.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for _, c := range clients {
		_ = s.write(c, websocket.CloseMessage, msg)
		s.remove(c)
	}
	return nil
}
