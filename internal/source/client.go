// Package source fetches the sensor tree from a LibreHardwareMonitor web
// server.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/luki/lhmsensors/internal/config"
	"github.com/luki/lhmsensors/internal/sensor"
)

// ErrUnexpectedStatus is returned when the server answers with anything but 200.
var ErrUnexpectedStatus = errors.New("source: unexpected HTTP status")

const (
	dataPath        = "/data.json"
	maxDocumentSize = 32 << 20
)

// Client reads data.json from one LibreHardwareMonitor instance.
type Client struct {
	url      string
	username string
	password string
	retries  uint64
	http     *http.Client
	log      *logrus.Entry

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// New creates a client for cfg. A URL that does not already name a .json
// document gets /data.json appended.
func New(cfg config.SourceConfig, log *logrus.Entry) *Client {
	url := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(url, ".json") {
		url += dataPath
	}
	retries := 0
	if cfg.Retries > 0 {
		retries = cfg.Retries
	}
	return &Client{
		url:      url,
		username: cfg.Username,
		password: cfg.Password,
		retries:  uint64(retries),
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log.WithField("source", url),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// URL returns the document URL the client polls.
func (c *Client) URL() string {
	return c.url
}

// Fetch downloads and decodes the sensor tree, retrying transient failures.
// 4xx responses are not retried.
func (c *Client) Fetch(ctx context.Context) (*sensor.Node, error) {
	var payload []byte
	attempt := 0

	operation := func() error {
		attempt++
		body, err := c.get(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.WithError(err).WithField("attempt", attempt).Debug("fetch failed")
			return err
		}
		payload = body
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, errors.Wrapf(err, "fetch %s", c.url)
	}

	root, err := sensor.Decode(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", c.url)
	}
	return root, nil
}

// Read fetches the tree and flattens it.
func (c *Client) Read(ctx context.Context) (*sensor.Data, error) {
	root, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return sensor.ParseSensorData(root)
}

// Devices fetches the tree and lists the main device names.
func (c *Client) Devices(ctx context.Context) ([]string, error) {
	root, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return sensor.MainDeviceNames(root)
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.Wrap(ErrUnexpectedStatus, fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}
