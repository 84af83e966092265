package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luki/lhmsensors/internal/exporter"
	"github.com/luki/lhmsensors/internal/sensor"
	"github.com/luki/lhmsensors/internal/transform"
)

type stubReader struct {
	data  *sensor.Data
	err   error
	calls int
}

func (s *stubReader) Read(context.Context) (*sensor.Data, error) {
	s.calls++
	return s.data, s.err
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Write(records []sensor.SensorData, t time.Time) error {
	return m.Called(records, t).Error(0)
}

func (m *mockStore) Close() error { return m.Called().Error(0) }

type mockSink struct{ mock.Mock }

func (m *mockSink) Publish(ctx context.Context, data *sensor.Data, t time.Time) error {
	return m.Called(data, t).Error(0)
}

func (m *mockSink) Close() error { return m.Called().Error(0) }

func snapshot() *sensor.Data {
	unit := "°C"
	return &sensor.Data{
		Sensors: map[string]sensor.SensorData{
			"amdcpu-0-temperature-2": {
				SensorID: "amdcpu-0-temperature-2", Name: "Core (Tctl/Tdie) Temperature",
				Type: "Temperature", Value: "45,0", Min: "38,0", Max: "71,3", Unit: &unit,
				DeviceName: "AMD Ryzen 7 7800X3D", DeviceType: "AMDCPU", DeviceID: "amdcpu-0",
			},
		},
		MainDevices: map[string]string{"amdcpu-0": "AMD Ryzen 7 7800X3D"},
	}
}

func gauge(t *testing.T, e *exporter.Exporter, name string) float64 {
	t.Helper()
	families, err := e.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func newTestBridge(r Reader, opts ...Option) (*Bridge, *test.Hook, time.Time) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := New(r, append([]Option{WithLogger(logrus.NewEntry(logger))}, opts...)...)
	b.now = func() time.Time { return now }
	return b, hook, now
}

func TestPollOnceFeedsEveryOutput(t *testing.T) {
	data := snapshot()
	e := exporter.New()
	st := new(mockStore)
	sk := new(mockSink)

	b, _, now := newTestBridge(&stubReader{data: data},
		WithExporter(e), WithStore(st), WithSink(sk))

	st.On("Write", data.Readings(), now).Return(nil)
	sk.On("Publish", data, now).Return(nil)

	require.NoError(t, b.PollOnce(context.Background()))
	st.AssertExpectations(t)
	sk.AssertExpectations(t)
	assert.Equal(t, 1.0, gauge(t, e, "lhm_sensors"))
	assert.Equal(t, float64(now.Unix()), gauge(t, e, "lhm_last_update_timestamp_seconds"))
}

func TestPollOnceWithoutOutputs(t *testing.T) {
	b, _, _ := newTestBridge(&stubReader{data: snapshot()})
	assert.NoError(t, b.PollOnce(context.Background()))
}

func TestPollOnceReadError(t *testing.T) {
	e := exporter.New()
	sk := new(mockSink)
	b, _, _ := newTestBridge(&stubReader{err: sensor.ErrNoDevices}, WithExporter(e), WithSink(sk))

	err := b.PollOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sensor.ErrNoDevices))
	assert.Equal(t, 1.0, gauge(t, e, "lhm_scrape_errors_total"))
	sk.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPollOnceOutputFailureDoesNotStopOthers(t *testing.T) {
	data := snapshot()
	st := new(mockStore)
	sk := new(mockSink)
	b, _, now := newTestBridge(&stubReader{data: data}, WithStore(st), WithSink(sk))

	st.On("Write", data.Readings(), now).Return(errors.New("disk full"))
	sk.On("Publish", data, now).Return(nil)

	assert.EqualError(t, b.PollOnce(context.Background()), "store: disk full")
	sk.AssertExpectations(t)
}

func TestPollOnceAppliesTransformer(t *testing.T) {
	tr, err := transform.New(`function transform(r) {
		if (r.device_id === "amdcpu-0") { r.name = "CPU " + r.name; }
		return r;
	}`, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	sk := new(mockSink)
	b, _, now := newTestBridge(&stubReader{data: snapshot()}, WithSink(sk), WithTransformer(tr))

	sk.On("Publish", mock.MatchedBy(func(d *sensor.Data) bool {
		return d.Sensors["amdcpu-0-temperature-2"].Name == "CPU Core (Tctl/Tdie) Temperature"
	}), now).Return(nil)

	require.NoError(t, b.PollOnce(context.Background()))
	sk.AssertExpectations(t)

	b.SetTransformer(nil)
	sk.On("Publish", mock.MatchedBy(func(d *sensor.Data) bool {
		return d.Sensors["amdcpu-0-temperature-2"].Name == "Core (Tctl/Tdie) Temperature"
	}), now).Return(nil)
	require.NoError(t, b.PollOnce(context.Background()))
	sk.AssertNumberOfCalls(t, "Publish", 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	r := &stubReader{err: sensor.ErrNoDevices}
	b, hook, _ := newTestBridge(r, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Message == "agent reports no devices" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	b := New(&stubReader{}, WithInterval(0))
	assert.Equal(t, defaultInterval, b.interval)
}
