package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luki/lhmsensors/internal/sensor"
)

func strp(s string) *string { return &s }

func sampleRecords() []sensor.SensorData {
	return []sensor.SensorData{
		{
			SensorID: "amdcpu-0-temperature-2", Name: "Core (Tctl/Tdie) Temperature", Type: "Temperature",
			Value: "54,5", Min: "38,0", Max: "81,3", Unit: strp("°C"),
			DeviceName: "AMD Ryzen 7 7800X3D", DeviceType: "AMDCPU", DeviceID: "amdcpu-0",
		},
		{
			SensorID: "gpu-nvidia-0-factor-0", Name: "Fan Efficiency Factor", Type: "Factor",
			Value: "0,9", Min: "0,8", Max: "1,0",
			DeviceName: "NVIDIA GeForce RTX 4080 SUPER", DeviceType: "NVIDIA", DeviceID: "gpu-nvidia-test-0",
		},
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ds, err := New(dir)
	require.NoError(t, err)
	defer ds.Close()

	now := time.Date(2026, 2, 21, 14, 30, 0, 0, time.Local)
	require.NoError(t, ds.Write(sampleRecords(), now))
	require.NoError(t, ds.Write(sampleRecords()[:1], now.Add(time.Second)))
	require.NoError(t, ds.Close())

	loaded, err := LoadFile(filepath.Join(dir, "2026-02-21.csv"))
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, now, loaded[0].Time)
	assert.Equal(t, sampleRecords()[0], loaded[0].SensorData)
	assert.Equal(t, sampleRecords()[1], loaded[1].SensorData)
	assert.Nil(t, loaded[1].Unit)
	assert.Equal(t, now.Add(time.Second), loaded[2].Time)
}

func TestDiskStoreRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(dir)
	require.NoError(t, err)

	day1 := time.Date(2026, 2, 20, 23, 59, 59, 0, time.Local)
	require.NoError(t, ds.Write(sampleRecords(), day1))
	require.NoError(t, ds.Write(sampleRecords(), day1.Add(2*time.Second)))
	require.NoError(t, ds.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.csv"), []byte("x"), 0o644))

	days, err := ListDays(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-21", "2026-02-20"}, days)

	loaded, err := LoadDay(dir, "2026-02-20")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestLoadFileSkipsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-01-01.csv")
	body := "time,sensor_id,device_id,device_name,device_type,name,type,value,min,max,unit\n" +
		"not-a-time,a,b,c,d,e,f,1,1,1,\n" +
		"2026-01-01T10:00:00,short,row\n" +
		"2026-01-01T10:00:00,x,dev,Dev,CPU,X Load,Load,5,1,9,%\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "x", loaded[0].SensorID)
	assert.Equal(t, "%", loaded[0].UnitString())
}

func TestSQLStoreSQLite(t *testing.T) {
	s, err := NewSQLStore(SQLite, filepath.Join(t.TempDir(), "lhm.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2026, 2, 21, 14, 30, 0, 0, time.UTC)
	require.NoError(t, s.Write(sampleRecords(), now))
	require.NoError(t, s.Write(sampleRecords()[:1], now.Add(time.Minute)))
	require.NoError(t, s.Write(nil, now))

	loaded, err := s.Load(now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, loaded[0].Time.Equal(now))
	assert.Equal(t, sampleRecords()[0], loaded[0].SensorData)
	assert.Nil(t, loaded[1].Unit)

	all, err := s.Load(now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLStoreDays(t *testing.T) {
	s, err := NewSQLStore(SQLite, filepath.Join(t.TempDir(), "lhm.db"))
	require.NoError(t, err)
	defer s.Close()

	days, err := s.Days()
	require.NoError(t, err)
	assert.Empty(t, days)

	evening := time.Date(2026, 2, 21, 23, 30, 0, 0, time.Local)
	require.NoError(t, s.Write(sampleRecords(), evening))
	require.NoError(t, s.Write(sampleRecords(), evening.Add(time.Hour)))
	require.NoError(t, s.Write(sampleRecords()[:1], evening.AddDate(0, 0, -3)))

	days, err = s.Days()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-22", "2026-02-21", "2026-02-18"}, days)

	loaded, err := s.LoadDay("2026-02-21")
	require.NoError(t, err)
	assert.Len(t, loaded, len(sampleRecords()))
	for _, r := range loaded {
		assert.True(t, r.Time.Equal(evening))
	}

	_, err = s.LoadDay("yesterday")
	assert.Error(t, err)
}

func TestDirHistory(t *testing.T) {
	dir := t.TempDir()
	ds, err := New(dir)
	require.NoError(t, err)
	now := time.Date(2026, 2, 21, 14, 30, 0, 0, time.Local)
	require.NoError(t, ds.Write(sampleRecords(), now))
	require.NoError(t, ds.Close())

	var h History = DirHistory(dir)
	days, err := h.Days()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-21"}, days)

	loaded, err := h.LoadDay(days[0])
	require.NoError(t, err)
	assert.Len(t, loaded, len(sampleRecords()))
}

func TestSQLStoreUnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore("oracle", "whatever")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestStatements(t *testing.T) {
	assert.Contains(t, insertStatement(Postgres), "$12)")
	assert.Contains(t, insertStatement(MySQL), "?, ?)")
	assert.Contains(t, selectStatement(Postgres), "recorded_at >= $1 AND recorded_at < $2")
	assert.Contains(t, createStatement(MySQL), "AUTO_INCREMENT")
	assert.Contains(t, existsStatement(Postgres), "recorded_at < $2 LIMIT 1")
	assert.Contains(t, createStatement(Postgres), "BIGSERIAL")
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Write(records []sensor.SensorData, t time.Time) error {
	return m.Called(records, t).Error(0)
}

func (m *mockBackend) Close() error {
	return m.Called().Error(0)
}

func TestManagerFanOut(t *testing.T) {
	logger, hook := test.NewNullLogger()
	records := sampleRecords()
	now := time.Now()

	ok := new(mockBackend)
	ok.On("Write", records, now).Return(nil)
	ok.On("Close").Return(nil)
	broken := new(mockBackend)
	broken.On("Write", records, now).Return(errors.New("disk full"))
	broken.On("Close").Return(nil)

	m := NewManager(logrus.NewEntry(logger), broken)
	m.Add(ok)
	assert.Equal(t, 2, m.Len())

	err := m.Write(records, now)
	assert.EqualError(t, err, "1 of 2 store backends failed")
	ok.AssertCalled(t, "Write", records, now)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	require.NoError(t, m.Close())
	ok.AssertExpectations(t)
	broken.AssertExpectations(t)
	assert.Zero(t, m.Len())
}
