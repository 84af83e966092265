package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/luki/lhmsensors/internal/sensor"
)

const (
	dirName    = ".lhm-sensors"
	timeLayout = "2006-01-02T15:04:05"
	fileLayout = "2006-01-02"
)

var header = []string{
	"time", "sensor_id", "device_id", "device_name", "device_type",
	"name", "type", "value", "min", "max", "unit",
}

// DiskStore handles persistent CSV storage of sensor readings.
// Files are stored as <dir>/YYYY-MM-DD.csv with the columns in header.
// Values are written exactly as the agent formatted them.
type DiskStore struct {
	dir     string
	current *os.File
	writer  *csv.Writer
	curDate string
}

// New creates a disk store in dir, creating it if needed. An empty dir means
// ~/.lhm-sensors.
func New(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = DataDir()
		if dir == "" {
			return nil, errors.New("cannot find home dir")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cannot create data dir")
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (d *DiskStore) Dir() string {
	return d.dir
}

// Write appends a batch of readings to the CSV file for t's day.
func (d *DiskStore) Write(records []sensor.SensorData, t time.Time) error {
	dateStr := t.Format(fileLayout)

	if d.curDate != dateStr || d.current == nil {
		if err := d.Close(); err != nil {
			return err
		}
		path := filepath.Join(d.dir, dateStr+".csv")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "open day file")
		}
		d.current = f
		d.writer = csv.NewWriter(f)
		d.curDate = dateStr

		info, err := f.Stat()
		if err == nil && info.Size() == 0 {
			if err := d.writer.Write(header); err != nil {
				return errors.Wrap(err, "write header")
			}
		}
	}

	ts := t.Format(timeLayout)
	for _, r := range records {
		if err := d.writer.Write([]string{
			ts,
			r.SensorID,
			r.DeviceID,
			r.DeviceName,
			r.DeviceType,
			r.Name,
			r.Type,
			r.Value,
			r.Min,
			r.Max,
			r.UnitString(),
		}); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	d.writer.Flush()
	return d.writer.Error()
}

// Close flushes and closes the current file.
func (d *DiskStore) Close() error {
	if d.writer != nil {
		d.writer.Flush()
		d.writer = nil
	}
	if d.current != nil {
		err := d.current.Close()
		d.current = nil
		return err
	}
	return nil
}

// DirHistory browses the CSV logs in a directory. An empty value means
// DataDir().
type DirHistory string

// Days lists the dates that have a log file.
func (h DirHistory) Days() ([]string, error) {
	return ListDays(string(h))
}

// LoadDay reads one day's log file.
func (h DirHistory) LoadDay(day string) ([]StoredReading, error) {
	return LoadDay(string(h), day)
}

// ListDays returns available log dates (newest first). An empty dir means
// DataDir().
func ListDays(dir string) ([]string, error) {
	if dir == "" {
		dir = DataDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		day := strings.TrimSuffix(name, ".csv")
		if _, err := time.Parse(fileLayout, day); err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// LoadDay reads all readings from a specific day's CSV file in dir.
func LoadDay(dir, day string) ([]StoredReading, error) {
	if dir == "" {
		dir = DataDir()
	}
	return LoadFile(filepath.Join(dir, day+".csv"))
}

// LoadFile reads all readings from a CSV file. Rows that do not parse are
// skipped.
func LoadFile(path string) ([]StoredReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	var readings []StoredReading
	for i, row := range records {
		if i == 0 && len(row) > 0 && row[0] == "time" {
			continue
		}
		if len(row) < len(header) {
			continue
		}

		t, err := time.ParseInLocation(timeLayout, row[0], time.Local)
		if err != nil {
			continue
		}

		r := StoredReading{
			Time: t,
			SensorData: sensor.SensorData{
				SensorID:   row[1],
				DeviceID:   row[2],
				DeviceName: row[3],
				DeviceType: row[4],
				Name:       row[5],
				Type:       row[6],
				Value:      row[7],
				Min:        row[8],
				Max:        row[9],
			},
		}
		if row[10] != "" {
			unit := row[10]
			r.Unit = &unit
		}
		readings = append(readings, r)
	}

	return readings, nil
}

// DataDir returns the path to the default data directory, or "" when the
// home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName)
}
