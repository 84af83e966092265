package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"

	"github.com/luki/lhmsensors/internal/sensor"
)

// ErrUnsupportedDriver is returned for drivers other than sqlite3, mysql and
// postgres.
var ErrUnsupportedDriver = errors.New("store: unsupported SQL driver")

// Supported drivers.
const (
	SQLite   = "sqlite3"
	MySQL    = "mysql"
	Postgres = "postgres"
)

const tableName = "sensor_readings"

// SQLStore appends readings to the sensor_readings table.
type SQLStore struct {
	db     *sql.DB
	driver string
	insert string
	query  string
	exists string
}

// NewSQLStore opens dsn with driver, checks the connection and creates the
// table if it does not exist.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case SQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	case Postgres:
	default:
		return nil, errors.Wrap(ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	if driver == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{
		db:     db,
		driver: driver,
		insert: insertStatement(driver),
		query:  selectStatement(driver),
		exists: existsStatement(driver),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec(createStatement(s.driver)); err != nil {
		return errors.Wrapf(err, "create %s", tableName)
	}
	index := fmt.Sprintf("CREATE INDEX idx_%s_time ON %s (recorded_at)", tableName, tableName)
	if s.driver != MySQL {
		index = fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_time ON %s (recorded_at)", tableName, tableName)
	}
	if _, err := s.db.Exec(index); err != nil && s.driver != MySQL {
		// MySQL has no IF NOT EXISTS for indexes; a duplicate is expected there.
		return errors.Wrap(err, "create index")
	}
	return nil
}

// Write inserts records in one transaction.
func (s *SQLStore) Write(records []sensor.SensorData, t time.Time) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	stmt, err := tx.Prepare(s.insert)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	ts := t.UTC()
	for _, r := range records {
		var unit, number interface{}
		if r.Unit != nil {
			unit = *r.Unit
		}
		if v, ok := r.Number(); ok {
			number = v
		}
		if _, err := stmt.Exec(ts, r.SensorID, r.DeviceID, r.DeviceName, r.DeviceType,
			r.Name, r.Type, r.Value, r.Min, r.Max, unit, number); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert %s", r.SensorID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Load returns readings recorded in [from, to), oldest first.
func (s *SQLStore) Load(from, to time.Time) ([]StoredReading, error) {
	rows, err := s.db.Query(s.query, from.UTC(), to.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "query readings")
	}
	defer rows.Close()

	var out []StoredReading
	for rows.Next() {
		var (
			r    StoredReading
			unit sql.NullString
		)
		if err := rows.Scan(&r.Time, &r.SensorID, &r.DeviceID, &r.DeviceName, &r.DeviceType,
			&r.Name, &r.Type, &r.Value, &r.Min, &r.Max, &unit); err != nil {
			return nil, errors.Wrap(err, "scan reading")
		}
		if unit.Valid {
			u := unit.String
			r.Unit = &u
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate readings")
}

// LoadDay returns the readings of one local calendar day.
func (s *SQLStore) LoadDay(day string) ([]StoredReading, error) {
	start, err := time.ParseInLocation(fileLayout, day, time.Local)
	if err != nil {
		return nil, errors.Wrapf(err, "parse day %q", day)
	}
	return s.Load(start, start.AddDate(0, 0, 1))
}

// Days lists the local dates holding at least one reading, newest first.
func (s *SQLStore) Days() ([]string, error) {
	first, ok, err := s.edge("ASC")
	if err != nil || !ok {
		return nil, err
	}
	last, _, err := s.edge("DESC")
	if err != nil {
		return nil, err
	}

	firstDay := startOfDay(first.In(time.Local))
	var days []string
	for day := startOfDay(last.In(time.Local)); !day.Before(firstDay); day = day.AddDate(0, 0, -1) {
		var one int
		err := s.db.QueryRow(s.exists, day.UTC(), day.AddDate(0, 0, 1).UTC()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "check day")
		}
		days = append(days, day.Format(fileLayout))
	}
	return days, nil
}

// edge returns the oldest (ASC) or newest (DESC) recorded_at.
func (s *SQLStore) edge(order string) (time.Time, bool, error) {
	var t time.Time
	q := fmt.Sprintf("SELECT recorded_at FROM %s ORDER BY recorded_at %s LIMIT 1", tableName, order)
	err := s.db.QueryRow(q).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "query time range")
	}
	return t, true, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var columns = []string{
	"recorded_at", "sensor_id", "device_id", "device_name", "device_type",
	"name", "sensor_type", "value_text", "min_text", "max_text", "unit", "value_num",
}

func placeholders(driver string, n int) string {
	ph := make([]string, n)
	for i := range ph {
		if driver == Postgres {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

func insertStatement(driver string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), placeholders(driver, len(columns)))
}

func selectStatement(driver string) string {
	ph := strings.Split(placeholders(driver, 2), ", ")
	return fmt.Sprintf("SELECT %s FROM %s WHERE recorded_at >= %s AND recorded_at < %s ORDER BY recorded_at, id",
		strings.Join(columns[:len(columns)-1], ", "), tableName, ph[0], ph[1])
}

func existsStatement(driver string) string {
	ph := strings.Split(placeholders(driver, 2), ", ")
	return fmt.Sprintf("SELECT 1 FROM %s WHERE recorded_at >= %s AND recorded_at < %s LIMIT 1",
		tableName, ph[0], ph[1])
}

func createStatement(driver string) string {
	var id, ts, num string
	switch driver {
	case MySQL:
		id, ts, num = "BIGINT AUTO_INCREMENT PRIMARY KEY", "DATETIME(3)", "DOUBLE"
	case Postgres:
		id, ts, num = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "DOUBLE PRECISION"
	default:
		id, ts, num = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP", "REAL"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	recorded_at %s NOT NULL,
	sensor_id VARCHAR(255) NOT NULL,
	device_id VARCHAR(255) NOT NULL,
	device_name VARCHAR(255) NOT NULL,
	device_type VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	sensor_type VARCHAR(64) NOT NULL,
	value_text VARCHAR(64) NOT NULL,
	min_text VARCHAR(64) NOT NULL,
	max_text VARCHAR(64) NOT NULL,
	unit VARCHAR(32),
	value_num %s
)`, tableName, id, ts, num)
}
