package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sensorcast/internal/metrics"
	"sensorcast/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const table = "sensor_data"

// DB is the MySQL-backed reading store
type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// NewDB creates a new database connection and initializes the schema.
// Day and month keys are read in loc, or time.Local when loc is nil; the
// DSN loc parameter should name the same zone.
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true&loc=Local"
func NewDB(dsn string, loc *time.Location) (*DB, error) {
	if loc == nil {
		loc = time.Local
	}

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := conn.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, loc: loc}

	if err := db.initSchema(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			steps INT NOT NULL,
			datetime DATETIME(6) NOT NULL,
			raw_voltage DOUBLE NOT NULL,
			raw_current DOUBLE NOT NULL,
			battery_level DOUBLE NULL,
			INDEX idx_sensor_data_datetime (datetime)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return errors.Wrap(err, "failed to execute schema statement")
		}
	}

	return nil
}

func (db *DB) recordPoolStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// InsertReading stores one reading and returns its id
func (db *DB) InsertReading(ctx context.Context, r models.Reading) (int64, error) {
	defer db.recordPoolStats()

	var battery sql.NullFloat64
	if r.BatteryLevel != nil {
		battery = sql.NullFloat64{Float64: *r.BatteryLevel, Valid: true}
	}

	query := `INSERT INTO sensor_data (steps, datetime, raw_voltage, raw_current, battery_level) VALUES (?, ?, ?, ?, ?)`
	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, query, r.Steps, r.Timestamp, r.Voltage, r.Current, battery)
	metrics.RecordDBQuery("INSERT", table, time.Since(queryStart), err)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert reading at %s", r.Timestamp)
	}

	return res.LastInsertId()
}

// rangeClause renders the WHERE clause for a time range over the datetime column
func rangeClause(r models.Range) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if !r.Start.IsZero() {
		conds = append(conds, "datetime >= ?")
		args = append(args, r.Start)
	}
	if !r.End.IsZero() {
		conds = append(conds, "datetime < ?")
		args = append(args, r.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderKeyword(o models.Order) string {
	if o == models.Descending {
		return "DESC"
	}
	return "ASC"
}

// GroupAverage averages a field per calendar day or month, ascending by period.
// Readings without a value for the field (NULL battery level) are ignored.
func (db *DB) GroupAverage(ctx context.Context, field models.Field, unit models.Unit) ([]models.PeriodValue, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}

	// period keys are scanned as strings and parsed in local time
	key := "DATE_FORMAT(datetime, '%Y-%m-%d')"
	if unit == models.Month {
		key = "DATE_FORMAT(datetime, '%Y-%m-01')"
	}
	col := field.Column()
	query := fmt.Sprintf(
		`SELECT %s AS period, AVG(%s) AS avg_value FROM sensor_data WHERE %s IS NOT NULL GROUP BY period ORDER BY period ASC`,
		key, col, col,
	)

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to group %s averages", field)
	}
	defer rows.Close()

	var series []models.PeriodValue
	for rows.Next() {
		var periodStr string
		var pv models.PeriodValue
		if err := rows.Scan(&periodStr, &pv.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan grouped average")
		}
		pv.Period, err = time.ParseInLocation("2006-01-02", periodStr, db.loc)
		if err != nil {
			return nil, errors.Wrapf(err, "bad period key %q", periodStr)
		}
		series = append(series, pv)
	}

	return series, errors.Wrap(rows.Err(), "error iterating grouped averages")
}

// DailyTotals sums steps, voltage and current per calendar day
func (db *DB) DailyTotals(ctx context.Context, r models.Range, order models.Order) ([]models.DailyTotal, error) {
	where, args := rangeClause(r)
	query := fmt.Sprintf(
		`SELECT DATE_FORMAT(datetime, '%%Y-%%m-%%d') AS day, SUM(steps), SUM(raw_voltage), SUM(raw_current) FROM sensor_data%s GROUP BY day ORDER BY day %s`,
		where, orderKeyword(order),
	)

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query daily totals")
	}
	defer rows.Close()

	var totals []models.DailyTotal
	for rows.Next() {
		var dayStr string
		var t models.DailyTotal
		if err := rows.Scan(&dayStr, &t.TotalSteps, &t.TotalVoltage, &t.TotalCurrent); err != nil {
			return nil, errors.Wrap(err, "failed to scan daily total")
		}
		if t.Date, err = time.ParseInLocation("2006-01-02", dayStr, db.loc); err != nil {
			return nil, errors.Wrapf(err, "bad day key %q", dayStr)
		}
		totals = append(totals, t)
	}

	return totals, errors.Wrap(rows.Err(), "error iterating daily totals")
}

// ChartAggregates returns per-day voltage/current averages and step sums, newest first
func (db *DB) ChartAggregates(ctx context.Context) ([]models.ChartPoint, error) {
	query := `SELECT DATE_FORMAT(datetime, '%Y-%m-%d') AS day, AVG(raw_voltage), AVG(raw_current), SUM(steps) FROM sensor_data GROUP BY day ORDER BY day DESC`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query chart aggregates")
	}
	defer rows.Close()

	var points []models.ChartPoint
	for rows.Next() {
		var dayStr string
		var p models.ChartPoint
		if err := rows.Scan(&dayStr, &p.AvgVoltage, &p.AvgCurrent, &p.TotalSteps); err != nil {
			return nil, errors.Wrap(err, "failed to scan chart point")
		}
		if p.Date, err = time.ParseInLocation("2006-01-02", dayStr, db.loc); err != nil {
			return nil, errors.Wrapf(err, "bad day key %q", dayStr)
		}
		points = append(points, p)
	}

	return points, errors.Wrap(rows.Err(), "error iterating chart aggregates")
}

// Readings returns raw readings in range, newest first, with the total count in range
func (db *DB) Readings(ctx context.Context, r models.Range, offset, limit int) ([]models.Reading, int, error) {
	where, args := rangeClause(r)

	var total int
	countStart := time.Now()
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data"+where, args...).Scan(&total)
	metrics.RecordDBQuery("COUNT", table, time.Since(countStart), err)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count readings")
	}

	query := `SELECT id, datetime, steps, raw_voltage, raw_current, battery_level FROM sensor_data` + where +
		` ORDER BY datetime DESC LIMIT ? OFFSET ?`
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, offset)...)
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to query readings")
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var rd models.Reading
		var battery sql.NullFloat64
		if err := rows.Scan(&rd.ID, &rd.Timestamp, &rd.Steps, &rd.Voltage, &rd.Current, &battery); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan reading")
		}
		if battery.Valid {
			v := battery.Float64
			rd.BatteryLevel = &v
		}
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "error iterating readings")
	}
	return readings, total, nil
}

// Ping checks the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
