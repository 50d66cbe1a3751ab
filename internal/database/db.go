package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jgoulah/bidgely/pkg/models"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// Record is a stored read with the series it belongs to
type Record struct {
	ID          int64
	Utility     string
	Measurement models.MeasurementType
	Aggregate   models.AggregateType
	Published   bool
	models.CostRead
}

// Series identifies one stream of reads
type Series struct {
	Utility     string
	Measurement models.MeasurementType
	Aggregate   models.AggregateType
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows one writer
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cost_reads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		utility TEXT NOT NULL,
		measurement TEXT NOT NULL,
		aggregate TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		consumption REAL NOT NULL,
		cost REAL NOT NULL,
		temperature REAL,
		itemization TEXT,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(utility, measurement, aggregate, start_time)
	);
	CREATE INDEX IF NOT EXISTS idx_reads_series ON cost_reads(utility, measurement, aggregate);
	CREATE INDEX IF NOT EXISTS idx_reads_start_time ON cost_reads(start_time);
	CREATE INDEX IF NOT EXISTS idx_reads_published ON cost_reads(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveReads upserts reads for a series. A read whose consumption or cost
// changed is marked unpublished again. Returns the number of rows written.
func (db *DB) SaveReads(s Series, reads []models.CostRead) (int, error) {
	query := `
	INSERT INTO cost_reads (utility, measurement, aggregate, start_time, end_time, consumption, cost, temperature, itemization, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(utility, measurement, aggregate, start_time) DO UPDATE SET
		end_time = excluded.end_time,
		consumption = excluded.consumption,
		cost = excluded.cost,
		temperature = excluded.temperature,
		itemization = excluded.itemization,
		published = CASE
			WHEN consumption != excluded.consumption OR cost != excluded.cost THEN 0
			ELSE published
		END
	`

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range reads {
		var temperature sql.NullFloat64
		if r.Temperature != nil {
			temperature = sql.NullFloat64{Float64: *r.Temperature, Valid: true}
		}
		var itemization sql.NullString
		if r.Itemization != nil {
			data, err := json.Marshal(r.Itemization)
			if err != nil {
				return 0, fmt.Errorf("encoding itemization: %w", err)
			}
			itemization = sql.NullString{String: string(data), Valid: true}
		}

		_, err := stmt.Exec(
			s.Utility, string(s.Measurement), string(s.Aggregate),
			formatTime(r.StartTime), formatTime(r.EndTime),
			r.Consumption, r.Cost, temperature, itemization, createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting read: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing reads: %w", err)
	}
	return len(reads), nil
}

// ListReads retrieves reads for a series starting at or after since, newest first
func (db *DB) ListReads(s Series, since time.Time) ([]Record, error) {
	query := `
	SELECT id, utility, measurement, aggregate, start_time, end_time, consumption, cost, temperature, itemization, published
	FROM cost_reads
	WHERE utility = ? AND measurement = ? AND aggregate = ? AND start_time >= ?
	ORDER BY start_time DESC
	`

	return db.queryRecords(query, s.Utility, string(s.Measurement), string(s.Aggregate), formatTime(since))
}

// ListUnpublished retrieves unpublished reads for a series, oldest first
func (db *DB) ListUnpublished(s Series) ([]Record, error) {
	query := `
	SELECT id, utility, measurement, aggregate, start_time, end_time, consumption, cost, temperature, itemization, published
	FROM cost_reads
	WHERE utility = ? AND measurement = ? AND aggregate = ? AND published = 0
	ORDER BY start_time ASC
	`

	return db.queryRecords(query, s.Utility, string(s.Measurement), string(s.Aggregate))
}

// MarkPublished marks a stored read as published
func (db *DB) MarkPublished(id int64) error {
	query := `UPDATE cost_reads SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

func (db *DB) queryRecords(query string, args ...any) ([]Record, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reads: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var rec Record
		var measurement, aggregate, startStr, endStr string
		var temperature sql.NullFloat64
		var itemization sql.NullString

		err := rows.Scan(&rec.ID, &rec.Utility, &measurement, &aggregate, &startStr, &endStr,
			&rec.Consumption, &rec.Cost, &temperature, &itemization, &rec.Published)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Measurement = models.MeasurementType(measurement)
		rec.Aggregate = models.AggregateType(aggregate)

		rec.StartTime, err = time.Parse(time.RFC3339Nano, startStr)
		if err != nil {
			return nil, fmt.Errorf("parsing start_time: %w", err)
		}
		rec.EndTime, err = time.Parse(time.RFC3339Nano, endStr)
		if err != nil {
			return nil, fmt.Errorf("parsing end_time: %w", err)
		}

		if temperature.Valid {
			t := temperature.Float64
			rec.Temperature = &t
		}
		if itemization.Valid {
			if err := json.Unmarshal([]byte(itemization.String), &rec.Itemization); err != nil {
				return nil, fmt.Errorf("decoding itemization: %w", err)
			}
			if rec.Itemization == nil {
				rec.Itemization = []models.Itemization{}
			}
		}

		results = append(results, rec)
	}

	return results, rows.Err()
}

// fixed-width UTC so text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
