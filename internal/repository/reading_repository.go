// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/abelzeko/onewire-logger/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// ErrDatabaseMissing is returned when opening a database that was never created
var ErrDatabaseMissing = errors.New("database does not exist")

// ReadingRepository defines the interface for sensor reading persistence operations
type ReadingRepository interface {
	SaveReadings(readings []entities.Reading) error
	GetReadings(name string, typ entities.ReadingType, from, to time.Time) ([]entities.Reading, error)
	GetSensorNames() ([]string, error)
	GetLatestReading(name string, typ entities.ReadingType) (entities.Reading, bool, error)
	Close() error
}

// SQLiteReadingRepository implements ReadingRepository using SQLite
type SQLiteReadingRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteReadingRepository opens the database at dbPath.
// When create is set and the file does not exist yet, the file and its schema
// are created. Otherwise a missing file yields ErrDatabaseMissing.
func NewSQLiteReadingRepository(dbPath string, create bool) (*SQLiteReadingRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "temperature.db")
	}

	// sql.Open creates the file on first use, so existence has to be checked first
	_, err := os.Stat(dbPath)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat database %s: %v", dbPath, err)
	}
	if !exists {
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, dbPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if exists {
		err = upgradeSchema(db)
	} else {
		err = createSchema(db)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteReadingRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReadingRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// valueColumn maps a reading type to the column holding its values
func valueColumn(typ entities.ReadingType) (string, error) {
	switch typ {
	case entities.Temperature:
		return "temperature", nil
	case entities.Humidity:
		return "humidity", nil
	}
	return "", fmt.Errorf("unknown reading type %q", typ)
}

// SaveReadings inserts all readings in a single transaction.
// Nothing is stored unless every insert succeeds.
func (r *SQLiteReadingRepository) SaveReadings(readings []entities.Reading) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sensors(sensor_id, name, timestamp, temperature, humidity)
		VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %v", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		var temperature, humidity sql.NullString
		switch rd.Type {
		case entities.Temperature:
			temperature = sql.NullString{String: rd.Value, Valid: true}
		case entities.Humidity:
			humidity = sql.NullString{String: rd.Value, Valid: true}
		default:
			tx.Rollback()
			return fmt.Errorf("reading for %s has unknown type %q", rd.Name, rd.Type)
		}
		_, err := stmt.Exec(
			rd.SensorID,
			rd.Name,
			rd.FormattedTimestamp(),
			temperature,
			humidity,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert reading for %s (%s): %v", rd.Name, rd.SensorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	log.Printf("Successfully saved %d sensor readings", len(readings))
	return nil
}

// GetReadings returns the readings of one type for a named sensor with
// timestamps in [from, to], oldest first.
func (r *SQLiteReadingRepository) GetReadings(name string, typ entities.ReadingType, from, to time.Time) ([]entities.Reading, error) {
	column, err := valueColumn(typ)
	if err != nil {
		return nil, err
	}

	// The text range only narrows the scan; membership is decided on parsed times below.
	query := fmt.Sprintf(`
		SELECT sensor_id, name, timestamp, %[1]s
		FROM sensors
		WHERE name = ? AND %[1]s IS NOT NULL AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp`, column)

	rows, err := r.db.Query(query, name, from.Format(entities.TimestampLayout), to.Format(entities.TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for %s: %v", name, err)
	}
	defer rows.Close()

	var result []entities.Reading
	skipped := 0
	for rows.Next() {
		rd, ok, err := scanReading(rows, typ)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped++
			continue
		}
		if rd.Timestamp.Before(from) || rd.Timestamp.After(to) {
			continue
		}
		result = append(result, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %v", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if skipped > 0 {
		log.Printf("Skipped %d readings for %s with unparsable timestamps", skipped, name)
	}
	return result, nil
}

// scanReading reads one row; ok is false when the stored timestamp cannot be parsed
func scanReading(rows *sql.Rows, typ entities.ReadingType) (entities.Reading, bool, error) {
	var (
		rd        entities.Reading
		timestamp string
	)
	if err := rows.Scan(&rd.SensorID, &rd.Name, &timestamp, &rd.Value); err != nil {
		return entities.Reading{}, false, fmt.Errorf("failed to scan row: %v", err)
	}
	ts, err := time.ParseInLocation(entities.TimestampLayout, timestamp, time.Local)
	if err != nil {
		log.Printf("Skipping reading for %s with bad timestamp %q: %v", rd.Name, timestamp, err)
		return entities.Reading{}, false, nil
	}
	rd.Timestamp = ts
	rd.Type = typ
	return rd, true, nil
}

// GetSensorNames returns every distinct sensor name in the database
func (r *SQLiteReadingRepository) GetSensorNames() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT name FROM sensors ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor names: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %v", err)
	}

	return names, nil
}

// GetLatestReading returns the most recent reading of one type for a sensor.
// The boolean is false when the sensor has no such readings.
func (r *SQLiteReadingRepository) GetLatestReading(name string, typ entities.ReadingType) (entities.Reading, bool, error) {
	column, err := valueColumn(typ)
	if err != nil {
		return entities.Reading{}, false, err
	}

	query := fmt.Sprintf(`
		SELECT sensor_id, name, timestamp, %[1]s
		FROM sensors
		WHERE name = ? AND %[1]s IS NOT NULL
		ORDER BY timestamp DESC
		LIMIT 1`, column)

	rows, err := r.db.Query(query, name)
	if err != nil {
		return entities.Reading{}, false, fmt.Errorf("failed to query latest reading for %s: %v", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return entities.Reading{}, false, fmt.Errorf("error during row iteration: %v", err)
		}
		return entities.Reading{}, false, nil
	}
	return scanReading(rows, typ)
}
