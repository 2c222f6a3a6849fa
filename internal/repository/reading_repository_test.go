package repository

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/abelzeko/onewire-logger/internal/entities"
)

// newTestRepository creates a fresh database in a temp dir
func newTestRepository(t *testing.T) *SQLiteReadingRepository {
	t.Helper()
	repo, err := NewSQLiteReadingRepository(filepath.Join(t.TempDir(), "log", "temperature.db"), true)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func reading(name string, typ entities.ReadingType, value string, at time.Time) entities.Reading {
	return entities.Reading{
		SensorID:  "28.2A9FB9010000",
		Name:      name,
		Timestamp: at,
		Type:      typ,
		Value:     value,
	}
}

// TestCreateSchema checks that a new database gets the sensors table and a version
func TestCreateSchema(t *testing.T) {
	repo := newTestRepository(t)

	version, err := userVersion(repo.db)
	if err != nil {
		t.Fatalf("Failed to read version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SchemaVersion, version)
	}

	var count int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM sensors").Scan(&count); err != nil {
		t.Fatalf("sensors table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty table, got %d rows", count)
	}
}

// TestOpenMissingDatabase refuses to create a database when not asked to
func TestOpenMissingDatabase(t *testing.T) {
	_, err := NewSQLiteReadingRepository(filepath.Join(t.TempDir(), "missing.db"), false)
	if !errors.Is(err, ErrDatabaseMissing) {
		t.Fatalf("Expected ErrDatabaseMissing, got %v", err)
	}
}

// TestOpenLegacyDatabase stamps a database created without a schema version
func TestOpenLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE sensors(sensor_id text, name text,
		timestamp text, temperature text, humidity text)`)
	if err == nil {
		_, err = db.Exec(`INSERT INTO sensors VALUES('28.2A9FB9010000', 'carport', '2022-09-10 18:12:00', '12.5', NULL)`)
	}
	if err != nil {
		t.Fatalf("Failed to prepare legacy database: %v", err)
	}
	db.Close()

	repo, err := NewSQLiteReadingRepository(path, false)
	if err != nil {
		t.Fatalf("Failed to open legacy database: %v", err)
	}
	defer repo.Close()

	version, err := userVersion(repo.db)
	if err != nil || version != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d (%v)", SchemaVersion, version, err)
	}
	latest, ok, err := repo.GetLatestReading("carport", entities.Temperature)
	if err != nil || !ok {
		t.Fatalf("Expected legacy reading, got ok=%v err=%v", ok, err)
	}
	if latest.Value != "12.5" {
		t.Errorf("Expected 12.5, got %q", latest.Value)
	}
}

// TestOpenNewerDatabase rejects databases written by a newer schema
func TestOpenNewerDatabase(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("Failed to bump version: %v", err)
	}
	repo.Close()

	if _, err := NewSQLiteReadingRepository(repo.DBPath, false); err == nil {
		t.Fatal("Expected an error for a newer schema version")
	}
}

// TestSaveReadings inserts N readings and expects exactly N rows with the same values
func TestSaveReadings(t *testing.T) {
	repo := newTestRepository(t)
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	readings := []entities.Reading{
		{SensorID: "26.B9D2BC000000", Name: "garage", Timestamp: at, Type: entities.Temperature, Value: "19.8"},
		{SensorID: "26.B9D2BC000000", Name: "garage", Timestamp: at, Type: entities.Humidity, Value: "45.1"},
		{SensorID: "28.B0A295040000", Name: "freezer", Timestamp: at, Type: entities.Temperature, Value: "-18.3"},
	}
	if err := repo.SaveReadings(readings); err != nil {
		t.Fatalf("Failed to save readings: %v", err)
	}

	rows, err := repo.db.Query("SELECT sensor_id, name, timestamp, temperature, humidity FROM sensors ORDER BY rowid")
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var id, name, ts string
		var temperature, humidity sql.NullString
		if err := rows.Scan(&id, &name, &ts, &temperature, &humidity); err != nil {
			t.Fatalf("Failed to scan: %v", err)
		}
		want := readings[i]
		if id != want.SensorID || name != want.Name || ts != "2024-01-01 12:00:00" {
			t.Errorf("Row %d: unexpected identity %s/%s/%s", i, id, name, ts)
		}
		switch want.Type {
		case entities.Temperature:
			if !temperature.Valid || temperature.String != want.Value || humidity.Valid {
				t.Errorf("Row %d: expected temperature %s only, got %v/%v", i, want.Value, temperature, humidity)
			}
		case entities.Humidity:
			if !humidity.Valid || humidity.String != want.Value || temperature.Valid {
				t.Errorf("Row %d: expected humidity %s only, got %v/%v", i, want.Value, temperature, humidity)
			}
		}
		i++
	}
	if i != len(readings) {
		t.Errorf("Expected %d rows, got %d", len(readings), i)
	}
}

// TestSaveReadingsRollsBack stores nothing when one reading is invalid
func TestSaveReadingsRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	at := time.Now()

	err := repo.SaveReadings([]entities.Reading{
		reading("carport", entities.Temperature, "12.0", at),
		reading("carport", entities.ReadingType("pressure"), "1013", at),
	})
	if err == nil {
		t.Fatal("Expected an error for an unknown reading type")
	}

	names, err := repo.GetSensorNames()
	if err != nil {
		t.Fatalf("Failed to get names: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no committed rows, got names %v", names)
	}
}

// TestGetReadingsWindow returns only rows inside [now-1d, now]
func TestGetReadingsWindow(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Date(2024, 3, 10, 18, 12, 30, 0, time.Local)
	from := now.AddDate(0, 0, -1)

	err := repo.SaveReadings([]entities.Reading{
		reading("carport", entities.Temperature, "3.0", now.Add(-48*time.Hour)),
		reading("carport", entities.Temperature, "5.0", now),
		reading("carport", entities.Temperature, "4.0", now.Add(-12*time.Hour)),
		reading("carport", entities.Temperature, "9.0", now.Add(time.Second)),
		reading("carport", entities.Temperature, "2.0", from),
		reading("garage", entities.Temperature, "19.8", now),
		reading("carport", entities.Humidity, "80", now),
	})
	if err != nil {
		t.Fatalf("Failed to save readings: %v", err)
	}

	got, err := repo.GetReadings("carport", entities.Temperature, from, now)
	if err != nil {
		t.Fatalf("Failed to get readings: %v", err)
	}

	want := []string{"2.0", "4.0", "5.0"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d readings, got %d: %+v", len(want), len(got), got)
	}
	for i, rd := range got {
		if rd.Value != want[i] {
			t.Errorf("Reading %d: expected %s, got %s", i, want[i], rd.Value)
		}
		if rd.Type != entities.Temperature {
			t.Errorf("Reading %d: expected temperature type, got %s", i, rd.Type)
		}
	}
}

// TestRoundTripFloat checks that a stored value parses back to the same number
func TestRoundTripFloat(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	if err := repo.SaveReadings([]entities.Reading{reading("carport", entities.Temperature, "21.5", now)}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	got, err := repo.GetReadings("carport", entities.Temperature, now.Add(-time.Hour), now)
	if err != nil || len(got) != 1 {
		t.Fatalf("Expected one reading, got %d (%v)", len(got), err)
	}
	f, err := strconv.ParseFloat(got[0].Value, 64)
	if err != nil || f != 21.5 {
		t.Errorf("Expected 21.5, got %v (%v)", f, err)
	}
}

// TestGetSensorNamesAndLatest covers the listing queries
func TestGetSensorNamesAndLatest(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	err := repo.SaveReadings([]entities.Reading{
		reading("garage", entities.Temperature, "18.0", now.Add(-time.Hour)),
		reading("garage", entities.Temperature, "19.8", now),
		reading("carport", entities.Temperature, "4.0", now),
		reading("freezer", entities.Temperature, "-18.3", now),
	})
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	names, err := repo.GetSensorNames()
	if err != nil {
		t.Fatalf("Failed to get names: %v", err)
	}
	want := []string{"carport", "freezer", "garage"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
			break
		}
	}

	latest, ok, err := repo.GetLatestReading("garage", entities.Temperature)
	if err != nil || !ok {
		t.Fatalf("Expected latest reading, got ok=%v err=%v", ok, err)
	}
	if latest.Value != "19.8" || !latest.Timestamp.Equal(now) {
		t.Errorf("Unexpected latest reading %+v", latest)
	}

	if _, ok, err := repo.GetLatestReading("garage", entities.Humidity); err != nil || ok {
		t.Errorf("Expected no humidity reading, got ok=%v err=%v", ok, err)
	}
}
