package repository

import (
	"database/sql"
	"fmt"
	"log"
)

// migrations holds the DDL for each schema version, indexed from version 1.
// Databases written before versioning existed already hold the version 1 table
// and are only stamped.
var migrations = []string{
	`CREATE TABLE sensors(
		sensor_id text,
		name text,
		timestamp text,
		temperature text,
		humidity text
	)`,
}

// SchemaVersion is the schema version this build writes
var SchemaVersion = len(migrations)

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %v", err)
	}
	return version, nil
}

// createSchema builds a fresh database from scratch
func createSchema(db *sql.DB) error {
	log.Printf("Creating schema version %d", SchemaVersion)
	return migrate(db, 0)
}

// upgradeSchema brings an existing database up to SchemaVersion
func upgradeSchema(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	switch {
	case version > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	case version == SchemaVersion:
		return nil
	case version == 0:
		log.Printf("Stamping unversioned database as schema version 1")
		if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
			return fmt.Errorf("failed to stamp schema version: %v", err)
		}
		version = 1
	}
	return migrate(db, version)
}

// migrate applies every migration after version in one transaction
func migrate(db *sql.DB, version int) error {
	if version == SchemaVersion {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	for v := version + 1; v <= SchemaVersion; v++ {
		if _, err := tx.Exec(migrations[v-1]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply schema version %d: %v", v, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record schema version: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %v", err)
	}
	return nil
}
