package store

import (
	"database/sql"
	"fmt"
)

// OpenEphemeral opens an isolated in-memory database with the schema applied.
// It bypasses the singleton entirely; intended for tests.
func OpenEphemeral() (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file::memory:?_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Every connection gets its own in-memory database; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}
