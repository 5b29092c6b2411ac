package store

import (
	"database/sql"
	"fmt"
)

// schema defines the full database layout. Food macros are stored per 100
// of the food's serving unit; intake quantities are scaled by quantity/100
// at summation time.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	username       TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	age            INTEGER,
	sex            TEXT,
	height_cm      REAL,
	weight_kg      REAL,
	activity_level TEXT,
	goal           TEXT,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE TABLE IF NOT EXISTS food (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	calories     REAL NOT NULL,
	protein      REAL NOT NULL,
	carbs        REAL NOT NULL,
	fat          REAL NOT NULL,
	serving_unit TEXT NOT NULL DEFAULT 'g'
);

CREATE TABLE IF NOT EXISTS user_intake (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id),
	food_id     INTEGER NOT NULL REFERENCES food(id),
	quantity    REAL NOT NULL,
	intake_date TEXT NOT NULL,
	meal_type   TEXT,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_user_intake_user_date ON user_intake(user_id, intake_date);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(username, id);
`

// initializeSchema creates all tables and indexes if they do not exist.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
