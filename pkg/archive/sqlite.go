package archive

import (
	_ "github.com/mattn/go-sqlite3" // Load SQLite DB driver
)

type sqliteDialect struct{}

func init() {
	Register("sqlite3", sqliteDialect{})
}

func (sqliteDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         text PRIMARY KEY,
			started_at real,
			stopped_at real,
			points     integer,
			path       text
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			session_id text,
			timestamp  real,
			relative   real,
			pin        integer,
			name       text,
			voltage    real,
			calibrated real,
			unit       text
		)`,
		`CREATE INDEX IF NOT EXISTS i_samples ON samples (session_id, pin)`,
	}
}

func (sqliteDialect) InsertSession() string {
	return `INSERT INTO sessions (id, started_at, stopped_at, points, path) VALUES (?, ?, ?, ?, ?)`
}

func (sqliteDialect) InsertSample() string {
	return `INSERT INTO samples (
		session_id,
		timestamp, relative,
		pin, name,
		voltage, calibrated, unit
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
}

func (sqliteDialect) ListSessions() string {
	return `SELECT id, started_at, stopped_at, points, path FROM sessions ORDER BY started_at DESC`
}
