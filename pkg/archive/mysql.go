package archive

import (
	_ "github.com/go-sql-driver/mysql" // Load MySQL DB driver
)

type mysqlDialect struct{}

func init() {
	Register("mysql", mysqlDialect{})
}

func (mysqlDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         VARCHAR(64) PRIMARY KEY,
			started_at DOUBLE,
			stopped_at DOUBLE,
			points     INT,
			path       TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			session_id VARCHAR(64),
			timestamp  DOUBLE,
			relative   DOUBLE,
			pin        INT,
			name       VARCHAR(255),
			voltage    DOUBLE,
			calibrated DOUBLE,
			unit       VARCHAR(32),
			INDEX i_samples (session_id, pin)
		)`,
	}
}

func (mysqlDialect) InsertSession() string {
	return `INSERT INTO sessions (id, started_at, stopped_at, points, path) VALUES (?, ?, ?, ?, ?)`
}

func (mysqlDialect) InsertSample() string {
	return `INSERT INTO samples (
		session_id,
		timestamp, relative,
		pin, name,
		voltage, calibrated, unit
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
}

func (mysqlDialect) ListSessions() string {
	return `SELECT id, started_at, stopped_at, points, path FROM sessions ORDER BY started_at DESC`
}
