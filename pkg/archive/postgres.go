package archive

import (
	_ "github.com/lib/pq" // Load PostgreSQL DB driver
)

type postgresDialect struct{}

func init() {
	Register("postgres", postgresDialect{})
}

func (postgresDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         text PRIMARY KEY,
			started_at double precision,
			stopped_at double precision,
			points     integer,
			path       text
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			session_id text REFERENCES sessions (id) ON DELETE CASCADE,
			timestamp  double precision,
			relative   double precision,
			pin        integer,
			name       text,
			voltage    double precision,
			calibrated double precision,
			unit       text
		)`,
		`CREATE INDEX IF NOT EXISTS i_samples ON samples (session_id, pin)`,
	}
}

func (postgresDialect) InsertSession() string {
	return `INSERT INTO sessions (id, started_at, stopped_at, points, path) VALUES ($1, $2, $3, $4, $5)`
}

func (postgresDialect) InsertSample() string {
	return `INSERT INTO samples (
		session_id,
		timestamp, relative,
		pin, name,
		voltage, calibrated, unit
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
}

func (postgresDialect) ListSessions() string {
	return `SELECT id, started_at, stopped_at, points, path FROM sessions ORDER BY started_at DESC`
}
