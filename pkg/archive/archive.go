// Package archive stores exported recording sessions in a SQL database.
//
// Each supported database registers a Dialect under its database/sql driver
// name, so the driver flag selects both the connection and the SQL flavor.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/recording"
)

// Dialect holds the statements that differ between databases.
type Dialect interface {
	// Schema returns the statements creating the archive tables.
	Schema() []string
	InsertSession() string
	InsertSample() string
	ListSessions() string
}

var dialects = map[string]Dialect{}

// Register makes a dialect available under a database/sql driver name.
func Register(driver string, d Dialect) {
	dialects[driver] = d
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Archive is an open archive database.
type Archive struct {
	db      *sql.DB
	driver  string
	dialect Dialect
}

// SessionRow is an archived session.
type SessionRow struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	StoppedAt time.Time `json:"stoppedAt"`
	Points    int       `json:"points"`
	Path      string    `json:"path"`
}

// Open connects to dsn with driver and creates the tables if needed.
func Open(ctx context.Context, driver, dsn string) (*Archive, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported archive driver %q (supported: %v)", driver, Drivers())
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	for _, stmt := range d.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create archive schema: %w", err)
		}
	}

	logrus.WithField("driver", driver).Info("archive opened")
	return &Archive{db: db, driver: driver, dialect: d}, nil
}

func (a *Archive) Driver() string { return a.driver }

func (a *Archive) Close() error { return a.db.Close() }

// StoreSession writes s and all its samples in one transaction. path is the
// file the session was exported to.
func (a *Archive) StoreSession(ctx context.Context, s *recording.Session, path string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, a.dialect.InsertSession(),
		s.ID, unixSeconds(s.StartedAt), unixSeconds(s.StoppedAt), s.Len(), path); err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, a.dialect.InsertSample())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sample := range s.Samples() {
		c, _ := s.Channel(sample.ChannelID)
		unit := ""
		if c.Calibration.Enabled {
			unit = c.Calibration.DisplayUnit()
		}
		if _, err := stmt.ExecContext(ctx,
			s.ID, unixSeconds(sample.Timestamp), sample.RelativeTime.Seconds(),
			sample.ChannelID, c.Name, sample.Raw, sample.Calibrated, unit); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"points":  s.Len(),
		"driver":  a.driver,
	}).Info("session archived")
	return nil
}

// Sessions lists archived sessions, newest first.
func (a *Archive) Sessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := a.db.QueryContext(ctx, a.dialect.ListSessions())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var started, stopped float64
		if err := rows.Scan(&r.ID, &started, &stopped, &r.Points, &r.Path); err != nil {
			return nil, err
		}
		r.StartedAt = fromUnixSeconds(started)
		r.StoppedAt = fromUnixSeconds(stopped)
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second))).UTC()
}
