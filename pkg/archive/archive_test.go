package archive

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/recording"
)

func TestDrivers(t *testing.T) {
	got := strings.Join(Drivers(), ",")
	if got != "mysql,postgres,sqlite3" {
		t.Errorf("Drivers() = %s", got)
	}
	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Error("Open() with an unknown driver should fail")
	}
}

func countSamples(t *testing.T, a *Archive, sessionID string) int {
	t.Helper()
	var n int
	err := a.db.QueryRowContext(context.Background(), `SELECT count(*) FROM samples WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestStoreSessionSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	r := recording.NewRecorder()
	table := map[int]recording.Channel{
		1: {ID: 1, Name: "Pressure_1", Calibration: calibration.Calibration{Point2Physical: 100, Point2Voltage: 5, Unit: "psi", Enabled: true}},
		2: {ID: 2, Name: "Pressure_2", Calibration: calibration.Default()},
	}
	info, err := r.Start([]int{1, 2}, table)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		ts := info.StartedAt.Add(time.Duration(i) * 10 * time.Millisecond)
		r.AddSample(1, 2.5, 50, ts)
		r.AddSample(2, 1, 1, ts)
	}
	s, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}

	if err := a.StoreSession(ctx, s, "/tmp/out.csv"); err != nil {
		t.Fatal(err)
	}

	if n := countSamples(t, a, s.ID); n != 10 {
		t.Errorf("archived %d samples, want 10", n)
	}

	sessions, err := a.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != s.ID || sessions[0].Points != 10 || sessions[0].Path != "/tmp/out.csv" {
		t.Errorf("Sessions() = %+v", sessions)
	}
	if d := sessions[0].StartedAt.Sub(s.StartedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("StartedAt drift = %v", d)
	}

	// Same session twice violates the primary key and must leave no samples behind.
	if err := a.StoreSession(ctx, s, "/tmp/out.csv"); err == nil {
		t.Fatal("storing a session twice should fail")
	}
	if n := countSamples(t, a, s.ID); n != 10 {
		t.Errorf("failed store leaked samples: %d", n)
	}
}
