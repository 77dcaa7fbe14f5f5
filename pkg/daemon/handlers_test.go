package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlie0129/daqmon/pkg/archive"
	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/recording"
)

type fakeProber struct{ dev daq.Device }

func (fakeProber) Name() string { return "fake" }

func (p fakeProber) Probe(context.Context) (daq.Device, error) {
	if p.dev == nil {
		return nil, daq.ErrNoDevice
	}
	return p.dev, nil
}

func newTestDaemon(t *testing.T, dev daq.Device) (*Daemon, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	conf := config.NewFileFromConfig(nil, filepath.Join(dir, "daq_config.json"))
	d := New(Options{OutputDir: dir}, conf)
	d.probers = []daq.Prober{fakeProber{dev: dev}}
	t.Cleanup(d.Close)
	return d, d.setupRoutes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestPinHandlers(t *testing.T) {
	_, h := newTestDaemon(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "list pins", method: http.MethodGet, path: "/pins", want: http.StatusOK},
		{name: "rename", method: http.MethodPut, path: "/pins/1/name", body: "Tank", want: http.StatusCreated},
		{name: "rename empty", method: http.MethodPut, path: "/pins/1/name", body: "  ", want: http.StatusBadRequest},
		{name: "rename unknown pin", method: http.MethodPut, path: "/pins/99/name", body: "X", want: http.StatusNotFound},
		{name: "bad pin number", method: http.MethodGet, path: "/pins/abc", want: http.StatusBadRequest},
		{name: "calibrate ground pin", method: http.MethodPut, path: "/pins/3/calibration", body: calibration.Default(), want: http.StatusBadRequest},
		{
			name: "calibrate analog pin", method: http.MethodPut, path: "/pins/2/calibration",
			body: calibration.Calibration{Point1Voltage: 0.5, Point2Physical: 100, Point2Voltage: 4.5, Unit: "psi", Enabled: true},
			want: http.StatusCreated,
		},
		{name: "sample rate too high", method: http.MethodPut, path: "/sample-rate", body: 5000, want: http.StatusBadRequest},
		{name: "sample rate", method: http.MethodPut, path: "/sample-rate", body: 250, want: http.StatusCreated},
		{name: "enable ground pin", method: http.MethodPut, path: "/channels/3", body: true, want: http.StatusBadRequest},
		{name: "monitor without device", method: http.MethodPost, path: "/monitoring/start", want: http.StatusServiceUnavailable},
		{name: "record without monitoring", method: http.MethodPost, path: "/recording/start", want: http.StatusBadRequest},
		{name: "export nothing", method: http.MethodPost, path: "/recording/export", want: http.StatusConflict},
		{name: "detect nothing", method: http.MethodPost, path: "/device/detect", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d (%s), want %d", tt.method, tt.path, w.Code, w.Body.String(), tt.want)
			}
		})
	}

	pin := decode[config.Pin](t, do(t, h, http.MethodGet, "/pins/1", nil))
	if pin.Name != "Tank" {
		t.Errorf("pin 1 name = %q, want Tank", pin.Name)
	}

	eq := decode[string](t, do(t, h, http.MethodGet, "/pins/2/calibration/equation", nil))
	if !strings.HasPrefix(eq, "Physical = 25.000000 × Voltage + -12.500000") {
		t.Errorf("equation = %q", eq)
	}

	if rate := decode[int](t, do(t, h, http.MethodGet, "/sample-rate", nil)); rate != 250 {
		t.Errorf("sample rate = %d, want 250", rate)
	}
}

func waitForPoints(t *testing.T, h http.Handler, n int) recording.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := decode[recording.Status](t, do(t, h, http.MethodGet, "/recording", nil))
		if st.Points >= n {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorded %d points, want at least %d", st.Points, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecordingFlow(t *testing.T) {
	dev := &fakeDevice{}
	d, h := newTestDaemon(t, dev)

	if w := do(t, h, http.MethodPost, "/device/detect", nil); w.Code != http.StatusOK {
		t.Fatalf("detect = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodPost, "/monitoring/start", nil); w.Code != http.StatusBadRequest {
		t.Errorf("monitoring without channels = %d, want 400", w.Code)
	}

	do(t, h, http.MethodPut, "/sample-rate", 1000)
	do(t, h, http.MethodPut, "/pins/2/calibration", calibration.Calibration{Point2Physical: 100, Point2Voltage: 5, Unit: "psi", Enabled: true})
	for _, pin := range []string{"1", "2"} {
		if w := do(t, h, http.MethodPut, "/channels/"+pin, true); w.Code != http.StatusCreated {
			t.Fatalf("enable pin %s = %d %s", pin, w.Code, w.Body.String())
		}
	}
	if p, _ := d.conf.Pin(2); p.Color != config.Palette[1] {
		t.Errorf("pin 2 color = %q, want %q", p.Color, config.Palette[1])
	}

	if w := do(t, h, http.MethodPost, "/monitoring/start", nil); w.Code != http.StatusCreated {
		t.Fatalf("monitoring start = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodPost, "/device/detect", nil); w.Code != http.StatusConflict {
		t.Errorf("detect while monitoring = %d, want 409", w.Code)
	}

	w := do(t, h, http.MethodPost, "/recording/start", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("recording start = %d %s", w.Code, w.Body.String())
	}
	info := decode[recording.StartInfo](t, w)

	if w := do(t, h, http.MethodPut, "/pins/2/calibration", calibration.Default()); w.Code != http.StatusConflict {
		t.Errorf("calibrating a recorded pin = %d, want 409", w.Code)
	}

	waitForPoints(t, h, 6)

	// Stopping monitoring stops the recording and leaves it for export.
	if w := do(t, h, http.MethodPost, "/monitoring/stop", nil); w.Code != http.StatusCreated {
		t.Fatalf("monitoring stop = %d %s", w.Code, w.Body.String())
	}
	st := d.Status()
	if st.Monitoring || st.Recording.State != recording.StateStopped || st.Recording.ID != info.ID {
		t.Fatalf("status after stop = %+v", st)
	}
	if len(st.Channels) != 2 || st.Channels[1].Unit != "psi" || st.Channels[1].Stats == nil {
		t.Errorf("channel status = %+v", st.Channels)
	}
	if st.Channels[1].Stats != nil && st.Channels[1].Stats.Last != 30 {
		t.Errorf("pin 2 last value = %v, want 30 (1.5 V at 20 psi/V)", st.Channels[1].Stats.Last)
	}

	if w := do(t, h, http.MethodPost, "/recording/start", nil); w.Code != http.StatusConflict {
		t.Errorf("start with export pending = %d, want 409", w.Code)
	}

	bad := filepath.Join(d.opts.OutputDir, "missing", "out.csv")
	if w := do(t, h, http.MethodPost, "/recording/export", bad); w.Code != http.StatusInternalServerError {
		t.Errorf("export to missing dir = %d, want 500", w.Code)
	}
	if d.recorder.State() != recording.StateStopped {
		t.Fatal("failed export must keep the recording")
	}

	if w := do(t, h, http.MethodPost, "/recording/plot", "plot.svg"); w.Code != http.StatusCreated {
		t.Errorf("plot = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/recording/export", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("export = %d %s", w.Code, w.Body.String())
	}
	dest := decode[string](t, w)
	if filepath.Base(dest) != info.FilenameHint {
		t.Errorf("export path = %s, want default name %s", dest, info.FilenameHint)
	}
	b, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Timestamp (Unix),Relative Time (s),Pin Number,Sensor Name,Voltage (V),Calibrated Value (psi)") {
		t.Errorf("unexpected export header:\n%s", b)
	}
	if d.recorder.State() != recording.StateIdle {
		t.Errorf("state after export = %s, want Idle", d.recorder.State())
	}
}

func TestMonitoringStopsAfterDeviceFailure(t *testing.T) {
	withFastBackoff(t)

	dev := &fakeDevice{gate: make(chan struct{})}
	for i := 0; i < 10; i++ {
		dev.errs = append(dev.errs, nil)
	}
	for i := 0; i < maxConsecutiveErrors; i++ {
		dev.errs = append(dev.errs, context.DeadlineExceeded)
	}

	d, _ := newTestDaemon(t, dev)
	if _, err := d.DetectDevice(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.SetChannel(1, true); err != nil {
		t.Fatal(err)
	}
	if err := d.conf.SetSampleRate(1000); err != nil {
		t.Fatal(err)
	}
	if err := d.StartMonitoring(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.StartRecording(); err != nil {
		t.Fatal(err)
	}
	close(dev.gate)

	deadline := time.Now().Add(5 * time.Second)
	for d.Monitoring() {
		if time.Now().After(deadline) {
			t.Fatal("monitoring did not stop after repeated failures")
		}
		time.Sleep(5 * time.Millisecond)
	}

	st := d.Status()
	if st.LastError == "" {
		t.Error("status should carry the acquisition error")
	}
	if st.Recording.State != recording.StateStopped || st.Recording.Points != 10 {
		t.Errorf("recording = %+v, want stopped with 10 points", st.Recording)
	}
}

type countingPublisher struct{ sent, dropped uint64 }

func (*countingPublisher) Publish(events.SampleReadingEvent) {}
func (p *countingPublisher) Stats() (uint64, uint64)         { return p.sent, p.dropped }
func (*countingPublisher) Close()                            {}

func TestHistoryAndStreamStatus(t *testing.T) {
	d, h := newTestDaemon(t, nil)
	d.publisher = &countingPublisher{sent: 7, dropped: 2}

	sub := d.hub.Subscribe()
	defer d.hub.Unsubscribe(sub)

	readings := make(chan Reading, 3)
	now := time.Now()
	for i, v := range []float64{1, 2, 3} {
		readings <- Reading{Pin: 1, Channel: 0, Volts: v, Time: now.Add(time.Duration(i) * time.Millisecond)}
	}
	close(readings)
	d.consume(readings)

	w := do(t, h, http.MethodGet, "/channels/1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d %s", w.Code, w.Body.String())
	}
	// Uncalibrated pins report raw volts.
	if got := decode[[]float64](t, w); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("history = %v, want [1 2 3]", got)
	}
	if w := do(t, h, http.MethodGet, "/channels/99/history", nil); w.Code != http.StatusNotFound {
		t.Errorf("history of unknown pin = %d, want 404", w.Code)
	}

	st := decode[Status](t, do(t, h, http.MethodGet, "/status", nil))
	if st.Streams.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", st.Streams.Subscribers)
	}
	if st.Streams.MQTT == nil || st.Streams.MQTT.Sent != 7 || st.Streams.MQTT.Dropped != 2 {
		t.Errorf("mqtt counts = %+v, want 7 sent 2 dropped", st.Streams.MQTT)
	}
}

func TestArchivedSessions(t *testing.T) {
	d, h := newTestDaemon(t, nil)
	if w := do(t, h, http.MethodGet, "/archive/sessions", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("sessions without archive = %d, want 503", w.Code)
	}

	a, err := archive.Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	d.archive = a

	if got := decode[[]archive.SessionRow](t, do(t, h, http.MethodGet, "/archive/sessions", nil)); len(got) != 0 {
		t.Errorf("empty archive lists %d sessions", len(got))
	}

	table := map[int]recording.Channel{1: {ID: 1, Name: "Pressure_1", Calibration: calibration.Default()}}
	info, err := d.recorder.Start([]int{1}, table)
	if err != nil {
		t.Fatal(err)
	}
	d.recorder.AddSample(1, 2.5, 0.5, info.StartedAt.Add(time.Millisecond))
	if _, err := d.StopRecording(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ExportRecording(""); err != nil {
		t.Fatal(err)
	}

	got := decode[[]archive.SessionRow](t, do(t, h, http.MethodGet, "/archive/sessions", nil))
	if len(got) != 1 || got[0].ID != info.ID || got[0].Points != 1 {
		t.Errorf("archived sessions = %+v", got)
	}
}
