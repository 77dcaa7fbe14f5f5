package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/archive"
	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/chart"
	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/recording"
)

const archiveTimeout = 30 * time.Second

func (d *Daemon) publishRecordingState(from, to recording.State, id string, points int, path, msg string) {
	d.hub.Publish(events.RecordingState, events.RecordingStateEvent{
		From:    string(from),
		To:      string(to),
		ID:      id,
		Points:  points,
		Path:    path,
		Message: msg,
		Ts:      d.now().Unix(),
	})
}

// StartRecording starts a session over the pins being monitored. Without
// monitoring there are no active channels and the recorder refuses.
func (d *Daemon) StartRecording() (recording.StartInfo, error) {
	var active []int
	if d.Monitoring() {
		active = d.EnabledPins()
	}

	table := make(map[int]recording.Channel, len(active))
	for _, pin := range active {
		p, ok := d.conf.Pin(pin)
		if !ok {
			continue
		}
		table[pin] = recording.Channel{ID: pin, Name: p.Name, Color: p.Color, Calibration: p.Calibration}
	}

	info, err := d.recorder.Start(active, table)
	if err != nil {
		return info, err
	}

	logrus.WithFields(logrus.Fields{
		"session": info.ID,
		"pins":    active,
	}).Info("recording started")
	d.publishRecordingState(recording.StateIdle, recording.StateRecording, info.ID, 0, "", "")
	return info, nil
}

func (d *Daemon) StopRecording() (recording.Status, error) {
	s, err := d.recorder.Stop()
	if err != nil {
		return recording.Status{}, err
	}
	logrus.WithFields(logrus.Fields{
		"session":  s.ID,
		"points":   s.Len(),
		"duration": s.Duration().String(),
	}).Info("recording stopped")
	d.publishRecordingState(recording.StateRecording, recording.StateStopped, s.ID, s.Len(), "", "")
	return d.recorder.Status(), nil
}

// resolvePath places relative paths in the output directory and falls back
// to def when path is empty.
func (d *Daemon) resolvePath(path, def string) string {
	if path == "" {
		path = def
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.opts.OutputDir, path)
	}
	return path
}

// ExportRecording writes the stopped session as CSV and returns the path
// written. A failed export keeps the session for another attempt.
func (d *Daemon) ExportRecording(path string) (string, error) {
	p := d.recorder.Pending()
	if p == nil {
		return "", recording.ErrNothingToExport
	}
	dest := d.resolvePath(path, p.FilenameHint)

	s, err := d.recorder.Export(dest)
	if err != nil {
		logrus.WithError(err).WithField("session", p.ID).Error("export failed, recording kept")
		d.publishRecordingState(recording.StateStopped, recording.StateStopped, p.ID, p.Len(), dest, err.Error())
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"points":  s.Len(),
		"path":    dest,
	}).Info("recording exported")
	d.publishRecordingState(recording.StateStopped, recording.StateIdle, s.ID, s.Len(), dest, "")

	if d.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := d.archive.StoreSession(ctx, s, dest); err != nil {
			logrus.WithError(err).WithField("session", s.ID).Error("failed to archive session")
		}
	}
	return dest, nil
}

func (d *Daemon) DiscardRecording() error {
	p := d.recorder.Pending()
	if err := d.recorder.Discard(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"session": p.ID,
		"points":  p.Len(),
	}).Info("recording discarded")
	d.publishRecordingState(recording.StateStopped, recording.StateIdle, p.ID, p.Len(), "", "discarded")
	return nil
}

// PlotRecording renders the stopped session to path. The default is a PNG
// next to the default CSV name.
func (d *Daemon) PlotRecording(path string) (string, error) {
	p := d.recorder.Pending()
	if p == nil {
		return "", recording.ErrNothingToExport
	}
	dest := d.resolvePath(path, strings.TrimSuffix(p.FilenameHint, ".csv")+".png")
	if err := chart.Save(p, dest, d.now()); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"session": p.ID,
		"path":    dest,
	}).Info("plot saved")
	return dest, nil
}

// SetCalibration updates the calibration of a pin. Pins of the session being
// recorded are locked, because the session's columns are fixed at start.
func (d *Daemon) SetCalibration(pin int, cal calibration.Calibration) error {
	st := d.recorder.Status()
	if st.State == recording.StateRecording {
		for _, ch := range st.Channels {
			if ch == pin {
				return ErrPinRecording
			}
		}
	}
	if err := d.conf.SetCalibration(pin, cal); err != nil {
		return err
	}
	return d.conf.Save()
}

// ChannelStatus is the live state of a monitored pin.
type ChannelStatus struct {
	Pin   int           `json:"pin"`
	Name  string        `json:"name"`
	Unit  string        `json:"unit"`
	Color string        `json:"color,omitempty"`
	Stats *ChannelStats `json:"stats,omitempty"`
}

// Status is the daemon state reported by GET /status.
type Status struct {
	Device     *DeviceStatus      `json:"device"`
	Monitoring bool               `json:"monitoring"`
	SampleRate int                `json:"sampleRate"`
	Channels   []ChannelStatus    `json:"channels"`
	Recording  recording.Status   `json:"recording"`
	LastError  string             `json:"lastError,omitempty"`
	Archive    string             `json:"archive,omitempty"`
	Schedule   *RecordingSchedule `json:"schedule,omitempty"`
	Streams    StreamStatus       `json:"streams"`
}

// StreamStatus counts the live samples that reached, or were dropped by, the
// event stream and the MQTT publisher.
type StreamStatus struct {
	Subscribers   int     `json:"subscribers"`
	EventsDropped uint64  `json:"eventsDropped"`
	MQTT          *Counts `json:"mqtt,omitempty"`
}

// Counts is a sent/dropped pair.
type Counts struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

func (d *Daemon) Status() Status {
	d.mu.Lock()
	monitoring := d.monitoring
	var lastErr string
	if d.lastErr != nil {
		lastErr = d.lastErr.Error()
	}
	d.mu.Unlock()

	st := Status{
		Device:     d.deviceStatus(),
		Monitoring: monitoring,
		SampleRate: d.conf.SampleRate(),
		Channels:   []ChannelStatus{},
		Recording:  d.recorder.Status(),
		LastError:  lastErr,
		Streams: StreamStatus{
			Subscribers:   d.hub.Subscribers(),
			EventsDropped: d.hub.Dropped(),
		},
	}
	if d.publisher != nil {
		sent, dropped := d.publisher.Stats()
		st.Streams.MQTT = &Counts{Sent: sent, Dropped: dropped}
	}
	if d.archive != nil {
		st.Archive = d.archive.Driver()
	}
	if sch := d.Schedule(); sch.Spec != "" {
		st.Schedule = &sch
	}

	for _, pin := range d.EnabledPins() {
		p, ok := d.conf.Pin(pin)
		if !ok {
			continue
		}
		cs := ChannelStatus{Pin: pin, Name: p.Name, Unit: p.Calibration.DisplayUnit(), Color: p.Color}
		if stats, ok := d.history.Stats(pin); ok {
			cs.Stats = &stats
		}
		st.Channels = append(st.Channels, cs)
	}
	return st
}

// ArchivedSessions lists the sessions in the archive database, newest first.
func (d *Daemon) ArchivedSessions(ctx context.Context) ([]archive.SessionRow, error) {
	if d.archive == nil {
		return nil, ErrNoArchive
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	sessions, err := d.archive.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []archive.SessionRow{}
	}
	return sessions, nil
}

// DeviceStatus reports whether a device is connected.
type DeviceStatus struct {
	Connected bool   `json:"connected"`
	Backend   string `json:"backend,omitempty"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
}

func (d *Daemon) deviceStatus() *DeviceStatus {
	info, ok := d.Device()
	if !ok {
		return &DeviceStatus{}
	}
	return &DeviceStatus{Connected: true, Backend: info.Backend, Name: info.Name, Path: info.Path}
}
