package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/recording"
)

func TestConsumeKeepsRecordingCalibration(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	psi := calibration.Calibration{Point2Physical: 100, Point2Voltage: 5, Unit: "psi", Enabled: true}
	if err := d.conf.SetCalibration(2, psi); err != nil {
		t.Fatal(err)
	}
	p, _ := d.conf.Pin(2)
	table := map[int]recording.Channel{2: {ID: 2, Name: p.Name, Calibration: p.Calibration}}
	if _, err := d.recorder.Start([]int{2}, table); err != nil {
		t.Fatal(err)
	}

	// A reload from disk swaps the calibration while the session runs.
	if err := d.conf.SetCalibration(2, calibration.Default()); err != nil {
		t.Fatal(err)
	}
	if err := d.conf.Save(); err != nil {
		t.Fatal(err)
	}
	if err := d.conf.Load(); err != nil {
		t.Fatal(err)
	}

	sub := d.hub.Subscribe()
	defer d.hub.Unsubscribe(sub)

	readings := make(chan Reading, 2)
	now := time.Now()
	readings <- Reading{Pin: 2, Channel: 1, Volts: 1.5, Time: now}
	readings <- Reading{Pin: 1, Channel: 0, Volts: 2.5, Time: now}
	close(readings)
	d.consume(readings)

	s, err := d.recorder.Stop()
	if err != nil {
		t.Fatal(err)
	}
	samples := s.Samples()
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	if samples[0].Calibrated != 30 {
		t.Errorf("recorded value = %v, want 30 from the calibration captured at start", samples[0].Calibrated)
	}

	e := <-sub
	ev, err := events.DecodeAs[events.SampleReadingEvent](e)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Pin != 2 || ev.Unit != "psi" || !ev.Recording {
		t.Errorf("live sample = %+v, want pin 2 in psi while recording", ev)
	}
}

type narrowDevice struct{ fakeDevice }

func (*narrowDevice) NumChannels() int { return 1 }

func TestStartMonitoringRejectsMissingChannel(t *testing.T) {
	d, _ := newTestDaemon(t, &narrowDevice{})
	if _, err := d.DetectDevice(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Pin 2 reads device channel 1, which a single-channel device lacks.
	if err := d.SetChannel(2, true); err != nil {
		t.Fatal(err)
	}
	err := d.StartMonitoring()
	if !errors.Is(err, daq.ErrChannelOutOfRange) {
		t.Fatalf("StartMonitoring() = %v, want daq.ErrChannelOutOfRange", err)
	}
	if statusCode(err) != 400 {
		t.Errorf("statusCode() = %d, want 400", statusCode(err))
	}
	if d.Monitoring() {
		t.Error("monitoring must not start with an unreadable pin")
	}

	if err := d.SetChannel(2, false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetChannel(1, true); err != nil {
		t.Fatal(err)
	}
	if err := d.StartMonitoring(); err != nil {
		t.Fatalf("StartMonitoring() on channel 0 = %v", err)
	}
	if err := d.StopMonitoring(); err != nil {
		t.Fatal(err)
	}
}
