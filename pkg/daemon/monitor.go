package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/recording"
)

// readingBuffer decouples the acquirer from a briefly busy consumer. The
// channel stays FIFO, so ordering is unaffected.
const readingBuffer = 64

// DetectDevice runs the detection chain and keeps the device it finds,
// replacing any previous one.
func (d *Daemon) DetectDevice(ctx context.Context) (daq.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.monitoring {
		return daq.Info{}, ErrMonitoringActive
	}
	if d.device != nil {
		if err := d.device.Close(); err != nil {
			logrus.Warnf("failed to close previous device: %v", err)
		}
		d.device = nil
	}

	dev, err := daq.Detect(ctx, d.probers...)
	if err != nil {
		d.hub.Publish(events.DeviceState, events.DeviceStateEvent{Connected: false, Ts: d.now().Unix()})
		return daq.Info{}, err
	}

	d.device = dev
	info := dev.Info()
	d.hub.Publish(events.DeviceState, events.DeviceStateEvent{
		Connected: true,
		Backend:   info.Backend,
		Name:      info.Name,
		Ts:        d.now().Unix(),
	})
	return info, nil
}

// Device returns the info of the current device, if any.
func (d *Daemon) Device() (daq.Info, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return daq.Info{}, false
	}
	return d.device.Info(), true
}

// SetChannel selects or deselects an analog pin for monitoring. Selected
// pins without a color get the next palette color. Changes apply to a
// running acquisition from its next pass.
func (d *Daemon) SetChannel(pin int, on bool) error {
	p, ok := d.conf.Pin(pin)
	if !ok {
		return config.ErrPinNotFound
	}
	if !p.AnalogInput {
		return config.ErrNotAnalogInput
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !on {
		delete(d.enabled, pin)
		d.history.ClearRecords(pin)
		logrus.WithField("pin", pin).Info("removed pin from acquisition")
		return nil
	}

	if p.Color == "" {
		if err := d.conf.SetPinColor(pin, config.PaletteColor(len(d.enabledPinsLocked()))); err != nil {
			return err
		}
	}
	d.enabled[pin] = true
	logrus.WithField("pin", pin).Info("added pin to acquisition")
	return nil
}

func (d *Daemon) targets() []Target {
	pins := d.EnabledPins()
	targets := make([]Target, 0, len(pins))
	for _, pin := range pins {
		p, ok := d.conf.Pin(pin)
		if !ok || !p.AnalogInput {
			continue
		}
		targets = append(targets, Target{Pin: pin, Channel: p.DeviceChannel})
	}
	return targets
}

func (d *Daemon) interval() time.Duration {
	rate := d.conf.SampleRate()
	if rate < config.MinSampleRate {
		rate = config.MinSampleRate
	}
	return time.Second / time.Duration(rate)
}

// Monitoring reports whether acquisition is running.
func (d *Daemon) Monitoring() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.monitoring
}

// StartMonitoring starts acquiring the enabled pins.
func (d *Daemon) StartMonitoring() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.monitoring {
		return ErrMonitoringActive
	}
	if d.device == nil {
		return daq.ErrNoDevice
	}
	if len(d.enabledPinsLocked()) == 0 {
		return ErrNoChannelsEnabled
	}
	n := d.device.NumChannels()
	for _, pin := range d.enabledPinsLocked() {
		p, ok := d.conf.Pin(pin)
		if ok && (p.DeviceChannel < 0 || p.DeviceChannel >= n) {
			return fmt.Errorf("%w: pin %d reads CH%d, %s has %d channels",
				daq.ErrChannelOutOfRange, pin, p.DeviceChannel, d.device.Info().Name, n)
		}
	}

	acq := &Acquirer{
		Device:   d.device,
		Interval: d.interval,
		Targets:  d.targets,
		now:      d.now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.monitoring = true
	d.lastErr = nil

	go d.runMonitor(ctx, acq, done)

	pins := d.enabledPinsLocked()
	logrus.WithFields(logrus.Fields{
		"device":     d.device.Info().Name,
		"pins":       pins,
		"sampleRate": d.conf.SampleRate(),
	}).Info("started acquisition")
	d.hub.Publish(events.MonitoringState, events.MonitoringStateEvent{Running: true, Pins: pins, Ts: d.now().Unix()})
	return nil
}

func (d *Daemon) runMonitor(ctx context.Context, acq *Acquirer, done chan struct{}) {
	defer close(done)

	readings := make(chan Reading, readingBuffer)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		d.consume(readings)
	}()

	err := acq.Run(ctx, readings)
	<-consumed
	if err == nil {
		logrus.Info("acquisition loop ended")
		return
	}

	logrus.Errorf("acquisition stopped: %v", err)

	d.mu.Lock()
	// StopMonitoring may have raced with the failure and already reset state.
	stale := d.done != done
	if !stale {
		d.monitoring = false
		d.cancel = nil
		d.lastErr = err
	}
	d.mu.Unlock()
	if stale {
		return
	}

	d.stopRecordingOnHalt("acquisition stopped: " + err.Error())
	d.hub.Publish(events.MonitoringState, events.MonitoringStateEvent{Running: false, Message: err.Error(), Ts: d.now().Unix()})
}

// consume applies calibration to every reading in order and fans it out to
// the history, the recorder and the live sinks.
func (d *Daemon) consume(readings <-chan Reading) {
	for r := range readings {
		pin, ok := d.conf.Pin(r.Pin)
		if !ok {
			continue
		}

		// Pins in a recording keep the settings they started with, so a
		// reload cannot change units mid-session.
		name, cal := pin.Name, pin.Calibration
		if c, ok := d.recorder.RecordingChannel(r.Pin); ok {
			name, cal = c.Name, c.Calibration
		}
		value := cal.Apply(r.Volts)
		d.history.AddRecord(r.Pin, r.Time, value)
		recorded := d.recorder.AddSample(r.Pin, r.Volts, value, r.Time)

		ev := events.SampleReadingEvent{
			Pin:       r.Pin,
			Name:      name,
			Voltage:   r.Volts,
			Value:     value,
			Unit:      cal.DisplayUnit(),
			Recording: recorded,
			Ts:        float64(r.Time.UnixNano()) / float64(time.Second),
		}
		d.hub.Publish(events.SampleReading, ev)
		if d.publisher != nil {
			d.publisher.Publish(ev)
		}
	}
}

// StopMonitoring stops acquisition. An active recording is stopped too and
// waits for export.
func (d *Daemon) StopMonitoring() error {
	d.mu.Lock()
	if !d.monitoring {
		d.mu.Unlock()
		return ErrMonitoringNotRunning
	}
	cancel, done := d.cancel, d.done
	d.monitoring = false
	d.cancel = nil
	d.done = nil
	d.mu.Unlock()

	cancel()
	<-done

	d.stopRecordingOnHalt("monitoring stopped")
	logrus.Info("DAQ acquisition stopped")
	d.hub.Publish(events.MonitoringState, events.MonitoringStateEvent{Running: false, Ts: d.now().Unix()})
	return nil
}

func (d *Daemon) stopRecordingOnHalt(reason string) {
	if d.recorder.State() != recording.StateRecording {
		return
	}
	s, err := d.recorder.Stop()
	if err != nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"points":  s.Len(),
	}).Warnf("recording stopped: %s", reason)
	d.publishRecordingState(recording.StateRecording, recording.StateStopped, s.ID, s.Len(), "", reason)
}
