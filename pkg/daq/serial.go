package daq

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

const (
	DefaultSerialBaud = 115200
	serialChannels    = 8
	serialReadTimeout = 300 * time.Millisecond
	eofBackoff        = 10 * time.Millisecond
)

// staleAfter is how long a channel's last line stays valid. A stream that
// stopped sending is reported instead of repeating its last value.
var staleAfter = time.Second

// DefaultSerialPorts are the glob patterns searched for serial DAQs.
var DefaultSerialPorts = []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/cu.usbmodem*", "/dev/cu.usbserial*"}

// SerialProber finds a DAQ that streams readings as text lines over a serial
// port. A port qualifies once it produces one parseable line within
// Timeout.
type SerialProber struct {
	Patterns []string
	Baud     int
	Timeout  time.Duration

	open func(name string, baud int) (io.ReadCloser, error)
}

func NewSerialProber(patterns []string, baud int) *SerialProber {
	if len(patterns) == 0 {
		patterns = DefaultSerialPorts
	}
	if baud <= 0 {
		baud = DefaultSerialBaud
	}
	return &SerialProber{
		Patterns: patterns,
		Baud:     baud,
		Timeout:  2 * time.Second,
		open:     openSerialPort,
	}
}

func openSerialPort(name string, baud int) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		Parity:      serial.ParityNone,
		Size:        8,
		StopBits:    serial.Stop1,
		ReadTimeout: serialReadTimeout,
	})
}

func (*SerialProber) Name() string { return BackendSerial }

func (p *SerialProber) candidates() []string {
	var ports []string
	for _, pat := range p.Patterns {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				ports = append(ports, m)
			}
		}
	}
	return ports
}

func (p *SerialProber) Probe(ctx context.Context) (Device, error) {
	for _, name := range p.candidates() {
		port, err := p.open(name, p.Baud)
		if err != nil {
			logrus.WithError(err).WithField("port", name).Debug("failed to open serial port")
			continue
		}

		dev := newSerialDevice(name, port)
		select {
		case <-dev.ready:
			return dev, nil
		case <-time.After(p.Timeout):
			logrus.WithField("port", name).Debug("serial port produced no readings")
			_ = dev.Close()
		case <-ctx.Done():
			_ = dev.Close()
			return nil, ctx.Err()
		}
	}
	return nil, ErrNoDevice
}

type serialReading struct {
	volts float64
	at    time.Time
}

// serialDevice keeps the latest value seen for every channel of a text line
// stream.
type serialDevice struct {
	name string
	port io.ReadCloser

	mu      sync.Mutex
	latest  map[int]serialReading
	readErr error
	closed  bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	now func() time.Time
}

func newSerialDevice(name string, port io.ReadCloser) *serialDevice {
	d := &serialDevice{
		name:   name,
		port:   port,
		latest: make(map[int]serialReading),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go d.readLoop()
	return d
}

func (d *serialDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *serialDevice) readLoop() {
	defer close(d.done)

	r := bufio.NewReader(d.port)
	var partial strings.Builder
	for {
		chunk, err := r.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			d.handleLine(partial.String())
			partial.Reset()
			continue
		}
		if d.isClosed() {
			return
		}
		// The port returns EOF whenever the read timeout elapses.
		if errors.Is(err, io.EOF) {
			time.Sleep(eofBackoff)
			continue
		}

		logrus.WithError(err).WithField("port", d.name).Error("serial read failed")
		d.mu.Lock()
		d.readErr = err
		d.mu.Unlock()
		return
	}
}

func (d *serialDevice) handleLine(line string) {
	ch, volts, err := parseLine(line)
	if err != nil {
		logrus.WithError(err).WithField("line", strings.TrimSpace(line)).Trace("ignoring serial line")
		return
	}

	d.mu.Lock()
	d.latest[ch] = serialReading{volts: volts, at: d.now()}
	d.mu.Unlock()
	d.readyOnce.Do(func() { close(d.ready) })
}

// parseLine accepts "AIN<ch>:<volts>" and "<ch>,<volts>".
func parseLine(line string) (int, float64, error) {
	line = strings.TrimSpace(line)

	var chPart, vPart string
	var ok bool
	if len(line) >= 3 && strings.EqualFold(line[:3], "AIN") {
		chPart, vPart, ok = strings.Cut(line[3:], ":")
	} else {
		chPart, vPart, ok = strings.Cut(line, ",")
	}
	if !ok {
		return 0, 0, fmt.Errorf("malformed reading %q", line)
	}

	ch, err := strconv.Atoi(strings.TrimSpace(chPart))
	if err != nil || ch < 0 {
		return 0, 0, fmt.Errorf("invalid channel in %q", line)
	}
	volts, err := strconv.ParseFloat(strings.TrimSpace(vPart), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid voltage in %q", line)
	}
	return ch, volts, nil
}

func (d *serialDevice) Info() Info {
	return Info{Backend: BackendSerial, Name: fmt.Sprintf("Serial DAQ (%s)", d.name), Path: d.name}
}

func (d *serialDevice) NumChannels() int { return serialChannels }

func (d *serialDevice) Read(ctx context.Context, channel int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if channel < 0 || channel >= serialChannels {
		return 0, ErrChannelOutOfRange
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if d.readErr != nil {
		return 0, fmt.Errorf("serial port %s: %w", d.name, d.readErr)
	}
	r, ok := d.latest[channel]
	if !ok {
		return 0, ErrNoReading
	}
	if age := d.now().Sub(r.at); age > staleAfter {
		return 0, fmt.Errorf("%w: channel %d last updated %s ago", ErrStaleReading, channel, age.Round(time.Millisecond))
	}
	return r.volts, nil
}

func (d *serialDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.port.Close()
	<-d.done
	return err
}
