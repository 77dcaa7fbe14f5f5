package daq

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/gousb"
)

type fakeProber struct {
	name   string
	dev    Device
	err    error
	probed *[]string
}

func (f fakeProber) Name() string { return f.name }

func (f fakeProber) Probe(context.Context) (Device, error) {
	*f.probed = append(*f.probed, f.name)
	return f.dev, f.err
}

func TestDetectOrder(t *testing.T) {
	var probed []string
	sim := NewSimulated()

	dev, err := Detect(context.Background(),
		fakeProber{name: "usb", err: ErrNoDevice, probed: &probed},
		fakeProber{name: "serial", err: errors.New("permission denied"), probed: &probed},
		fakeProber{name: "sim", dev: sim, probed: &probed},
		fakeProber{name: "never", err: ErrNoDevice, probed: &probed},
	)
	if err != nil {
		t.Fatal(err)
	}
	if dev != sim {
		t.Error("Detect() should return the first device found")
	}
	if len(probed) != 3 || probed[2] != "sim" {
		t.Errorf("probed = %v, want [usb serial sim]", probed)
	}
}

func TestDetectNothing(t *testing.T) {
	var probed []string
	_, err := Detect(context.Background(), fakeProber{name: "usb", err: ErrNoDevice, probed: &probed})
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("Detect() = %v, want ErrNoDevice", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Detect(ctx, NewSimulatedProber()); !errors.Is(err, context.Canceled) {
		t.Errorf("Detect() with canceled context = %v", err)
	}
}

func TestDefaultProbers(t *testing.T) {
	if n := len(DefaultProbers(ProberOptions{})); n != 2 {
		t.Errorf("got %d probers without simulation, want 2", n)
	}
	probers := DefaultProbers(ProberOptions{Simulate: true})
	if probers[len(probers)-1].Name() != BackendSimulated {
		t.Error("simulated prober should be last")
	}
}

func TestUSBProberVendors(t *testing.T) {
	p := NewUSBProber()
	tests := []struct {
		name   string
		vendor gousb.ID
		want   bool
	}{
		{name: "measurement computing", vendor: 0x09db, want: true},
		{name: "measurement computing alternative", vendor: 0x0683, want: true},
		{name: "ftdi serial bridge", vendor: 0x0403, want: false},
		{name: "silicon labs serial bridge", vendor: 0x10c4, want: false},
		{name: "prolific serial bridge", vendor: 0x067b, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.matches(&gousb.DeviceDesc{Vendor: tt.vendor}); got != tt.want {
				t.Errorf("matches(%s) = %v, want %v", tt.vendor, got, tt.want)
			}
		})
	}
}

func TestSimulated(t *testing.T) {
	s := NewSimulated()
	s.Noise = 0
	now := s.start
	s.now = func() time.Time { return now }

	ctx := context.Background()
	v0, err := s.Read(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v0-s.Offset) > 1e-9 {
		t.Errorf("channel 0 at t=0 = %v, want %v", v0, s.Offset)
	}
	v2, _ := s.Read(ctx, 2)
	if want := s.Offset + s.Amplitude; math.Abs(v2-want) > 1e-9 {
		t.Errorf("channel 2 at t=0 = %v, want %v", v2, want)
	}

	for i := 0; i < 100; i++ {
		now = now.Add(137 * time.Millisecond)
		for ch := 0; ch < s.NumChannels(); ch++ {
			v, err := s.Read(ctx, ch)
			if err != nil {
				t.Fatal(err)
			}
			if v < s.Offset-s.Amplitude-1e-9 || v > s.Offset+s.Amplitude+1e-9 {
				t.Fatalf("channel %d read %v outside waveform", ch, v)
			}
		}
	}

	if _, err := s.Read(ctx, 8); !errors.Is(err, ErrChannelOutOfRange) {
		t.Errorf("Read(8) = %v", err)
	}
	_ = s.Close()
	if _, err := s.Read(ctx, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Read() after Close = %v", err)
	}
}
