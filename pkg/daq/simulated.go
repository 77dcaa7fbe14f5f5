package daq

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	simulatedChannels = 8
	maxVolts          = 10.0
)

// SimulatedProber always finds a simulated device.
type SimulatedProber struct{}

func NewSimulatedProber() *SimulatedProber { return &SimulatedProber{} }

func (*SimulatedProber) Name() string { return BackendSimulated }

func (*SimulatedProber) Probe(context.Context) (Device, error) {
	return NewSimulated(), nil
}

// Simulated produces a sine wave plus gaussian noise on every channel. Each
// channel runs at its own phase and frequency so plots are distinguishable.
type Simulated struct {
	Offset    float64
	Amplitude float64
	// Frequency of channel 0 in Hz. Channel n runs at Frequency*(1+n/4).
	Frequency float64
	Noise     float64

	mu     sync.Mutex
	closed bool
	start  time.Time
	now    func() time.Time
}

func NewSimulated() *Simulated {
	return &Simulated{
		Offset:    2.5,
		Amplitude: 1.5,
		Frequency: 0.2,
		Noise:     0.02,
		start:     time.Now(),
		now:       time.Now,
	}
}

func (s *Simulated) Info() Info {
	return Info{Backend: BackendSimulated, Name: "Simulated DAQ"}
}

func (s *Simulated) NumChannels() int { return simulatedChannels }

func (s *Simulated) Read(ctx context.Context, channel int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if channel < 0 || channel >= simulatedChannels {
		return 0, ErrChannelOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	t := s.now().Sub(s.start).Seconds()
	freq := s.Frequency * (1 + float64(channel)/4)
	phase := float64(channel) * math.Pi / 4
	v := s.Offset + s.Amplitude*math.Sin(2*math.Pi*freq*t+phase)
	if s.Noise > 0 {
		v += distuv.Normal{Mu: 0, Sigma: s.Noise}.Rand()
	}
	return math.Max(-maxVolts, math.Min(maxVolts, v)), nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
