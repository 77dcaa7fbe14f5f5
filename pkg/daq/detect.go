package daq

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Detect tries each prober in order and returns the first device found.
// Prober failures other than ErrNoDevice are logged and skipped.
func Detect(ctx context.Context, probers ...Prober) (Device, error) {
	for _, p := range probers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logrus.WithField("prober", p.Name()).Debug("probing for DAQ device")
		dev, err := p.Probe(ctx)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"prober":  p.Name(),
				"backend": dev.Info().Backend,
				"device":  dev.Info().Name,
			}).Info("DAQ device detected")
			return dev, nil
		}
		if !errors.Is(err, ErrNoDevice) {
			logrus.WithError(err).WithField("prober", p.Name()).Warn("DAQ detection failed")
		}
	}
	return nil, ErrNoDevice
}

// ProberOptions selects the detection chain.
type ProberOptions struct {
	// SerialPorts overrides the glob patterns searched for serial devices.
	SerialPorts []string
	SerialBaud  int
	// Simulate appends the simulated device as a last resort.
	Simulate bool
}

// DefaultProbers returns the detection chain: USB, then serial, then the
// simulator if enabled.
func DefaultProbers(opts ProberOptions) []Prober {
	probers := []Prober{
		NewUSBProber(),
		NewSerialProber(opts.SerialPorts, opts.SerialBaud),
	}
	if opts.Simulate {
		probers = append(probers, NewSimulatedProber())
	}
	return probers
}
