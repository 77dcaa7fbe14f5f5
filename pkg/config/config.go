package config

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/calibration"
)

const (
	// MinSampleRate and MaxSampleRate bound the acquisition rate in Hz.
	MinSampleRate = 1
	MaxSampleRate = 1000
)

type Config interface {
	// Pins returns a copy of the pin table, sorted by pin number.
	Pins() []Pin
	Pin(number int) (Pin, bool)
	// AnalogPins returns the pins that can be monitored.
	AnalogPins() []Pin
	SampleRate() int

	SetPinName(number int, name string) error
	SetCalibration(number int, cal calibration.Calibration) error
	SetPinColor(number int, color string) error
	SetSampleRate(int) error

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
