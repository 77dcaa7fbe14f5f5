package config

import "errors"

var (
	// ErrPinNotFound is returned when a pin number is not part of the layout.
	ErrPinNotFound = errors.New("pin not found")

	// ErrNotAnalogInput is returned when an analog-only setting targets another pin type.
	ErrNotAnalogInput = errors.New("pin is not an analog input")

	// ErrInvalidName is returned for blank pin names.
	ErrInvalidName = errors.New("pin name must not be empty")

	// ErrInvalidSampleRate is returned for rates outside MinSampleRate..MaxSampleRate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")
)
