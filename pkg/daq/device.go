// Package daq talks to data acquisition hardware.
//
// A Device reads voltages from numbered analog channels. Probers know how to
// find one kind of device; Detect walks a list of them and returns the first
// device that answers.
package daq

import (
	"context"
	"errors"
)

var (
	// ErrNoDevice is returned by a Prober when it finds nothing to open.
	ErrNoDevice = errors.New("no DAQ device detected")
	// ErrNoReading means the channel has not produced a value yet.
	ErrNoReading = errors.New("no reading available")
	// ErrStaleReading is returned when a channel stopped producing readings.
	ErrStaleReading = errors.New("reading is stale")
	// ErrChannelOutOfRange means the channel exceeds the device limit.
	ErrChannelOutOfRange = errors.New("channel exceeds device limit")
	// ErrClosed is returned by reads on a closed device.
	ErrClosed = errors.New("device closed")
)

// Backend names reported in Info.
const (
	BackendUSB       = "usb"
	BackendSerial    = "serial"
	BackendSimulated = "simulated"
)

// Info describes an opened device.
type Info struct {
	Backend string `json:"backend"`
	Name    string `json:"name"`
	// Path is the serial port or USB bus address.
	Path string `json:"path,omitempty"`
}

// Device is an opened DAQ device. Channels are zero-based.
type Device interface {
	Info() Info
	NumChannels() int
	// Read returns the voltage currently present on channel.
	Read(ctx context.Context, channel int) (float64, error)
	Close() error
}

// Prober finds and opens one kind of device.
type Prober interface {
	Name() string
	// Probe returns ErrNoDevice if nothing was found.
	Probe(ctx context.Context) (Device, error)
}
