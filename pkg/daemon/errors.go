package daemon

import "errors"

var (
	ErrMonitoringActive     = errors.New("monitoring is running")
	ErrMonitoringNotRunning = errors.New("monitoring is not running")
	ErrNoChannelsEnabled    = errors.New("no channels enabled for monitoring")
	// ErrPinRecording is returned when changing the calibration of a pin that
	// belongs to the session being recorded.
	ErrPinRecording = errors.New("pin is part of the active recording")
	// ErrNoArchive is returned when the daemon runs without an archive database.
	ErrNoArchive = errors.New("no archive database configured")
)
