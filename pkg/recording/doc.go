// Package recording accumulates calibrated samples from active channels and
// exports them as a commented CSV file.
//
// A Recorder moves through three states:
//
//	Idle --Start--> Recording --Stop--> Stopped --Export/Discard--> Idle
//
// A failed Export leaves the Recorder in Stopped with all samples intact, so
// the caller may retry with another destination.
package recording
