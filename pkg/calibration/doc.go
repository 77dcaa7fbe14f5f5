// Package calibration converts raw analog readings into physical units.
// It contains:
//
//   - Calibration: a two-point linear fit plus the unit it produces
//   - Apply: the transform used by the daemon, recordings and plots
//
// A Calibration whose two voltages are (nearly) equal cannot define a line.
// Apply saturates to the first physical point in that case instead of
// returning an error, so a bad calibration never interrupts acquisition.
package calibration
