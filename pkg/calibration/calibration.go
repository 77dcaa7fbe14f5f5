package calibration

import (
	"errors"
	"fmt"
	"math"
)

// degenerateEpsilon is the smallest voltage span that still defines a line.
const degenerateEpsilon = 1e-6

// DefaultUnit is used when a calibration is saved without a unit.
const DefaultUnit = "units"

// VoltUnit is the unit of an uncalibrated reading.
const VoltUnit = "V"

// ErrDegenerateCalibration is returned by Validate when both calibration
// points share the same voltage.
var ErrDegenerateCalibration = errors.New("calibration voltages must be different")

// Calibration maps a voltage to a physical value through two known points.
type Calibration struct {
	Point1Physical float64 `json:"point1Physical"`
	Point1Voltage  float64 `json:"point1Voltage"`
	Point2Physical float64 `json:"point2Physical"`
	Point2Voltage  float64 `json:"point2Voltage"`
	Unit           string  `json:"unit"`
	Enabled        bool    `json:"enabled"`
}

// Default returns the calibration new channels start with: 0 m at 0 V and
// 1 m at 5 V, disabled.
func Default() Calibration {
	return Calibration{
		Point1Physical: 0,
		Point1Voltage:  0,
		Point2Physical: 1,
		Point2Voltage:  5,
		Unit:           "m",
		Enabled:        false,
	}
}

// Apply converts raw (in volts) using c. A disabled calibration returns raw
// unchanged, and a degenerate one returns Point1Physical.
func Apply(raw float64, c Calibration) float64 {
	if !c.Enabled {
		return raw
	}
	if c.Degenerate() {
		return c.Point1Physical
	}
	return c.Slope()*raw + c.Intercept()
}

// Apply is a shorthand for Apply(raw, c).
func (c Calibration) Apply(raw float64) float64 {
	return Apply(raw, c)
}

// Degenerate reports whether the two points are too close in voltage to
// define a line.
func (c Calibration) Degenerate() bool {
	return math.Abs(c.Point2Voltage-c.Point1Voltage) < degenerateEpsilon
}

// Slope returns m in physical = m*voltage + b, or 0 for a degenerate calibration.
func (c Calibration) Slope() float64 {
	if c.Degenerate() {
		return 0
	}
	return (c.Point2Physical - c.Point1Physical) / (c.Point2Voltage - c.Point1Voltage)
}

// Intercept returns b in physical = m*voltage + b.
func (c Calibration) Intercept() float64 {
	return c.Point1Physical - c.Slope()*c.Point1Voltage
}

// Validate returns ErrDegenerateCalibration for an enabled calibration that
// cannot define a line. Disabled calibrations are always valid.
func (c Calibration) Validate() error {
	if c.Enabled && c.Degenerate() {
		return ErrDegenerateCalibration
	}
	return nil
}

// DisplayUnit is the unit values produced by c are expressed in.
func (c Calibration) DisplayUnit() string {
	if !c.Enabled {
		return VoltUnit
	}
	if c.Unit == "" {
		return DefaultUnit
	}
	return c.Unit
}

// Normalize fills in the default unit.
func (c Calibration) Normalize() Calibration {
	if c.Unit == "" {
		c.Unit = DefaultUnit
	}
	return c
}

// Equation renders the fitted line, its unit and the physical range covered
// by the two points, e.g.
//
//	Physical = 0.200000 × Voltage + 0.000000
//	Units: m
//	Range: 0.000 to 1.000 m
func (c Calibration) Equation() (string, error) {
	if c.Degenerate() {
		return "", ErrDegenerateCalibration
	}
	unit := c.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	return fmt.Sprintf("Physical = %.6f × Voltage + %.6f\nUnits: %s\nRange: %.3f to %.3f %s",
		c.Slope(), c.Intercept(), unit,
		math.Min(c.Point1Physical, c.Point2Physical),
		math.Max(c.Point1Physical, c.Point2Physical), unit,
	), nil
}
