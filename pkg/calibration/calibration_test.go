package calibration

import (
	"errors"
	"math"
	"strings"
	"testing"
	"testing/quick"
)

func approxEqual(a, b float64) bool {
	m := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= m*1e-6
}

// bounded folds quick's full-range floats into [-1000, 1000).
func bounded(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Mod(x, 1000)
}

func TestApplyAnchors(t *testing.T) {
	if err := quick.Check(func(p1, v1, p2, v2 float64) bool {
		c := Calibration{
			Point1Physical: bounded(p1),
			Point1Voltage:  bounded(v1),
			Point2Physical: bounded(p2),
			Point2Voltage:  bounded(v2),
			Unit:           "psi",
			Enabled:        true,
		}
		if math.Abs(c.Point2Voltage-c.Point1Voltage) < 1e-3 {
			return true
		}
		return approxEqual(Apply(c.Point1Voltage, c), c.Point1Physical) &&
			approxEqual(Apply(c.Point2Voltage, c), c.Point2Physical)
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestApplyDisabled(t *testing.T) {
	c := Calibration{Point1Physical: 3, Point1Voltage: 1, Point2Physical: 9, Point2Voltage: 2, Enabled: false}
	if err := quick.Check(func(v float64) bool {
		return Apply(v, c) == v
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestApplyDegenerate(t *testing.T) {
	c := Calibration{Point1Physical: 42, Point1Voltage: 1.5, Point2Physical: 7, Point2Voltage: 1.5, Enabled: true}
	if err := quick.Check(func(v float64) bool {
		return Apply(v, c) == 42
	}, nil); err != nil {
		t.Error(err)
	}

	almost := c
	almost.Point2Voltage = 1.5 + 1e-7
	if got := Apply(10, almost); got != 42 {
		t.Errorf("Apply() = %v, want 42 for a span below the threshold", got)
	}
}

func TestApplyExample(t *testing.T) {
	c := Calibration{Point1Physical: 0, Point1Voltage: 0, Point2Physical: 1, Point2Voltage: 5, Unit: "m", Enabled: true}
	if got := Apply(2.5, c); !approxEqual(got, 0.5) {
		t.Fatalf("Apply(2.5) = %v, want 0.5", got)
	}
	if got := c.Apply(2.5); !approxEqual(got, 0.5) {
		t.Fatalf("c.Apply(2.5) = %v, want 0.5", got)
	}
}

func TestSlopeIntercept(t *testing.T) {
	tests := []struct {
		name          string
		cal           Calibration
		wantSlope     float64
		wantIntercept float64
	}{
		{
			name:          "pressure transducer 0.5-4.5V to 0-100psi",
			cal:           Calibration{Point1Physical: 0, Point1Voltage: 0.5, Point2Physical: 100, Point2Voltage: 4.5},
			wantSlope:     25,
			wantIntercept: -12.5,
		},
		{
			name:          "inverted",
			cal:           Calibration{Point1Physical: 10, Point1Voltage: 0, Point2Physical: 0, Point2Voltage: 10},
			wantSlope:     -1,
			wantIntercept: 10,
		},
		{
			name:          "degenerate",
			cal:           Calibration{Point1Physical: 3, Point1Voltage: 2, Point2Physical: 5, Point2Voltage: 2},
			wantSlope:     0,
			wantIntercept: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cal.Slope(); !approxEqual(got, tt.wantSlope) {
				t.Errorf("Slope() = %v, want %v", got, tt.wantSlope)
			}
			if got := tt.cal.Intercept(); !approxEqual(got, tt.wantIntercept) {
				t.Errorf("Intercept() = %v, want %v", got, tt.wantIntercept)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	c := Calibration{Point1Voltage: 1, Point2Voltage: 1, Enabled: true}
	if err := c.Validate(); !errors.Is(err, ErrDegenerateCalibration) {
		t.Fatalf("Validate() = %v, want ErrDegenerateCalibration", err)
	}
	c.Enabled = false
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() on disabled calibration = %v", err)
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate() on default calibration = %v", err)
	}
}

func TestEquation(t *testing.T) {
	c := Default()
	eq, err := c.Equation()
	if err != nil {
		t.Fatal(err)
	}
	want := "Physical = 0.200000 × Voltage + 0.000000\nUnits: m\nRange: 0.000 to 1.000 m"
	if eq != want {
		t.Fatalf("Equation() = %q, want %q", eq, want)
	}

	c.Unit = ""
	eq, err = c.Equation()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(eq, "Units: units") {
		t.Errorf("Equation() should fall back to the default unit, got %q", eq)
	}

	c.Point2Voltage = c.Point1Voltage
	if _, err := c.Equation(); err == nil {
		t.Error("Equation() of a degenerate calibration should fail")
	}
}

func TestDisplayUnit(t *testing.T) {
	c := Default()
	if got := c.DisplayUnit(); got != "V" {
		t.Errorf("DisplayUnit() = %q, want V", got)
	}
	c.Enabled = true
	if got := c.DisplayUnit(); got != "m" {
		t.Errorf("DisplayUnit() = %q, want m", got)
	}
	c.Unit = ""
	if got := c.DisplayUnit(); got != DefaultUnit {
		t.Errorf("DisplayUnit() = %q, want %q", got, DefaultUnit)
	}
}
