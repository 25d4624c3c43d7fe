package xtce

import (
	"math"
	"testing"
)

func TestPolynomialCalibrateNoChange(t *testing.T) {
	c := &PolynomialCalibrator{Terms: []Term{{0.0, 0}, {1.0, 1}}}
	if got := c.Calibrate(12); got != 12.0 {
		t.Errorf("got %v, want 12.0", got)
	}
}

func TestPolynomialCalibrateOffset(t *testing.T) {
	c := &PolynomialCalibrator{Terms: []Term{{10.0, 0}, {1.0, 1}}}
	if got := c.Calibrate(12); got != 22.0 {
		t.Errorf("got %v, want 22.0", got)
	}
}

func TestPolynomialCalibrateLinear(t *testing.T) {
	c := &PolynomialCalibrator{Terms: []Term{{10.0, 0}, {0.1, 1}}}
	if got := c.Calibrate(12); got != 11.2 {
		t.Errorf("got %v, want 11.2", got)
	}
}

func TestPolynomialCalibrateQuadratic(t *testing.T) {
	c := &PolynomialCalibrator{Terms: []Term{{-15.0, 0}, {2.0, 1}, {1.0, 2}}}
	if got := c.Calibrate(12); got != 153.0 {
		t.Errorf("got %v, want 153.0", got)
	}
}

// TestPolynomialCalibrateFiveTerms is the CCSDS 660x1g2-derived case:
// a steep quartic term dominates, so the other four terms contribute
// nothing at double precision and an exact equality assertion would be
// brittle across pow() implementations; a relative tolerance is used
// instead.
func TestPolynomialCalibrateFiveTerms(t *testing.T) {
	c := &PolynomialCalibrator{Terms: []Term{
		{-7459.23273708, 0},
		{8.23643519148, 1},
		{-3.02185061876e3, 2},
		{2.33422429056e-7, 3},
		{5.67189556173e11, 4},
	}}
	got := c.Calibrate(8012)
	want := 2.3371790673058884e+27
	if relErr := math.Abs(got-want) / want; relErr > 1e-9 {
		t.Errorf("got %v, want %v (relative error %v)", got, want, relErr)
	}
}

func TestPolynomialUncalibrateLinearCases(t *testing.T) {
	cases := []struct {
		terms []Term
		cal   float64
		uncal float64
	}{
		{[]Term{{0.0, 0}, {1.0, 1}}, 12.0, 12},
		{[]Term{{10.0, 0}, {1.0, 1}}, 22.0, 12},
		{[]Term{{10.0, 0}, {0.1, 1}}, 11.2, 12},
	}
	for _, tc := range cases {
		c := &PolynomialCalibrator{Terms: tc.terms}
		got, err := c.Uncalibrate(tc.cal)
		if err != nil {
			t.Fatalf("uncalibrate(%v) failed: %v", tc.cal, err)
		}
		if math.Abs(got-tc.uncal) > 1e-9 {
			t.Errorf("uncalibrate(%v) = %v, want %v", tc.cal, got, tc.uncal)
		}
	}
}

// TestPolynomialUncalibrateQuadraticWithRange exercises the tie-break
// rule for a calibrator with two exact real roots (12 and -14 for
// x^2+2x-168=0): a declared RawRange disambiguates deterministically in
// favor of the in-range root.
func TestPolynomialUncalibrateQuadraticWithRange(t *testing.T) {
	c := &PolynomialCalibrator{
		Terms:    []Term{{-15.0, 0}, {2.0, 1}, {1.0, 2}},
		RawRange: &ValidRange{Min: 0, Max: 100},
	}
	got, err := c.Uncalibrate(153.0)
	if err != nil {
		t.Fatalf("uncalibrate failed: %v", err)
	}
	if math.Abs(got-12) > 1e-6 {
		t.Errorf("got %v, want 12", got)
	}
}

func TestPolynomialUncalibrateNoRealRoot(t *testing.T) {
	// x^2 + 1 = y has no real root for y < 1.
	c := &PolynomialCalibrator{Terms: []Term{{1.0, 0}, {0.0, 1}, {1.0, 2}}}
	_, err := c.Uncalibrate(0)
	if err == nil {
		t.Fatal("expected an error for a calibration inverse with no real root")
	}
	if _, ok := err.(*CalibrationError); !ok {
		t.Errorf("expected *CalibrationError, got %T", err)
	}
}

func TestPolynomialCalibrateRoundTripHighDegree(t *testing.T) {
	c := &PolynomialCalibrator{
		Terms:    []Term{{2.0, 0}, {3.0, 1}, {-1.0, 2}, {0.5, 3}},
		RawRange: &ValidRange{Min: -5, Max: 5},
	}
	for _, x := range []float64{-4, -1, 0, 1.5, 3} {
		y := c.Calibrate(x)
		back, err := c.Uncalibrate(y)
		if err != nil {
			t.Fatalf("x=%v: uncalibrate failed: %v", x, err)
		}
		if math.Abs(back-x) > 1e-6 {
			t.Errorf("x=%v: round trip gave %v", x, back)
		}
	}
}
