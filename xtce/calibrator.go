package xtce

import (
	"math"
	"math/cmplx"
)

// Term is one coefficient*x^exponent term of a PolynomialCalibrator.
type Term struct {
	Coefficient float64
	Exponent    int
}

// PolynomialCalibrator maps a raw value to an engineering value via
// p(x) = sum(coefficient_i * x^exponent_i), and inverts that mapping by
// root-finding.
type PolynomialCalibrator struct {
	Terms []Term

	// RawRange optionally bounds the raw values this calibrator is used
	// over; when set, it informs root selection during Uncalibrate.
	RawRange *ValidRange
}

// Calibrate evaluates the polynomial forward: raw -> engineering.
func (c *PolynomialCalibrator) Calibrate(x float64) float64 {
	var sum float64
	for _, t := range c.Terms {
		sum += t.Coefficient * math.Pow(x, float64(t.Exponent))
	}
	return sum
}

const calibrationRootEpsilon = 1e-9

// Uncalibrate inverts the polynomial: engineering -> raw, by finding the
// real roots of p(x) - y = 0.
//
// Root selection, in order:
//  1. discard roots whose imaginary part exceeds calibrationRootEpsilon,
//  2. among real roots, prefer those within RawRange (when declared),
//  3. among the roots surviving (1)-(2), prefer the one closest to the
//     midpoint of RawRange (when declared),
//  4. otherwise, the one minimizing |p(x) - y|.
//
// This order is deterministic and matches spec.md §4.3.
func (c *PolynomialCalibrator) Uncalibrate(y float64) (float64, error) {
	coeffs := c.normalizedCoefficients(y)
	roots := polynomialRealRoots(coeffs, calibrationRootEpsilon)
	if len(roots) == 0 {
		return 0, &CalibrationError{Value: y, Msg: "no real root found for calibration inverse"}
	}

	if c.RawRange != nil {
		var inRange []float64
		for _, r := range roots {
			if c.RawRange.Contains(r) {
				inRange = append(inRange, r)
			}
		}
		if len(inRange) > 0 {
			mid := (c.RawRange.Min + c.RawRange.Max) / 2
			return closestTo(inRange, mid), nil
		}
	}

	return bestFit(roots, c.Terms, y), nil
}

// normalizedCoefficients returns coefficients (low exponent first, zero
// padding any gaps) for p(x) - y = 0.
func (c *PolynomialCalibrator) normalizedCoefficients(y float64) []float64 {
	maxExp := 0
	for _, t := range c.Terms {
		if t.Exponent > maxExp {
			maxExp = t.Exponent
		}
	}
	coeffs := make([]float64, maxExp+1)
	for _, t := range c.Terms {
		coeffs[t.Exponent] += t.Coefficient
	}
	coeffs[0] -= y
	return coeffs
}

func closestTo(candidates []float64, target float64) float64 {
	best := candidates[0]
	bestDist := math.Abs(best - target)
	for _, v := range candidates[1:] {
		d := math.Abs(v - target)
		if d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

func bestFit(candidates []float64, terms []Term, y float64) float64 {
	eval := func(x float64) float64 {
		var sum float64
		for _, t := range terms {
			sum += t.Coefficient * math.Pow(x, float64(t.Exponent))
		}
		return sum
	}
	best := candidates[0]
	bestErr := math.Abs(eval(best) - y)
	for _, v := range candidates[1:] {
		e := math.Abs(eval(v) - y)
		if e < bestErr {
			best, bestErr = v, e
		}
	}
	return best
}

// polynomialRealRoots finds the real roots of the polynomial with
// coefficients coeffs (coeffs[i] is the coefficient of x^i), via the
// Durand-Kerner simultaneous-iteration method. A root is considered real
// when its imaginary part's magnitude is below eps.
//
// Durand-Kerner is used in place of the source's numpy companion-matrix
// eigenvalue decomposition (see spec.md Design Notes: "any equivalent
// polynomial-root algorithm is acceptable"); it needs only complex
// arithmetic, avoiding a dependency on a linear-algebra library that
// nothing else in this module would otherwise need.
func polynomialRealRoots(coeffs []float64, eps float64) []float64 {
	// Trim trailing (high-exponent) zero coefficients.
	deg := len(coeffs) - 1
	for deg > 0 && coeffs[deg] == 0 {
		deg--
	}
	if deg < 1 {
		return nil
	}
	if deg == 1 {
		return []float64{-coeffs[0] / coeffs[1]}
	}

	// Monic form: divide through by the leading coefficient.
	lead := coeffs[deg]
	monic := make([]float64, deg+1)
	for i := range monic {
		monic[i] = coeffs[i] / lead
	}

	eval := func(x complex128) complex128 {
		var acc complex128
		for i := deg; i >= 0; i-- {
			acc = acc*x + complex(monic[i], 0)
		}
		return acc
	}

	roots := make([]complex128, deg)
	// Classic Durand-Kerner initial guess, spread around the unit circle
	// and scaled, avoids collisions among initial estimates.
	base := complex(0.4, 0.9)
	seed := complex128(1)
	for i := range roots {
		roots[i] = seed
		seed *= base
	}

	const maxIter = 200
	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0
		for i := range roots {
			numerator := eval(roots[i])
			denom := complex(1, 0)
			for j := range roots {
				if j == i {
					continue
				}
				denom *= roots[i] - roots[j]
			}
			if denom == 0 {
				continue
			}
			delta := numerator / denom
			roots[i] -= delta
			if d := cmplx.Abs(delta); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < 1e-14 {
			break
		}
	}

	var realRoots []float64
	for _, r := range roots {
		if math.Abs(imag(r)) < eps {
			realRoots = append(realRoots, math.Round(realPart(r)*1e12)/1e12)
		}
	}
	return realRoots
}

func realPart(c complex128) float64 { return real(c) }
