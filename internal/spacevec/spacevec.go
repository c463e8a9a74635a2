// Package spacevec implements space-vector transformations between
// three-phase quantities and their complex-valued representation.
//
// The peak-value scaling convention is used throughout: a balanced
// sinusoidal three-phase set of peak amplitude A maps to a rotating
// complex vector of magnitude A. The zero-sequence component is dropped
// by construction; it cannot flow in the assumed topologies (isolated
// neutral or delta).
package spacevec

import (
	"math"
	"math/cmplx"
)

// Phase rotation operators a = exp(j*2*pi/3) and a^2.
var (
	opA  = cmplx.Exp(complex(0, 2*math.Pi/3))
	opA2 = cmplx.Exp(complex(0, 4*math.Pi/3))
)

// FromPhases maps instantaneous phase values to the complex space vector.
func FromPhases(a, b, c float64) complex128 {
	return (2.0 / 3.0) * (complex(a, 0) + opA*complex(b, 0) + opA2*complex(c, 0))
}

// ToPhases maps a space vector back to instantaneous phase values. The
// reconstruction is exact only when the original triple had zero mean;
// any zero-sequence component was dropped by FromPhases.
func ToPhases(v complex128) (a, b, c float64) {
	a = real(v)
	b = real(v * cmplx.Conj(opA))
	c = real(v * cmplx.Conj(opA2))
	return a, b, c
}

// Rotate rotates a space vector by the angle theta, i.e. transforms
// between coordinate systems. Rotate(v, -theta) maps stator quantities
// into a frame at angle theta; Rotate(v, theta) maps back.
func Rotate(v complex128, theta float64) complex128 {
	return v * cmplx.Exp(complex(0, theta))
}

// SwitchingVector maps a three-phase switching state in {0, 1} to its
// space vector, the per-unit AC-side voltage of a two-level inverter.
func SwitchingVector(qa, qb, qc int) complex128 {
	return FromPhases(float64(qa), float64(qb), float64(qc))
}

// DutyRatios converts a voltage reference and a DC-bus voltage into
// three duty ratios in [0, 1]. Symmetric (min-max) zero-sequence
// injection centers the pulses, extending the linear modulation range
// to u_dc/sqrt(3). References beyond the hexagon saturate per phase.
func DutyRatios(uRef complex128, uDC float64) [3]float64 {
	if uDC <= 0 {
		return [3]float64{0.5, 0.5, 0.5}
	}
	a, b, c := ToPhases(uRef / complex(uDC, 0))
	hi := math.Max(a, math.Max(b, c))
	lo := math.Min(a, math.Min(b, c))
	k := 0.5 - 0.5*(hi+lo)
	return [3]float64{clamp01(a + k), clamp01(b + k), clamp01(c + k)}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
