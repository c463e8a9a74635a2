package control

import (
	"math"
)

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// mtpaCurrent returns the minimum-magnitude current vector (rotor
// coordinates) that produces the torque tau on a linear-magnetics
// synchronous machine, clipped to the current limit iMax. Requests
// beyond the limit return the maximum-torque point on the limit
// circle: the nearest feasible operating point, never an error.
func mtpaCurrent(tau, ld, lq, psiF float64, np int, iMax float64) complex128 {
	if tau == 0 || iMax <= 0 {
		return 0
	}
	// Signed torque along the MTPA locus with iq > 0.
	torqueAt := func(iAbs float64) (complex128, float64) {
		id := mtpaD(iAbs, ld, lq, psiF)
		iq := math.Sqrt(math.Max(0, iAbs*iAbs-id*id))
		t := 1.5 * float64(np) * (psiF + (ld-lq)*id) * iq
		return complex(id, iq), t
	}

	target := math.Abs(tau)
	i, tMax := torqueAt(iMax)
	if target < math.Abs(tMax) {
		lo, hi := 0.0, iMax
		for k := 0; k < 60; k++ {
			mid := 0.5 * (lo + hi)
			if _, t := torqueAt(mid); math.Abs(t) < target {
				lo = mid
			} else {
				hi = mid
			}
		}
		i, tMax = torqueAt(0.5 * (lo + hi))
	}
	if (tau < 0) != (tMax < 0) {
		i = complex(real(i), -imag(i))
	}
	return i
}

// mtpaD returns the maximum-torque-per-ampere d-axis current for the
// given current magnitude. For a nonsalient machine this is zero; for
// a pure reluctance machine it is the 45-degree locus.
func mtpaD(iAbs, ld, lq, psiF float64) float64 {
	dl := lq - ld
	if math.Abs(dl) < 1e-12 {
		return 0
	}
	if psiF == 0 {
		return iAbs / math.Sqrt2
	}
	a := psiF / (4 * dl)
	r := math.Sqrt(a*a + iAbs*iAbs/2)
	if dl > 0 {
		return a - r
	}
	return a + r
}

// maxTorque returns the torque magnitude available at the current
// limit along the MTPA locus, the feasibility bound for torque
// references.
func maxTorque(ld, lq, psiF float64, np int, iMax float64) float64 {
	id := mtpaD(iMax, ld, lq, psiF)
	iq := math.Sqrt(math.Max(0, iMax*iMax-id*id))
	return math.Abs(1.5 * float64(np) * (psiF + (ld-lq)*id) * iq)
}
