package observer

import (
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/spacevec"
)

// FluxLaw maps stator current to stator flux linkage in rotor
// coordinates, the inverse of the machine's current law. For the linear
// magnetic model this is psi = L_d*i_d + psi_f + j*L_q*i_q.
type FluxLaw func(i complex128) complex128

// LinearFluxLaw returns the flux law of a linear-magnetics synchronous
// machine.
func LinearFluxLaw(ld, lq, psiF float64) FluxLaw {
	return func(i complex128) complex128 {
		return complex(ld*real(i)+psiF, lq*imag(i))
	}
}

// MotionObserver estimates rotor position and speed of a synchronous
// machine without a shaft sensor. A flux observer in estimated rotor
// coordinates blends the voltage model with the current-law flux, and a
// PLL-type tracker integrates the orientation error into speed and
// position estimates.
//
// The speed-tracking bandwidth is floored at SigmaMin as speed
// approaches zero: unlike the induction machine design, placing a
// double estimation-error pole at the origin would be unstable here, so
// the floor must be a nonzero constant.
type MotionObserver struct {
	Rs       float64
	Law      FluxLaw
	AlphaF   float64 // flux-correction bandwidth
	Zeta     float64 // speed-proportional tracking-bandwidth factor
	SigmaMin float64 // tracking-bandwidth floor, rad/s

	psi   complex128 // stator flux estimate, estimated rotor coordinates
	theta float64    // electrical rotor angle estimate
	w     float64    // electrical speed estimate
}

// NewMotionObserver returns an observer with the flux estimate seeded
// from the flux law at zero current (the magnet flux for PM machines).
func NewMotionObserver(rs float64, law FluxLaw, alphaF, zeta, sigmaMin float64) *MotionObserver {
	if sigmaMin <= 0 {
		sigmaMin = 2 * math.Pi * 2
	}
	return &MotionObserver{
		Rs: rs, Law: law, AlphaF: alphaF, Zeta: zeta, SigmaMin: sigmaMin,
		psi: law(0),
	}
}

func (o *MotionObserver) Angle() float64   { return o.theta }
func (o *MotionObserver) Speed() float64   { return o.w }
func (o *MotionObserver) Flux() complex128 { return o.psi }

// Update advances the observer. us and is are the realized stator
// voltage and measured current in stator coordinates.
func (o *MotionObserver) Update(ts float64, us, is complex128) {
	u := spacevec.Rotate(us, -o.theta)
	i := spacevec.Rotate(is, -o.theta)

	// Error between the current-law flux and the integrated estimate.
	e := o.Law(i) - o.psi

	// Orientation error signal -Im{e/psi}, normalized by the flux
	// magnitude and defined as zero at zero flux.
	a2 := real(o.psi)*real(o.psi) + imag(o.psi)*imag(o.psi)
	eps := 0.0
	if a2 > 1e-12 {
		eps = -imag(e*cmplx.Conj(o.psi)) / a2
	}

	sigma := math.Max(o.SigmaMin, o.Zeta*math.Abs(o.w))

	dpsi := u - complex(o.Rs, 0)*i - complex(0, o.w)*o.psi + complex(o.AlphaF, 0)*e
	o.psi += complex(ts, 0) * dpsi
	o.w += ts * sigma * sigma * eps
	o.theta = wrapAngle(o.theta + ts*(o.w+2*sigma*eps))
}
