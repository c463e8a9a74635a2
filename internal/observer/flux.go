// Package observer implements the estimators embedded in the discrete
// control systems: a reduced-order rotor-flux observer and speed
// observer for induction machines, a position/speed observer for
// synchronous machines, and a grid PLL.
//
// All observers are discretized with forward Euler; the usable
// bandwidth-to-sample-rate ratio is about 1/10.
package observer

import (
	"math"
	"math/cmplx"
)

// FluxObserver is a reduced-order rotor-flux observer for induction
// machines, formulated in stator coordinates on the inverse-Gamma
// model:
//
//	dpsi_R/dt = R_R*i_s - (alpha - j*w_m)*psi_R + k1*e + k2*conj(e)
//
// where e is the difference between the voltage-model and
// current-model flux derivatives. In sensorless mode the gain pair is
// coupled as k2 = (psi_R/conj(psi_R))*k1, which makes the rotor-speed
// estimate cancel from the flux-error dynamics: the observer is
// inherently sensorless. Breaking this coupling reintroduces a
// dependency on the quantity being estimated.
//
// The gain schedule places the estimation-error poles at {0, -alpha}
// at zero speed, which permits stable magnetizing at standstill, and
// at approximately -Zeta*|w_m| at speed.
type FluxObserver struct {
	Rs     float64 // stator resistance estimate
	RR     float64 // rotor resistance estimate (inverse-Gamma)
	LSigma float64 // leakage inductance estimate
	LM     float64 // magnetizing inductance estimate
	Zeta   float64 // pole-scaling factor of the gain schedule

	Sensorless bool

	psiR  complex128 // rotor flux estimate, stator coordinates
	innov complex128 // latest innovation e
	iOld  complex128
	init  bool
}

// NewFluxObserver returns an observer for the given inverse-Gamma
// parameter estimates. zeta <= 0 selects the default 1.
func NewFluxObserver(rs, rR, lSigma, lM, zeta float64, sensorless bool) *FluxObserver {
	if zeta <= 0 {
		zeta = 1
	}
	return &FluxObserver{Rs: rs, RR: rR, LSigma: lSigma, LM: lM, Zeta: zeta, Sensorless: sensorless}
}

func (o *FluxObserver) alpha() float64 { return o.RR / o.LM }

// Flux returns the rotor flux estimate in stator coordinates.
func (o *FluxObserver) Flux() complex128 { return o.psiR }

// Angle returns the estimated rotor-flux angle.
func (o *FluxObserver) Angle() float64 { return cmplx.Phase(o.psiR) }

// SpeedError returns the scalar speed-estimation error signal
// Im{e/psi_R}, the input of the speed observer. Defined as zero at
// zero flux.
func (o *FluxObserver) SpeedError() float64 {
	a2 := real(o.psiR)*real(o.psiR) + imag(o.psiR)*imag(o.psiR)
	if a2 < 1e-12 {
		return 0
	}
	return imag(o.innov*cmplx.Conj(o.psiR)) / a2
}

// StatorFrequency returns the angular frequency of the estimated flux
// vector from the slip relation, used for current-controller
// decoupling. wEl is the (estimated or measured) electrical speed.
func (o *FluxObserver) StatorFrequency(is complex128, wEl float64) float64 {
	a2 := real(o.psiR)*real(o.psiR) + imag(o.psiR)*imag(o.psiR)
	if a2 < 1e-12 {
		return wEl
	}
	return wEl + o.RR*imag(is*cmplx.Conj(o.psiR))/a2
}

// gains returns the sensorless gain pair for the scheduled error poles.
// The design is done in estimated-flux coordinates, where the desired
// characteristic polynomial is
//
//	s^2 + (alpha + 2*Zeta*|w|)*s + Zeta^2*w^2
//
// whose roots are {0, -alpha} at w = 0.
func (o *FluxObserver) gains(wEl float64) (k1, k2 complex128) {
	alpha := o.alpha()
	c1 := alpha + 2*o.Zeta*math.Abs(wEl)
	c0 := o.Zeta * o.Zeta * wEl * wEl

	kr := 0.5 - c0/(2*(alpha*alpha+wEl*wEl))
	ki := 0.0
	if wEl != 0 {
		ki = (2*(1-kr)*alpha - c1) / (2 * wEl)
	}
	k1 = complex(kr, ki)

	// Inherently sensorless coupling.
	if o.psiR == 0 {
		return k1, k1
	}
	return k1, k1 * o.psiR / cmplx.Conj(o.psiR)
}

// Update advances the observer by one sampling period. us is the
// realized stator voltage, is the measured stator current and wEl the
// electrical rotor speed: the speed-observer estimate in sensorless
// mode, the measured speed otherwise.
func (o *FluxObserver) Update(ts float64, us, is complex128, wEl float64) {
	if !o.init {
		o.iOld = is
		o.init = true
	}
	dis := (is - o.iOld) / complex(ts, 0)
	o.iOld = is

	// Voltage model: dpsi_R/dt from measured quantities alone.
	v := us - complex(o.Rs, 0)*is - complex(o.LSigma, 0)*dis
	// Current model prediction.
	pred := complex(o.RR, 0)*is - complex(o.alpha(), -wEl)*o.psiR

	e := v - pred
	o.innov = e

	var corr complex128
	if o.Sensorless {
		k1, k2 := o.gains(wEl)
		corr = k1*e + k2*cmplx.Conj(e)
	} else {
		// With measured speed a plain real gain suffices.
		corr = complex(0.5, 0) * e
	}
	o.psiR += complex(ts, 0) * (pred + corr)
}
