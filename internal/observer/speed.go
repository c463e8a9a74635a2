package observer

import "math"

// SpeedObserver integrates the flux observer's speed-error signal into
// an electrical rotor speed estimate. Two designs are exposed through
// one (bandwidth, inertia-estimate) parameter pair:
//
//   - JHat = +Inf (the default) disables the mechanical model; the
//     estimate is a plain first-order tracker with bandwidth Alpha.
//   - A finite JHat adds a mechanical-model feedforward with a
//     load-torque disturbance state; both estimation-error poles are
//     placed at -Alpha. This reduces estimator lag at the price of
//     sensitivity to the inertia estimate.
type SpeedObserver struct {
	Alpha float64 // observer bandwidth, rad/s
	JHat  float64 // inertia estimate, kg*m^2; +Inf disables the term
	NP    int     // pole pairs, for the torque feedforward

	wEl  float64 // electrical speed estimate
	tauL float64 // load-torque disturbance estimate
}

// NewSpeedObserver returns a speed observer; jHat <= 0 is treated as
// infinite (mechanical model disabled).
func NewSpeedObserver(alpha float64, jHat float64, np int) *SpeedObserver {
	if jHat <= 0 {
		jHat = math.Inf(1)
	}
	return &SpeedObserver{Alpha: alpha, JHat: jHat, NP: np}
}

// Speed returns the electrical speed estimate.
func (o *SpeedObserver) Speed() float64 { return o.wEl }

// LoadTorque returns the load-torque disturbance estimate; zero when
// the mechanical model is disabled.
func (o *SpeedObserver) LoadTorque() float64 { return o.tauL }

// Update advances the estimate. eps is the flux observer's speed-error
// signal and tauM the torque produced according to the control system
// (used only with a finite inertia estimate).
func (o *SpeedObserver) Update(ts, eps, tauM float64) {
	if math.IsInf(o.JHat, 1) {
		o.wEl += ts * o.Alpha * eps
		return
	}
	kScale := float64(o.NP) / o.JHat
	o.wEl += ts * (2*o.Alpha*eps + kScale*(tauM-o.tauL))
	o.tauL -= ts * o.Alpha * o.Alpha / kScale * eps
}
