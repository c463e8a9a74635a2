// Package model implements the continuous-time plant: machine, filter,
// converter and mechanical subsystems, and their composition into a
// single differential system for the integrator.
//
// Two-axis quantities are complex space vectors (package spacevec
// convention). The flat state vector seen by the integrator packs each
// complex state as a re/im pair; packing offsets are resolved once at
// construction and never change during a simulation.
package model

// Plant is the integrator-facing contract of a composed model. The
// derivative must be a pure function of (t, x) and the applied
// switching input set through SetSwitching.
type Plant interface {
	Dim() int
	// Derivative writes dx/dt into dst.
	Derivative(dst []float64, t float64, x []float64)
	// State returns the live state vector, advanced in place by the
	// integrator. Owned by the plant; callers must not retain it.
	State() []float64
	// SetSwitching applies a switching-state (or duty) space vector,
	// held constant until the next call.
	SetSwitching(q complex128)
	// Measure samples the plant outputs at the current state, emulating
	// instantaneous-sample conversion at the end of an interval.
	Measure(t float64) Measurement
}

// Measurement is the raw feedback bundle available to a controller at
// one sampling instant. Fields not provided by a topology are zero.
type Measurement struct {
	Is     complex128 // converter output current, stator coordinates
	UDC    float64    // DC-bus voltage
	WM     float64    // rotor speed, mechanical rad/s
	ThetaM float64    // rotor angle, mechanical rad
	UG     complex128 // grid voltage at the connection point
	IG     complex128 // grid-side current (LCL filter)
	UF     complex128 // filter capacitor voltage
}

func packComplex(dst []float64, off int, v complex128) {
	dst[off] = real(v)
	dst[off+1] = imag(v)
}

func unpackComplex(x []float64, off int) complex128 {
	return complex(x[off], x[off+1])
}
