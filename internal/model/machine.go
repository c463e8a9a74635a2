package model

import "math/cmplx"

// Machine is a continuous-time electrical machine subsystem. Its state
// is a slice of packed complex flux linkages (plus the electrical rotor
// angle for synchronous machines). The terminal voltage us and the
// electrical rotor speed wEl are its declared inputs.
type Machine interface {
	Dim() int
	InitialState() []float64
	Derivative(dst, x []float64, us complex128, wEl float64)
	// Current returns the stator current in stator coordinates.
	Current(x []float64) complex128
	// Torque returns the electromagnetic torque.
	Torque(x []float64) float64
	PolePairs() int
}

// torque is the bilinear torque law 1.5*np*Im{i*conj(psi)}, exact for
// any current law, saturated or not.
func torque(np int, i, psi complex128) float64 {
	return 1.5 * float64(np) * imag(i*cmplx.Conj(psi))
}
