package control

import "math/cmplx"

// PIController is a two-degree-of-freedom PI controller with
// realized-output anti-windup. Output computes the unsaturated control
// signal; the caller saturates it and passes the realized value to
// Update, which advances the integral state by back-calculation so it
// cannot wind up while the output is limited.
type PIController struct {
	Kp float64 // proportional gain on the feedback
	Ki float64 // integral gain
	Kt float64 // reference feedforward gain (Kt = Kp gives 1DOF)

	v float64 // integral state
	e float64 // last error, for the update
	u float64 // last unsaturated output
}

func NewPIController(kp, ki, kt float64) *PIController {
	return &PIController{Kp: kp, Ki: ki, Kt: kt}
}

func (c *PIController) Output(ref, fbk float64) float64 {
	c.e = ref - fbk
	c.u = c.Kt*ref - c.Kp*fbk + c.v
	return c.u
}

// Update advances the integral state using the realized output. With
// uRealized == the last Output value this is a plain integrator; when
// the realized value was clipped, the difference bleeds the integral
// with the tracking time constant Kp/Ki.
func (c *PIController) Update(ts, uRealized float64) {
	c.v += ts * c.Ki * (c.e + (uRealized-c.u)/c.Kp)
}

// Reset clears the integral state.
func (c *PIController) Reset() { c.v, c.e, c.u = 0, 0, 0 }

// ComplexPIController is the space-vector equivalent of PIController,
// used for synchronous-frame current control. A decoupling feedforward
// term is added by the caller through Output's ff argument.
type ComplexPIController struct {
	Kp float64
	Ki float64
	Kt float64

	v complex128
	e complex128
	u complex128
}

func NewComplexPIController(kp, ki, kt float64) *ComplexPIController {
	return &ComplexPIController{Kp: kp, Ki: ki, Kt: kt}
}

func (c *ComplexPIController) Output(ref, fbk, ff complex128) complex128 {
	c.e = ref - fbk
	c.u = complex(c.Kt, 0)*ref - complex(c.Kp, 0)*fbk + c.v + ff
	return c.u
}

func (c *ComplexPIController) Update(ts float64, uRealized complex128) {
	c.v += complex(ts*c.Ki, 0) * (c.e + (uRealized-c.u)/complex(c.Kp, 0))
}

func (c *ComplexPIController) Reset() { c.v, c.e, c.u = 0, 0, 0 }

// limitMagnitude clips a space vector to the given magnitude while
// preserving its direction.
func limitMagnitude(u complex128, max float64) complex128 {
	if abs := cmplx.Abs(u); abs > max && abs > 0 {
		return u * complex(max/abs, 0)
	}
	return u
}
