// Package integrator provides the continuous-time ODE solver used to
// advance plant state between control samples. The solver sees only the
// minimal contract: a pure derivative function f(t, x) and a state
// vector. Anything satisfying Integrator can be plugged in.
package integrator

import (
	"errors"
	"fmt"
)

// Func evaluates the state derivative at (t, x) into dst. It must be a
// pure function of its arguments; the simulator relies on this for
// step-halving correctness.
type Func func(dst []float64, t float64, x []float64)

// Integrator advances x in place from t0 to t1.
type Integrator interface {
	Integrate(f Func, x []float64, t0, t1 float64) error
}

// ErrStepTooSmall indicates the adaptive step size underflowed; the
// simulation must abort rather than continue with a corrupted state.
var ErrStepTooSmall = errors.New("integrator: step size below minimum")

// StepError wraps an integration failure with the simulated time and
// state at which it occurred.
type StepError struct {
	Time    float64
	State   []float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("t=%.6g: %v (state %v)", e.Time, e.Wrapped, e.State)
}

func (e *StepError) Unwrap() error { return e.Wrapped }
