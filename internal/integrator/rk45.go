package integrator

import "math"

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is an adaptive Dormand-Prince solver. MaxStep caps the step size
// so results can be made reproducible independent of the adaptive
// heuristics; MinStep underflow is a fatal error.
type RK45 struct {
	Tol      float64
	MinStep  float64
	MaxStep  float64
	safety   float64
	minScale float64
	maxScale float64
}

// NewRK45 returns a solver with defaults suitable for drive simulation:
// fast electrical time constants next to slow mechanical ones.
func NewRK45() *RK45 {
	return &RK45{
		Tol:      1e-8,
		MinStep:  1e-14,
		MaxStep:  math.Inf(1),
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Integrate advances x in place from t0 to t1 with local error control.
func (r *RK45) Integrate(f Func, x []float64, t0, t1 float64) error {
	if t1 <= t0 {
		return nil
	}
	t := t0
	dt := math.Min(t1-t0, r.MaxStep)
	for t < t1 {
		if t+dt > t1 {
			dt = t1 - t
		}
		dtNext, ok := r.step(f, x, t, dt)
		if ok {
			t += dt
		}
		dt = math.Min(dtNext, r.MaxStep)
		if dt < r.MinStep {
			state := make([]float64, len(x))
			copy(state, x)
			return &StepError{Time: t, State: state, Wrapped: ErrStepTooSmall}
		}
	}
	return nil
}

// step attempts one step of size dt. On acceptance x is updated and the
// suggested next step size is returned with ok=true; on rejection x is
// left untouched and a smaller dt is suggested.
func (r *RK45) step(f Func, x []float64, t, dt float64) (float64, bool) {
	n := len(x)

	k1 := make([]float64, n)
	f(k1, t, x)

	xs := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + dt*b21*k1[i]
	}
	k2 := make([]float64, n)
	f(k2, t+a2*dt, xs)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := make([]float64, n)
	f(k3, t+a3*dt, xs)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := make([]float64, n)
	f(k4, t+a4*dt, xs)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := make([]float64, n)
	f(k5, t+a5*dt, xs)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := make([]float64, n)
	f(k6, t+dt, xs)

	xNew := make([]float64, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	// A non-finite stage invalidates both the solution and the error
	// estimate below; reject and retry with a smaller step.
	for i := 0; i < n; i++ {
		if math.IsNaN(xNew[i]) || math.IsInf(xNew[i], 0) {
			return dt * r.minScale, false
		}
	}

	k7 := make([]float64, n)
	f(k7, t+dt, xNew)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	if math.IsNaN(errMax) {
		return dt * r.minScale, false
	}
	errRatio := errMax / r.Tol
	if errRatio > 1 {
		scale := math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
		return dt * scale, false
	}

	copy(x, xNew)
	if errRatio > 0 {
		scale := math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
		return dt * scale, true
	}
	return dt * r.maxScale, true
}
