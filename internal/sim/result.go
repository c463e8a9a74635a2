package sim

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/emdrive/drivesim/internal/control"
	"github.com/emdrive/drivesim/internal/model"
)

// Result is the append-only log of a simulation run: one entry per
// control sample, keyed by stable signal names. Plant measurements are
// recorded by the driver; controller-internal signals come from the
// control system's trace. Both are sample-aligned with Times.
type Result struct {
	Times []float64

	order []string
	data  map[string][]float64
	ctrl  *control.Trace
}

func newResult(ctrl *control.Trace) *Result {
	return &Result{data: make(map[string][]float64), ctrl: ctrl}
}

func (r *Result) append(name string, v float64) {
	if _, ok := r.data[name]; !ok {
		r.order = append(r.order, name)
	}
	r.data[name] = append(r.data[name], v)
}

func (r *Result) record(t float64, m model.Measurement) {
	r.Times = append(r.Times, t)
	r.append("i_s_re", real(m.Is))
	r.append("i_s_im", imag(m.Is))
	r.append("u_dc", m.UDC)
	r.append("w_m", m.WM)
	r.append("theta_m", m.ThetaM)
	r.append("u_g_re", real(m.UG))
	r.append("u_g_im", imag(m.UG))
	r.append("i_g_re", real(m.IG))
	r.append("i_g_im", imag(m.IG))
}

// Names returns all recorded signal names, plant measurements first,
// controller trace signals after, both in first-recorded order.
func (r *Result) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	if r.ctrl != nil {
		names = append(names, r.ctrl.Names()...)
	}
	return names
}

// Series returns the samples recorded under name, nil if unknown.
// Plant measurement names shadow controller trace names.
func (r *Result) Series(name string) []float64 {
	if s, ok := r.data[name]; ok {
		return s
	}
	if r.ctrl != nil {
		return r.ctrl.Series(name)
	}
	return nil
}

// Resampled returns the named signal linearly interpolated onto the
// given time grid, for consumers that need a uniform sample spacing.
func (r *Result) Resampled(name string, times []float64) ([]float64, error) {
	s := r.Series(name)
	if s == nil {
		return nil, fmt.Errorf("result: unknown signal %q", name)
	}
	if len(s) != len(r.Times) {
		return nil, fmt.Errorf("result: signal %q has %d samples, expected %d", name, len(s), len(r.Times))
	}
	if len(s) < 2 {
		return nil, fmt.Errorf("result: signal %q has too few samples to resample", name)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(r.Times, s); err != nil {
		return nil, fmt.Errorf("result: resampling %q: %w", name, err)
	}
	out := make([]float64, len(times))
	for i, tt := range times {
		// Clamp outside the recorded span rather than extrapolate.
		if tt < r.Times[0] {
			tt = r.Times[0]
		}
		if last := r.Times[len(r.Times)-1]; tt > last {
			tt = last
		}
		out[i] = pl.Predict(tt)
	}
	return out, nil
}

// UniformGrid returns n equally spaced instants spanning the recorded
// time range.
func (r *Result) UniformGrid(n int) []float64 {
	if len(r.Times) == 0 || n < 2 {
		return nil
	}
	t0, t1 := r.Times[0], r.Times[len(r.Times)-1]
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = t0 + (t1-t0)*float64(i)/float64(n-1)
	}
	return grid
}
