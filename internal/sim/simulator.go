// Package sim drives the sampled-data co-simulation: a continuous-time
// plant integrated between control samples, a discrete-time control
// system invoked once per sample, and a configurable computational
// delay between feedback sampling and duty-ratio application.
package sim

import (
	"context"
	"fmt"

	"github.com/emdrive/drivesim/internal/control"
	"github.com/emdrive/drivesim/internal/integrator"
	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/pwm"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// Options configures a simulation run. The integrator's maximum step is
// configured on the integrator itself (RK45.MaxStep) when reproducible
// results are needed.
type Options struct {
	StopTime float64
	// Delay is the number of control samples between feedback sampling
	// and application of the resulting duty ratios. Negative selects the
	// default of one sample; zero means ideal instantaneous application.
	Delay int
	// PWM enables switching-instant-exact carrier comparison; when
	// false, the duty-implied average voltage vector is held over each
	// sampling interval (zero-order hold).
	PWM       bool
	PWMLevels int
}

// Simulation couples one plant with one control system.
type Simulation struct {
	plant   model.Plant
	ctrl    control.System
	integ   integrator.Integrator
	carrier *pwm.CarrierComparison
	opts    Options
}

func New(plant model.Plant, ctrl control.System, integ integrator.Integrator, opts Options) (*Simulation, error) {
	switch {
	case plant == nil:
		return nil, fmt.Errorf("sim: plant is required")
	case ctrl == nil:
		return nil, fmt.Errorf("sim: control system is required")
	case integ == nil:
		return nil, fmt.Errorf("sim: integrator is required")
	case opts.StopTime <= 0:
		return nil, fmt.Errorf("sim: stop time must be positive, got %g", opts.StopTime)
	}
	if opts.Delay < 0 {
		opts.Delay = 1
	}
	s := &Simulation{plant: plant, ctrl: ctrl, integ: integ, opts: opts}
	if opts.PWM {
		s.carrier = pwm.New(opts.PWMLevels)
	}
	return s, nil
}

// Run executes the simulation loop until the stop time. The sequential
// cycle per sample is strict: measure, control, delay, integrate; the
// observer state at step k depends on the plant state at step k and
// feeds the duty ratios integrated from k to k+1. A fatal integrator
// error aborts with the partial result and an error reporting the
// simulated time and state.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	res := newResult(s.ctrl.Trace())

	// Computational-delay FIFO, pre-filled with the zero-voltage duty.
	fifo := make([][3]float64, s.opts.Delay)
	for i := range fifo {
		fifo[i] = [3]float64{0.5, 0.5, 0.5}
	}

	t := 0.0
	for step := 0; t < s.opts.StopTime; step++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		m := s.plant.Measure(t)
		duty, ts := s.ctrl.Sample(t, m)
		if ts <= 0 {
			return res, fmt.Errorf("sim: control step %d returned non-positive sampling period %g", step, ts)
		}

		applied := duty
		if len(fifo) > 0 {
			applied = fifo[0]
			copy(fifo, fifo[1:])
			fifo[len(fifo)-1] = duty
		}

		res.record(t, m)

		if err := s.integrateInterval(t, ts, applied); err != nil {
			return res, fmt.Errorf("sim: control step %d: %w", step, err)
		}
		t += ts
	}
	return res, nil
}

// integrateInterval advances the plant over one sampling interval,
// either across the exact switching sequence or with the averaged
// voltage held constant.
func (s *Simulation) integrateInterval(t, ts float64, duty [3]float64) error {
	x := s.plant.State()
	if s.carrier == nil {
		s.plant.SetSwitching(spacevec.FromPhases(duty[0], duty[1], duty[2]))
		return s.integ.Integrate(s.plant.Derivative, x, t, t+ts)
	}
	for _, seg := range s.carrier.Sequence(ts, duty) {
		s.plant.SetSwitching(spacevec.SwitchingVector(seg.Q[0], seg.Q[1], seg.Q[2]))
		if err := s.integ.Integrate(s.plant.Derivative, x, t, t+seg.Dur); err != nil {
			return err
		}
		t += seg.Dur
	}
	return nil
}
