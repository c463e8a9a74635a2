package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emdrive/drivesim/internal/control"
	"github.com/emdrive/drivesim/internal/integrator"
	"github.com/emdrive/drivesim/internal/model"
)

// stubPlant records the switching vectors applied over each interval.
type stubPlant struct {
	x       []float64
	applied []complex128
}

func newStubPlant() *stubPlant { return &stubPlant{x: make([]float64, 1)} }

func (p *stubPlant) Dim() int                                         { return 1 }
func (p *stubPlant) State() []float64                                 { return p.x }
func (p *stubPlant) Derivative(dst []float64, t float64, x []float64) { dst[0] = 0 }
func (p *stubPlant) Measure(t float64) model.Measurement              { return model.Measurement{UDC: 1} }
func (p *stubPlant) SetSwitching(q complex128)                        { p.applied = append(p.applied, q) }

// stubControl returns a duty triple encoding the sample index on
// phase a with the other phases at zero.
type stubControl struct {
	ts float64
	k  int
	tr *control.Trace
}

func (c *stubControl) Trace() *control.Trace { return c.tr }

func (c *stubControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	d := [3]float64{0.01 * float64(c.k), 0, 0}
	c.k++
	return d, c.ts
}

func TestComputationalDelay(t *testing.T) {
	plant := newStubPlant()
	ctrl := &stubControl{ts: 1e-3, tr: control.NewTrace()}
	s, err := New(plant, ctrl, integrator.NewRK45(), Options{StopTime: 9.5e-3, Delay: 2})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	// ZOH applies one vector per interval. The first two intervals hold
	// the neutral pre-fill (zero vector from duty 0.5/0.5/0.5); from
	// interval k >= 2 the vector encodes sample k-2.
	require.Len(t, plant.applied, 10)
	assert.InDelta(t, 0, real(plant.applied[0]), 1e-12)
	assert.InDelta(t, 0, real(plant.applied[1]), 1e-12)
	for k := 2; k < 10; k++ {
		want := (2.0 / 3.0) * 0.01 * float64(k-2)
		assert.InDelta(t, want, real(plant.applied[k]), 1e-12, "interval %d", k)
	}
}

func TestZeroDelayAppliesImmediately(t *testing.T) {
	plant := newStubPlant()
	ctrl := &stubControl{ts: 1e-3, tr: control.NewTrace()}
	s, err := New(plant, ctrl, integrator.NewRK45(), Options{StopTime: 2.5e-3, Delay: 0})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, plant.applied, 3)
	assert.InDelta(t, 0, real(plant.applied[0]), 1e-12)
	assert.InDelta(t, (2.0/3.0)*0.01, real(plant.applied[1]), 1e-12)
}

func TestCancellation(t *testing.T) {
	plant := newStubPlant()
	ctrl := &stubControl{ts: 1e-3, tr: control.NewTrace()}
	s, err := New(plant, ctrl, integrator.NewRK45(), Options{StopTime: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, res)
}

// blowupPlant has a derivative that explodes in finite time, forcing
// step-size underflow in the adaptive integrator.
type blowupPlant struct{ x []float64 }

func (p *blowupPlant) Dim() int         { return 1 }
func (p *blowupPlant) State() []float64 { return p.x }
func (p *blowupPlant) Derivative(dst []float64, t float64, x []float64) {
	dst[0] = x[0] * x[0]
}
func (p *blowupPlant) Measure(t float64) model.Measurement { return model.Measurement{UDC: 1} }
func (p *blowupPlant) SetSwitching(q complex128)           {}

func TestIntegratorFailureAborts(t *testing.T) {
	plant := &blowupPlant{x: []float64{1}}
	ctrl := &stubControl{ts: 0.5, tr: control.NewTrace()}
	s, err := New(plant, ctrl, integrator.NewRK45(), Options{StopTime: 5})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, integrator.ErrStepTooSmall)
	var stepErr *integrator.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Greater(t, stepErr.Time, 0.0)
	assert.NotEmpty(t, stepErr.State)
}

func TestResultResampling(t *testing.T) {
	r := newResult(nil)
	for k := 0; k < 5; k++ {
		r.record(float64(k), model.Measurement{WM: 2 * float64(k)})
	}
	grid := r.UniformGrid(9)
	require.Len(t, grid, 9)
	ws, err := r.Resampled("w_m", grid)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ws[1], 1e-12) // t=0.5 -> w=1
	assert.InDelta(t, 2.0, ws[2], 1e-12) // t=1.0 -> w=2

	_, err = r.Resampled("nope", grid)
	assert.Error(t, err)
}

// drive2kW builds the 2.2 kW induction-machine drive used by the
// end-to-end scenarios.
func drive2kW(t *testing.T) *model.Drive {
	t.Helper()
	machine, err := model.NewInductionMachineInvGamma(3.7, 2.1, 0.021, 0.224, 2)
	require.NoError(t, err)
	mech, err := model.NewOneMass(0.015, 0, nil)
	require.NoError(t, err)
	drive, err := model.NewDrive(machine, mech, model.ConstantDC{UDC: 540}, nil)
	require.NoError(t, err)
	return drive
}

func TestVHzSpeedStepRegression(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end scenario")
	}
	const ts = 250e-6
	const wRated = 2 * math.Pi * 50 // electrical

	drive := drive2kW(t)
	ctrl, err := control.NewVHzControl(control.VHzParams{
		Rs: 3.7, RR: 2.1, LSigma: 0.021, LM: 0.224, NP: 2,
		Ts: ts, PsiRef: 0.9,
		FreqRef: func(tt float64) float64 {
			if tt < 0.5 {
				return 0
			}
			return wRated
		},
	})
	require.NoError(t, err)

	s, err := New(drive, ctrl, integrator.NewRK45(), Options{StopTime: 0.8, Delay: 1})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	wm := res.Series("w_m")
	times := res.Times
	require.NotEmpty(t, wm)

	// Flux must be magnetized before the speed step.
	psi := res.Series("psi_est")
	iMag := 0
	for i, tt := range times {
		if tt >= 0.45 {
			iMag = i
			break
		}
	}
	assert.InDelta(t, 0.9, psi[iMag], 0.09, "flux magnetized before the step")

	// Speed settles within 5% of reference within 0.2 s of the step and
	// stays there; torque settles near the (zero) load torque.
	wRef := wRated / 2 // mechanical
	tau := res.Series("tau_est")
	for i, tt := range times {
		if tt < 0.7 {
			continue
		}
		assert.InDelta(t, wRef, wm[i], 0.05*wRef, "t=%g", tt)
		assert.InDelta(t, 0, tau[i], 1.5, "t=%g", tt)
	}
}

func TestSensorlessZeroSpeedMagnetizing(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end scenario")
	}
	const ts = 250e-6

	drive := drive2kW(t)
	ctrl, err := control.NewCurrentVectorControl(control.IMVectorParams{
		Rs: 3.7, RR: 2.1, LSigma: 0.021, LM: 0.224, NP: 2, J: 0.015,
		Ts: ts, PsiRef: 0.9, IMax: 10, Sensorless: true,
		SpeedRef: func(float64) float64 { return 0 },
	})
	require.NoError(t, err)

	s, err := New(drive, ctrl, integrator.NewRK45(), Options{StopTime: 0.5, Delay: 1})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	// The flux estimate converges to the commanded magnitude at
	// standstill and the error envelope stays bounded throughout.
	psi := res.Series("psi_est")
	for i, tt := range res.Times {
		require.Less(t, math.Abs(psi[i]), 2.0, "t=%g", tt)
	}
	n := len(psi)
	assert.InDelta(t, 0.9, psi[n-1], 0.05)

	// The machine must not creep: the actual speed stays near zero.
	wm := res.Series("w_m")
	assert.Less(t, math.Abs(wm[n-1]), 3.0)
}

func TestPWMRunMatchesZOHCoarsely(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end scenario")
	}
	const ts = 250e-6

	run := func(usePWM bool) []float64 {
		drive := drive2kW(t)
		ctrl, err := control.NewVHzControl(control.VHzParams{
			Rs: 3.7, RR: 2.1, LSigma: 0.021, LM: 0.224, NP: 2,
			Ts: ts, PsiRef: 0.9, RampRate: 2 * math.Pi * 200,
			FreqRef: func(float64) float64 { return 2 * math.Pi * 25 },
		})
		require.NoError(t, err)
		s, err := New(drive, ctrl, integrator.NewRK45(), Options{StopTime: 0.3, Delay: 1, PWM: usePWM})
		require.NoError(t, err)
		res, err := s.Run(context.Background())
		require.NoError(t, err)
		return res.Series("w_m")
	}

	zoh := run(false)
	sw := run(true)
	require.Equal(t, len(zoh), len(sw))
	// Switching ripple aside, the trajectories agree.
	n := len(zoh)
	assert.InDelta(t, zoh[n-1], sw[n-1], 0.05*math.Abs(zoh[n-1])+1)
}
