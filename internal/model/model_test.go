package model

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emdrive/drivesim/internal/integrator"
	"github.com/emdrive/drivesim/internal/spacevec"
)

func TestInverterPowerBalance(t *testing.T) {
	// The converter is lossless by construction:
	// u_dc*i_dc == 1.5*Re{u_ac*conj(i_ac)} for every switching state.
	var inv Inverter
	uDC := 540.0
	currents := []complex128{0, complex(10, -3), complex(-7, 12), complex(0.1, 0.1)}
	for qa := 0; qa <= 1; qa++ {
		for qb := 0; qb <= 1; qb++ {
			for qc := 0; qc <= 1; qc++ {
				q := spacevec.SwitchingVector(qa, qb, qc)
				for _, i := range currents {
					pAC := 1.5 * real(inv.ACVoltage(q, uDC)*cmplx.Conj(i))
					pDC := uDC * inv.DCCurrent(q, i)
					assert.InDelta(t, pAC, pDC, 1e-9)
				}
			}
		}
	}
}

func TestTwoMassReducesToOneMass(t *testing.T) {
	// With a very stiff shaft the two-mass model converges to the
	// one-mass model with the total inertia, over a torque step.
	jm, jl := 0.01, 0.005
	one, err := NewOneMass(jm+jl, 0, nil)
	require.NoError(t, err)
	two, err := NewTwoMass(jm, jl, 1e6, 1e2, nil)
	require.NoError(t, err)

	tau := 5.0
	f1 := func(dst []float64, tt float64, x []float64) { one.Derivative(dst, x, tau, tt) }
	f2 := func(dst []float64, tt float64, x []float64) { two.Derivative(dst, x, tau, tt) }

	r := integrator.NewRK45()
	x1 := one.InitialState()
	x2 := two.InitialState()
	require.NoError(t, r.Integrate(f1, x1, 0, 0.2))
	require.NoError(t, r.Integrate(f2, x2, 0, 0.2))

	wRef := tau / (jm + jl) * 0.2
	assert.InDelta(t, wRef, one.Speed(x1), 1e-6)
	assert.InDelta(t, one.Speed(x1), two.Speed(x2), 0.01*wRef)
	assert.InDelta(t, one.Speed(x1), two.LoadSpeed(x2), 0.01*wRef)
}

func TestPowerLawZeroFluxLimit(t *testing.T) {
	p := PowerLaw{Lu: 0.34, Beta: 0.84, S: 7}
	assert.Equal(t, 0.34, p.Inductance(0))
	assert.Less(t, p.Inductance(2.0), 0.34)
}

func TestLUTSaturation(t *testing.T) {
	lut, err := NewLUT([]float64{0, 0.5, 1.0, 1.5}, []float64{0.3, 0.28, 0.2, 0.12})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, lut.Inductance(0), 1e-12)
	assert.InDelta(t, 0.24, lut.Inductance(0.75), 1e-12)
	// Out-of-range flux holds the endpoint value.
	assert.InDelta(t, 0.12, lut.Inductance(9), 1e-12)

	_, err = NewLUT([]float64{0}, []float64{0.3})
	assert.Error(t, err)
	_, err = NewLUT([]float64{0, 1}, []float64{0.3, -0.1})
	assert.Error(t, err)
}

func TestInductionMachineZeroFlux(t *testing.T) {
	m, err := NewInductionMachineInvGamma(3.7, 2.1, 0.021, 0.224, 2)
	require.NoError(t, err)
	x := make([]float64, m.Dim())
	assert.Equal(t, complex128(0), m.Current(x))
	assert.Equal(t, 0.0, m.Torque(x))
	dst := make([]float64, m.Dim())
	m.Derivative(dst, x, complex(100, 0), 0)
	for _, v := range dst {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestInductionMachineSteadyTorqueSign(t *testing.T) {
	// Positive slip at positive flux must give positive torque.
	m, err := NewInductionMachineInvGamma(3.7, 2.1, 0.021, 0.224, 2)
	require.NoError(t, err)
	m.Psi = complex(0.9, 0)
	x := m.InitialState()
	// Let the rotor flux lag slightly behind the stator flux.
	x[2], x[3] = 0.88, -0.05
	assert.Greater(t, m.Torque(x), 0.0)
}

func TestSynchronousMachineTorque(t *testing.T) {
	law := LinearPM{Ld: 0.036, Lq: 0.051, PsiF: 0.545}
	m, err := NewSynchronousMachine(3.6, law, 3, complex(0.545, 0))
	require.NoError(t, err)
	x := m.InitialState()
	// q-axis flux on top of the magnet flux produces torque.
	x[1] = 0.1
	assert.Greater(t, m.Torque(x), 0.0)
	// Pure magnet flux produces none.
	x[1] = 0
	assert.InDelta(t, 0.0, m.Torque(x), 1e-12)
}

func TestDriveComposition(t *testing.T) {
	m, err := NewInductionMachineInvGamma(3.7, 2.1, 0.021, 0.224, 2)
	require.NoError(t, err)
	mech, err := NewOneMass(0.015, 0, nil)
	require.NoError(t, err)
	d, err := NewDrive(m, mech, ConstantDC{UDC: 540}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, d.Dim())

	d.SetSwitching(spacevec.SwitchingVector(1, 0, 0))
	dst := make([]float64, d.Dim())
	d.Derivative(dst, 0, d.State())
	// A nonzero switching vector drives the stator flux.
	assert.NotEqual(t, 0.0, dst[0])

	meas := d.Measure(0)
	assert.Equal(t, 540.0, meas.UDC)
	assert.Equal(t, 0.0, meas.WM)
}

func TestDriveWithLCFilterAndDiodeBridge(t *testing.T) {
	m, err := NewInductionMachineInvGamma(3.7, 2.1, 0.021, 0.224, 2)
	require.NoError(t, err)
	mech, err := NewOneMass(0.015, 0, nil)
	require.NoError(t, err)
	filt, err := NewLCFilter(8e-3, 10e-6, 0.1)
	require.NoError(t, err)
	supply := func(tt float64) complex128 {
		return spacevec.Rotate(complex(math.Sqrt(2.0/3.0)*400, 0), 2*math.Pi*50*tt)
	}
	db, err := NewDiodeBridge(2e-3, 235e-6, supply, 540)
	require.NoError(t, err)
	d, err := NewDrive(m, mech, db, filt)
	require.NoError(t, err)
	assert.Equal(t, 6+4+2, d.Dim())

	dst := make([]float64, d.Dim())
	d.Derivative(dst, 0.001, d.State())
	for _, v := range dst {
		assert.False(t, math.IsNaN(v))
	}
}

func TestGridConverterComposition(t *testing.T) {
	grid := func(tt float64) complex128 {
		return spacevec.Rotate(complex(math.Sqrt(2.0/3.0)*400, 0), 2*math.Pi*50*tt)
	}
	filt, err := NewLCLFilter(3e-3, 0.05, 9e-6, 3e-3, 0.05)
	require.NoError(t, err)
	g, err := NewGridConverter(ConstantDC{UDC: 650}, filt, grid)
	require.NoError(t, err)
	assert.Equal(t, 6, g.Dim())

	g.SetSwitching(complex(0.5, 0))
	dst := make([]float64, g.Dim())
	g.Derivative(dst, 0, g.State())
	meas := g.Measure(0)
	assert.NotEqual(t, complex128(0), meas.UG)
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewInductionMachine(3.7, -1, 0.02, ConstantInductance(0.2), 2)
	assert.ErrorContains(t, err, "Rr")
	_, err = NewOneMass(0, 0, nil)
	assert.ErrorContains(t, err, "J")
	_, err = NewTwoMass(0.01, 0.01, 0, 0, nil)
	assert.ErrorContains(t, err, "Ks")
	_, err = NewLCLFilter(0, 0, 1e-6, 1e-3, 0)
	assert.Error(t, err)
	_, err = NewDiodeBridge(1e-3, 1e-4, nil, 540)
	assert.ErrorContains(t, err, "supply")
	_, err = NewDrive(nil, nil, nil, nil)
	assert.Error(t, err)
}
