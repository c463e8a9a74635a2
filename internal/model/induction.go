package model

import (
	"fmt"
	"math/cmplx"
)

// InductionMachine is a Gamma-model induction machine in stator
// coordinates. State: stator flux linkage psi_s and rotor flux linkage
// psi_r, both complex. The magnetizing branch sits at the stator
// terminals so main-flux saturation is a function of |psi_s| alone.
type InductionMachine struct {
	Rs  float64    // stator resistance
	Rr  float64    // rotor resistance (Gamma)
	Ll  float64    // total leakage inductance (Gamma, rotor side)
	Ls  Saturation // stator inductance, possibly flux-dependent
	NP  int        // pole pairs
	Psi complex128 // initial stator flux linkage
}

// NewInductionMachine validates and returns a Gamma-model machine.
func NewInductionMachine(rs, rr, ll float64, ls Saturation, np int) (*InductionMachine, error) {
	switch {
	case rs < 0:
		return nil, fmt.Errorf("induction machine: Rs must be nonnegative, got %g", rs)
	case rr <= 0:
		return nil, fmt.Errorf("induction machine: Rr must be positive, got %g", rr)
	case ll <= 0:
		return nil, fmt.Errorf("induction machine: Ll must be positive, got %g", ll)
	case ls == nil:
		return nil, fmt.Errorf("induction machine: Ls saturation model is required")
	case np < 1:
		return nil, fmt.Errorf("induction machine: NP must be at least 1, got %d", np)
	}
	return &InductionMachine{Rs: rs, Rr: rr, Ll: ll, Ls: ls, NP: np}, nil
}

// NewInductionMachineInvGamma constructs the machine from inverse-Gamma
// parameters (R_R, leakage L_sigma, magnetizing L_M), the form in which
// standard no-load/locked-rotor test data is usually given. Saturation
// is not meaningful in the inverse-Gamma form, so the resulting
// magnetic model is linear.
func NewInductionMachineInvGamma(rs, rR, lSigma, lM float64, np int) (*InductionMachine, error) {
	if lM <= 0 || lSigma <= 0 {
		return nil, fmt.Errorf("induction machine: inductances must be positive, got L_sigma=%g L_M=%g", lSigma, lM)
	}
	g := lM / (lM + lSigma)
	return NewInductionMachine(rs, rR/(g*g), lSigma/g, ConstantInductance(lM+lSigma), np)
}

func (m *InductionMachine) Dim() int       { return 4 }
func (m *InductionMachine) PolePairs() int { return m.NP }

func (m *InductionMachine) InitialState() []float64 {
	return []float64{real(m.Psi), imag(m.Psi), real(m.Psi), imag(m.Psi)}
}

// currents returns the stator and rotor currents for the packed state.
func (m *InductionMachine) currents(x []float64) (is, ir complex128) {
	psiS := unpackComplex(x, 0)
	psiR := unpackComplex(x, 2)
	ir = (psiR - psiS) / complex(m.Ll, 0)
	ls := m.Ls.Inductance(cmplx.Abs(psiS))
	is = psiS/complex(ls, 0) - ir
	return is, ir
}

func (m *InductionMachine) Current(x []float64) complex128 {
	is, _ := m.currents(x)
	return is
}

func (m *InductionMachine) Torque(x []float64) float64 {
	is, _ := m.currents(x)
	return torque(m.NP, is, unpackComplex(x, 0))
}

func (m *InductionMachine) Derivative(dst, x []float64, us complex128, wEl float64) {
	is, ir := m.currents(x)
	psiR := unpackComplex(x, 2)
	packComplex(dst, 0, us-complex(m.Rs, 0)*is)
	packComplex(dst, 2, -complex(m.Rr, 0)*ir+complex(0, wEl)*psiR)
}
