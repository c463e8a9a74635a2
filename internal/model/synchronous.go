package model

import (
	"fmt"
	"math"

	"github.com/emdrive/drivesim/internal/spacevec"
)

// CurrentLaw maps stator flux linkage to stator current in rotor
// coordinates. Implementations must be locally invertible in the
// operating region; the zero-flux value must be finite.
type CurrentLaw interface {
	Current(psi complex128) complex128
}

// LinearPM is the linear magnetic model of a permanent-magnet (or, with
// PsiF=0, synchronous-reluctance) machine.
type LinearPM struct {
	Ld   float64 // d-axis inductance
	Lq   float64 // q-axis inductance
	PsiF float64 // permanent-magnet flux linkage
}

func (l LinearPM) Current(psi complex128) complex128 {
	return complex((real(psi)-l.PsiF)/l.Ld, imag(psi)/l.Lq)
}

// PolySaturation is an algebraic self- and cross-saturation model for
// synchronous reluctance machines:
//
//	i_d = (ad0 + add*|psi_d|^S + adq*|psi_d|^U*|psi_q|^V) * psi_d
//	i_q = (aq0 + aqq*|psi_q|^T + adq*|psi_d|^U*|psi_q|^V) * psi_q
//
// The coefficients are inverse inductances; the zero-flux limits are
// 1/ad0 and 1/aq0 (the unsaturated axis inductances).
type PolySaturation struct {
	Ad0, Add, S float64
	Aq0, Aqq, T float64
	Adq, U, V   float64
}

func (p PolySaturation) Current(psi complex128) complex128 {
	pd, pq := math.Abs(real(psi)), math.Abs(imag(psi))
	cross := p.Adq * math.Pow(pd, p.U) * math.Pow(pq, p.V)
	gd := p.Ad0 + p.Add*math.Pow(pd, p.S) + cross
	gq := p.Aq0 + p.Aqq*math.Pow(pq, p.T) + cross
	return complex(gd*real(psi), gq*imag(psi))
}

// SynchronousMachine is a synchronous machine model in rotor
// coordinates. State: stator flux linkage (complex) and the electrical
// rotor angle used for the stator-coordinate interface.
type SynchronousMachine struct {
	Rs  float64
	Law CurrentLaw
	NP  int
	Psi complex128 // initial flux linkage, rotor coordinates
}

// NewSynchronousMachine validates and returns a machine. For PM
// machines the natural initial flux is psi = PsiF + 0j.
func NewSynchronousMachine(rs float64, law CurrentLaw, np int, psi0 complex128) (*SynchronousMachine, error) {
	switch {
	case rs < 0:
		return nil, fmt.Errorf("synchronous machine: Rs must be nonnegative, got %g", rs)
	case law == nil:
		return nil, fmt.Errorf("synchronous machine: current law is required")
	case np < 1:
		return nil, fmt.Errorf("synchronous machine: NP must be at least 1, got %d", np)
	}
	return &SynchronousMachine{Rs: rs, Law: law, NP: np, Psi: psi0}, nil
}

func (m *SynchronousMachine) Dim() int       { return 3 }
func (m *SynchronousMachine) PolePairs() int { return m.NP }

func (m *SynchronousMachine) InitialState() []float64 {
	return []float64{real(m.Psi), imag(m.Psi), 0}
}

func (m *SynchronousMachine) Current(x []float64) complex128 {
	i := m.Law.Current(unpackComplex(x, 0))
	return spacevec.Rotate(i, x[2])
}

func (m *SynchronousMachine) Torque(x []float64) float64 {
	psi := unpackComplex(x, 0)
	return torque(m.NP, m.Law.Current(psi), psi)
}

func (m *SynchronousMachine) Derivative(dst, x []float64, us complex128, wEl float64) {
	psi := unpackComplex(x, 0)
	i := m.Law.Current(psi)
	u := spacevec.Rotate(us, -x[2])
	packComplex(dst, 0, u-complex(m.Rs, 0)*i-complex(0, wEl)*psi)
	dst[2] = wEl
}
