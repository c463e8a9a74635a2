package model

import "fmt"

// Mechanics is the mechanical-load subsystem. Its declared input is the
// electromagnetic torque; external load torque is part of the subsystem
// configuration (a function of time, read-only during simulation).
type Mechanics interface {
	Dim() int
	InitialState() []float64
	Derivative(dst, x []float64, tauM, t float64)
	// Speed returns the rotor speed in mechanical rad/s.
	Speed(x []float64) float64
	// Angle returns the rotor angle in mechanical rad.
	Angle(x []float64) float64
}

// OneMass is the stiff-shaft mechanical model
// J*dw/dt = tau_M - B*w - tau_L(t). State: speed and angle.
type OneMass struct {
	J    float64
	B    float64                 // viscous friction coefficient
	TauL func(t float64) float64 // external load torque, may be nil
}

func NewOneMass(j, b float64, tauL func(float64) float64) (*OneMass, error) {
	if j <= 0 {
		return nil, fmt.Errorf("mechanics: inertia J must be positive, got %g", j)
	}
	return &OneMass{J: j, B: b, TauL: tauL}, nil
}

func (m *OneMass) Dim() int                  { return 2 }
func (m *OneMass) InitialState() []float64   { return []float64{0, 0} }
func (m *OneMass) Speed(x []float64) float64 { return x[0] }
func (m *OneMass) Angle(x []float64) float64 { return x[1] }

func (m *OneMass) Derivative(dst, x []float64, tauM, t float64) {
	tauL := 0.0
	if m.TauL != nil {
		tauL = m.TauL(t)
	}
	dst[0] = (tauM - m.B*x[0] - tauL) / m.J
	dst[1] = x[0]
}

// TwoMass couples motor and load inertias through a compliant shaft
// with stiffness Ks and damping Cs. State: motor speed, load speed,
// twist angle, motor angle. In the limit Ks -> inf the model reduces to
// OneMass with J = JM + JL.
type TwoMass struct {
	JM   float64
	JL   float64
	Ks   float64
	Cs   float64
	B    float64 // viscous friction on the load side
	TauL func(t float64) float64
}

func NewTwoMass(jm, jl, ks, cs float64, tauL func(float64) float64) (*TwoMass, error) {
	if jm <= 0 || jl <= 0 {
		return nil, fmt.Errorf("mechanics: inertias must be positive, got JM=%g JL=%g", jm, jl)
	}
	if ks <= 0 {
		return nil, fmt.Errorf("mechanics: shaft stiffness Ks must be positive, got %g", ks)
	}
	return &TwoMass{JM: jm, JL: jl, Ks: ks, Cs: cs, TauL: tauL}, nil
}

func (m *TwoMass) Dim() int                  { return 4 }
func (m *TwoMass) InitialState() []float64   { return []float64{0, 0, 0, 0} }
func (m *TwoMass) Speed(x []float64) float64 { return x[0] }
func (m *TwoMass) Angle(x []float64) float64 { return x[3] }

// LoadSpeed returns the load-side speed, useful for resonance studies.
func (m *TwoMass) LoadSpeed(x []float64) float64 { return x[1] }

func (m *TwoMass) Derivative(dst, x []float64, tauM, t float64) {
	wM, wL, twist := x[0], x[1], x[2]
	tauL := 0.0
	if m.TauL != nil {
		tauL = m.TauL(t)
	}
	tauS := m.Ks*twist + m.Cs*(wM-wL)
	dst[0] = (tauM - tauS) / m.JM
	dst[1] = (tauS - m.B*wL - tauL) / m.JL
	dst[2] = wM - wL
	dst[3] = wM
}
