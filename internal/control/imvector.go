package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/observer"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// IMVectorParams configures CurrentVectorControl for an induction
// machine. Construction is two-phase: fill the explicit fields, then
// NewCurrentVectorControl derives the dependent defaults and validates
// the combination before any simulation step runs.
type IMVectorParams struct {
	// Machine parameter estimates, inverse-Gamma form.
	Rs     float64
	RR     float64
	LSigma float64
	LM     float64
	NP     int
	J      float64 // total inertia estimate

	Ts         float64 // sampling period
	Sensorless bool

	PsiRef float64 // rotor flux reference
	IMax   float64 // current limit
	TauMax float64 // torque limit; 0 derives it from IMax at PsiRef

	SpeedRef func(t float64) float64 // mechanical speed reference
	RampRate float64                 // speed-reference ramp, el. rad/s^2; 0 disables

	AlphaC  float64 // current-control bandwidth; 0 selects 2*pi*200
	AlphaS  float64 // speed-control bandwidth; 0 selects 2*pi*4
	AlphaO  float64 // speed-observer bandwidth; 0 selects 2*pi*40
	AlphaFW float64 // field-weakening bandwidth; 0 selects 2*pi*20
	ZetaObs float64 // flux-observer pole scaling; 0 selects 1
	JHatObs float64 // speed-observer inertia estimate; 0 keeps it infinite
}

func (p *IMVectorParams) validate() error {
	switch {
	case p.Ts <= 0:
		return fmt.Errorf("im vector control: Ts must be positive, got %g", p.Ts)
	case p.LSigma <= 0 || p.LM <= 0:
		return fmt.Errorf("im vector control: LSigma and LM must be positive, got %g and %g", p.LSigma, p.LM)
	case p.NP < 1:
		return fmt.Errorf("im vector control: NP must be at least 1, got %d", p.NP)
	case p.PsiRef <= 0:
		return fmt.Errorf("im vector control: PsiRef must be positive, got %g", p.PsiRef)
	case p.IMax <= 0:
		return fmt.Errorf("im vector control: IMax must be positive, got %g", p.IMax)
	case p.J <= 0:
		return fmt.Errorf("im vector control: J must be positive, got %g", p.J)
	case p.SpeedRef == nil:
		return fmt.Errorf("im vector control: SpeedRef is required")
	case p.PsiRef/p.LM >= p.IMax:
		return fmt.Errorf("im vector control: magnetizing current PsiRef/LM=%g exceeds IMax=%g", p.PsiRef/p.LM, p.IMax)
	}
	return nil
}

func (p *IMVectorParams) applyDefaults() {
	if p.AlphaC == 0 {
		p.AlphaC = 2 * math.Pi * 200
	}
	if p.AlphaS == 0 {
		p.AlphaS = 2 * math.Pi * 4
	}
	if p.AlphaO == 0 {
		p.AlphaO = 2 * math.Pi * 40
	}
	if p.AlphaFW == 0 {
		p.AlphaFW = 2 * math.Pi * 20
	}
	if p.TauMax == 0 {
		idNom := p.PsiRef / p.LM
		iqMax := math.Sqrt(math.Max(0, p.IMax*p.IMax-idNom*idNom))
		p.TauMax = 1.5 * float64(p.NP) * p.PsiRef * iqMax
	}
}

// CurrentVectorControl is rotor-flux-oriented current-vector control of
// an induction machine, sensorless by default. Once per sampling
// period it runs the fixed cycle: feedback (observers), references
// (speed loop, field-weakening current reference), output (current
// controller, voltage limiting, duty computation) and state update
// with realized signals.
type CurrentVectorControl struct {
	par IMVectorParams

	fluxObs   *observer.FluxObserver
	speedObs  *observer.SpeedObserver
	currentPI *ComplexPIController
	speedPI   *PIController
	ramp      *RateLimiter

	fw    float64 // field-weakening offset on the d-current, <= 0
	trace *Trace
}

func NewCurrentVectorControl(par IMVectorParams) (*CurrentVectorControl, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	par.applyDefaults()

	m := par.J / float64(par.NP)
	c := &CurrentVectorControl{
		par:       par,
		fluxObs:   observer.NewFluxObserver(par.Rs, par.RR, par.LSigma, par.LM, par.ZetaObs, par.Sensorless),
		speedObs:  observer.NewSpeedObserver(par.AlphaO, par.JHatObs, par.NP),
		currentPI: NewComplexPIController(2*par.AlphaC*par.LSigma, par.AlphaC*par.AlphaC*par.LSigma, par.AlphaC*par.LSigma),
		speedPI:   NewPIController(2*par.AlphaS*m, par.AlphaS*par.AlphaS*m, par.AlphaS*m),
		ramp:      NewRateLimiter(par.RampRate, 0),
		trace:     NewTrace(),
	}
	return c, nil
}

func (c *CurrentVectorControl) Trace() *Trace { return c.trace }

// Observer returns the embedded flux observer, mainly for tests and
// post-processing.
func (c *CurrentVectorControl) Observer() *observer.FluxObserver { return c.fluxObs }

func (c *CurrentVectorControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	par := &c.par
	ts := par.Ts
	np := float64(par.NP)

	// Feedback.
	is := m.Is
	psi := c.fluxObs.Flux()
	theta := cmplx.Phase(psi)
	psiAbs := cmplx.Abs(psi)
	var wEl float64
	if par.Sensorless {
		wEl = c.speedObs.Speed()
	} else {
		wEl = np * m.WM
	}
	iDQ := spacevec.Rotate(is, -theta)
	wS := c.fluxObs.StatorFrequency(is, wEl)

	// References and output.
	wRef := c.ramp.Step(ts, np*par.SpeedRef(t))
	tauRef := clamp(c.speedPI.Output(wRef, wEl), -par.TauMax, par.TauMax)
	iRef := c.currentReference(tauRef, psiAbs)
	// Realized torque for the speed-loop anti-windup: the torque the
	// clipped current reference can actually produce at the present
	// flux.
	tauRealized := 1.5 * np * psiAbs * imag(iRef)

	ff := complex(0, wS) * (complex(par.LSigma, 0)*iDQ + complex(psiAbs, 0))
	uRef := c.currentPI.Output(iRef, iDQ, ff)
	uMax := m.UDC / math.Sqrt(3)
	uLim := limitMagnitude(uRef, uMax)
	usStator := spacevec.Rotate(uLim, theta)
	duty := spacevec.DutyRatios(usStator, m.UDC)

	// State update, realized signals only.
	c.currentPI.Update(ts, uLim)
	c.speedPI.Update(ts, tauRealized)
	c.fluxObs.Update(ts, usStator, is, wEl)
	if par.Sensorless {
		c.speedObs.Update(ts, c.fluxObs.SpeedError(), tauRealized)
	}
	idNom := par.PsiRef / par.LM
	kFW := par.AlphaFW * idNom / math.Max(uMax, 1)
	c.fw = math.Min(0, c.fw+ts*kFW*(uMax-cmplx.Abs(uRef)))

	// Log.
	c.trace.Append("w_ref", wRef/np)
	c.trace.Append("w_est", wEl/np)
	c.trace.Append("tau_ref", tauRef)
	c.trace.Append("psi_est", psiAbs)
	c.trace.Append("i_d_ref", real(iRef))
	c.trace.Append("i_q_ref", imag(iRef))
	c.trace.Append("i_d", real(iDQ))
	c.trace.Append("i_q", imag(iDQ))
	c.trace.Append("u_d", real(uLim))
	c.trace.Append("u_q", imag(uLim))

	return duty, ts
}

// currentReference converts a feasible torque reference into a current
// reference: nominal magnetizing current plus the field-weakening
// offset on the d-axis, torque-producing current on the q-axis limited
// by the current circle. Division by the flux estimate falls back to a
// tenth of the flux reference near zero flux.
func (c *CurrentVectorControl) currentReference(tauRef, psiAbs float64) complex128 {
	par := &c.par
	idNom := par.PsiRef / par.LM
	id := math.Max(par.PsiRef/par.LM+c.fw, 0.1*idNom)
	psiT := math.Max(psiAbs, 0.1*par.PsiRef)
	iq := tauRef / (1.5 * float64(par.NP) * psiT)
	iqMax := math.Sqrt(math.Max(0, par.IMax*par.IMax-id*id))
	return complex(id, clamp(iq, -iqMax, iqMax))
}
