package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/observer"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// VHzParams configures VHzControl, an observer-assisted open-loop V/Hz
// scheme for induction machines. Fields follow the same two-phase
// construction as IMVectorParams.
type VHzParams struct {
	Rs     float64
	RR     float64
	LSigma float64
	LM     float64
	NP     int

	Ts     float64
	PsiRef float64 // stator flux reference magnitude

	FreqRef  func(t float64) float64 // electrical frequency reference, rad/s
	RampRate float64                 // frequency ramp limit, rad/s^2; 0 selects the default, negative disables

	AlphaTau float64 // torque-filter bandwidth; 0 selects 2*pi*10
	AlphaPsi float64 // flux-buildup bandwidth; 0 selects 2*pi*10
	KTau     float64 // torque-damping gain; 0 derives it from PsiRef
	ZetaObs  float64
}

func (p *VHzParams) validate() error {
	switch {
	case p.Ts <= 0:
		return fmt.Errorf("v/hz control: Ts must be positive, got %g", p.Ts)
	case p.PsiRef <= 0:
		return fmt.Errorf("v/hz control: PsiRef must be positive, got %g", p.PsiRef)
	case p.NP < 1:
		return fmt.Errorf("v/hz control: NP must be at least 1, got %d", p.NP)
	case p.FreqRef == nil:
		return fmt.Errorf("v/hz control: FreqRef is required")
	}
	return nil
}

func (p *VHzParams) applyDefaults() {
	if p.RampRate == 0 {
		// An instantaneous step to rated frequency pulls an open-loop
		// drive out of synchronism; ramp it over roughly 0.1 s instead.
		p.RampRate = 2 * math.Pi * 500
	}
	if p.AlphaTau == 0 {
		p.AlphaTau = 2 * math.Pi * 10
	}
	if p.AlphaPsi == 0 {
		p.AlphaPsi = 2 * math.Pi * 10
	}
	if p.KTau == 0 {
		p.KTau = p.RR / (1.5 * float64(p.NP) * p.PsiRef * p.PsiRef)
	}
}

// VHzControl is open-loop volts-per-hertz control stabilized by the
// rotor-flux observer: the voltage reference tracks the observed flux
// orientation instead of a free-running angle, with stator-resistance
// compensation and a high-pass torque-damping term on the applied
// frequency. There is no speed loop; the frequency reference is applied
// after rate limiting, which is on by default so that stepped references
// stay within the pull-out torque of the machine.
type VHzControl struct {
	par VHzParams

	fluxObs *observer.FluxObserver
	ramp    *RateLimiter

	theta float64 // fallback voltage angle, used until flux builds up
	tauF  float64 // low-pass filtered torque estimate
	trace *Trace
}

func NewVHzControl(par VHzParams) (*VHzControl, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	par.applyDefaults()
	return &VHzControl{
		par:     par,
		fluxObs: observer.NewFluxObserver(par.Rs, par.RR, par.LSigma, par.LM, par.ZetaObs, true),
		ramp:    NewRateLimiter(par.RampRate, 0),
		trace:   NewTrace(),
	}, nil
}

func (c *VHzControl) Trace() *Trace { return c.trace }

func (c *VHzControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	par := &c.par
	ts := par.Ts
	np := float64(par.NP)

	// Feedback.
	is := m.Is
	psi := c.fluxObs.Flux()
	psiAbs := cmplx.Abs(psi)
	tau := 1.5 * np * imag(is*cmplx.Conj(psi))

	// References. Damping subtracts the high-pass-filtered torque from
	// the applied frequency, which suppresses the poorly damped
	// electromechanical mode of open-loop operation.
	wRef := c.ramp.Step(ts, par.FreqRef(t))
	wS := wRef - par.KTau*(tau-c.tauF)

	// Voltage reference along the observed flux orientation; before the
	// flux has built up, fall back to the integrated angle. The radial
	// term magnetizes the machine toward the flux reference, which also
	// works at zero frequency where the rotational term vanishes.
	dir := complex(math.Cos(c.theta), math.Sin(c.theta))
	if psiAbs > 0.1*par.PsiRef {
		dir = psi / complex(psiAbs, 0)
	}
	uRef := complex(par.Rs, 0)*is +
		complex(par.AlphaPsi*(par.PsiRef-psiAbs), wS*par.PsiRef)*dir
	uLim := limitMagnitude(uRef, m.UDC/math.Sqrt(3))
	duty := spacevec.DutyRatios(uLim, m.UDC)

	// Update. The observer needs an electrical rotor speed: invert the
	// slip relation around the applied frequency.
	wSlip := 0.0
	if psiAbs > 1e-9 {
		wSlip = par.RR * imag(is*cmplx.Conj(psi)) / (psiAbs * psiAbs)
	}
	c.fluxObs.Update(ts, uLim, is, wS-wSlip)
	c.tauF += ts * par.AlphaTau * (tau - c.tauF)
	c.theta = wrapAngle(c.theta + ts*wS)

	c.trace.Append("w_ref", wRef)
	c.trace.Append("w_s", wS)
	c.trace.Append("tau_est", tau)
	c.trace.Append("psi_est", psiAbs)
	c.trace.Append("i_abs", cmplx.Abs(is))

	return duty, ts
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
