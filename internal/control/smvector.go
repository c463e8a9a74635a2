package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/observer"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// SMVectorParams configures SMCurrentVectorControl for a synchronous
// machine with linear magnetics estimates.
type SMVectorParams struct {
	Rs   float64
	Ld   float64
	Lq   float64
	PsiF float64
	NP   int
	J    float64

	Ts         float64
	Sensorless bool

	IMax   float64
	TauMax float64 // 0 derives the MTPA limit at IMax

	SpeedRef func(t float64) float64
	RampRate float64

	AlphaC   float64 // current-control bandwidth; 0 selects 2*pi*200
	AlphaS   float64 // speed-control bandwidth; 0 selects 2*pi*4
	AlphaFW  float64 // field-weakening bandwidth; 0 selects 2*pi*20
	AlphaObs float64 // motion-observer flux bandwidth; 0 selects 2*pi*40
	ZetaObs  float64 // motion-observer speed-tracking factor; 0 selects 0.2
	SigmaMin float64 // motion-observer bandwidth floor
}

func (p *SMVectorParams) validate() error {
	switch {
	case p.Ts <= 0:
		return fmt.Errorf("sm vector control: Ts must be positive, got %g", p.Ts)
	case p.Ld <= 0 || p.Lq <= 0:
		return fmt.Errorf("sm vector control: Ld and Lq must be positive, got %g and %g", p.Ld, p.Lq)
	case p.NP < 1:
		return fmt.Errorf("sm vector control: NP must be at least 1, got %d", p.NP)
	case p.IMax <= 0:
		return fmt.Errorf("sm vector control: IMax must be positive, got %g", p.IMax)
	case p.J <= 0:
		return fmt.Errorf("sm vector control: J must be positive, got %g", p.J)
	case p.SpeedRef == nil:
		return fmt.Errorf("sm vector control: SpeedRef is required")
	}
	return nil
}

func (p *SMVectorParams) applyDefaults() {
	if p.AlphaC == 0 {
		p.AlphaC = 2 * math.Pi * 200
	}
	if p.AlphaS == 0 {
		p.AlphaS = 2 * math.Pi * 4
	}
	if p.AlphaFW == 0 {
		p.AlphaFW = 2 * math.Pi * 20
	}
	if p.AlphaObs == 0 {
		p.AlphaObs = 2 * math.Pi * 40
	}
	if p.ZetaObs == 0 {
		p.ZetaObs = 0.2
	}
	if p.TauMax == 0 {
		p.TauMax = maxTorque(p.Ld, p.Lq, p.PsiF, p.NP, p.IMax)
	}
}

// SMCurrentVectorControl is current-vector control of a synchronous
// machine in rotor coordinates. The speed loop produces a torque
// reference mapped through the MTPA locus to a current reference;
// field weakening shifts the d-current negative when the voltage
// reference saturates. Rotor position comes from the shaft sensor or,
// in sensorless mode, from a motion observer.
type SMCurrentVectorControl struct {
	par SMVectorParams

	motionObs *observer.MotionObserver
	currentPI *ComplexPIController
	speedPI   *PIController
	ramp      *RateLimiter

	fw    float64 // field-weakening d-current offset, <= 0
	trace *Trace
}

func NewSMCurrentVectorControl(par SMVectorParams) (*SMCurrentVectorControl, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	par.applyDefaults()

	// The current-loop design inductance splits the difference between
	// the two axes.
	l := 0.5 * (par.Ld + par.Lq)
	m := par.J / float64(par.NP)
	c := &SMCurrentVectorControl{
		par:       par,
		currentPI: NewComplexPIController(2*par.AlphaC*l, par.AlphaC*par.AlphaC*l, par.AlphaC*l),
		speedPI:   NewPIController(2*par.AlphaS*m, par.AlphaS*par.AlphaS*m, par.AlphaS*m),
		ramp:      NewRateLimiter(par.RampRate, 0),
		trace:     NewTrace(),
	}
	if par.Sensorless {
		c.motionObs = observer.NewMotionObserver(par.Rs,
			observer.LinearFluxLaw(par.Ld, par.Lq, par.PsiF),
			par.AlphaObs, par.ZetaObs, par.SigmaMin)
	}
	return c, nil
}

func (c *SMCurrentVectorControl) Trace() *Trace { return c.trace }

func (c *SMCurrentVectorControl) flux(i complex128) complex128 {
	return complex(c.par.Ld*real(i)+c.par.PsiF, c.par.Lq*imag(i))
}

func (c *SMCurrentVectorControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	par := &c.par
	ts := par.Ts
	np := float64(par.NP)

	// Feedback.
	var theta, wEl float64
	if par.Sensorless {
		theta = c.motionObs.Angle()
		wEl = c.motionObs.Speed()
	} else {
		theta = np * m.ThetaM
		wEl = np * m.WM
	}
	i := spacevec.Rotate(m.Is, -theta)
	psi := c.flux(i)

	// References.
	wRef := c.ramp.Step(ts, np*par.SpeedRef(t))
	tauRef := clamp(c.speedPI.Output(wRef, wEl), -par.TauMax, par.TauMax)
	iRef := mtpaCurrent(tauRef, par.Ld, par.Lq, par.PsiF, par.NP, par.IMax)
	iRef = c.applyFieldWeakening(iRef)
	tauRealized := 1.5 * np * imag(iRef*cmplx.Conj(c.flux(iRef)))

	// Output.
	ff := complex(0, wEl) * psi
	uRef := c.currentPI.Output(iRef, i, ff)
	uMax := m.UDC / math.Sqrt(3)
	uLim := limitMagnitude(uRef, uMax)
	usStator := spacevec.Rotate(uLim, theta)
	duty := spacevec.DutyRatios(usStator, m.UDC)

	// Update.
	c.currentPI.Update(ts, uLim)
	c.speedPI.Update(ts, tauRealized)
	if par.Sensorless {
		c.motionObs.Update(ts, usStator, m.Is)
	}
	kFW := par.AlphaFW * par.IMax / math.Max(uMax, 1)
	c.fw = math.Min(0, c.fw+ts*kFW*(uMax-cmplx.Abs(uRef)))

	c.trace.Append("w_ref", wRef/np)
	c.trace.Append("w_est", wEl/np)
	c.trace.Append("tau_ref", tauRef)
	c.trace.Append("i_d_ref", real(iRef))
	c.trace.Append("i_q_ref", imag(iRef))
	c.trace.Append("i_d", real(i))
	c.trace.Append("i_q", imag(i))
	c.trace.Append("u_d", real(uLim))
	c.trace.Append("u_q", imag(uLim))

	return duty, ts
}

// applyFieldWeakening shifts the d-axis current by the weakening offset
// and re-clips the result to the current circle, keeping the q-current
// sign.
func (c *SMCurrentVectorControl) applyFieldWeakening(i complex128) complex128 {
	if c.fw == 0 {
		return i
	}
	id := real(i) + c.fw
	id = math.Max(id, -c.par.IMax)
	iqMax := math.Sqrt(math.Max(0, c.par.IMax*c.par.IMax-id*id))
	return complex(id, clamp(imag(i), -iqMax, iqMax))
}
