package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/observer"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// FluxVectorParams configures FluxVectorControl.
type FluxVectorParams struct {
	Rs   float64
	Ld   float64
	Lq   float64
	PsiF float64
	NP   int
	J    float64

	Ts         float64
	Sensorless bool

	PsiRef float64 // stator flux reference magnitude
	IMax   float64
	TauMax float64

	SpeedRef func(t float64) float64
	RampRate float64

	AlphaPsi float64 // flux-control bandwidth; 0 selects 2*pi*100
	AlphaTau float64 // torque-control bandwidth; 0 selects 2*pi*100
	AlphaS   float64 // speed-control bandwidth; 0 selects 2*pi*4
	AlphaObs float64
	ZetaObs  float64
	SigmaMin float64
}

func (p *FluxVectorParams) validate() error {
	switch {
	case p.Ts <= 0:
		return fmt.Errorf("flux vector control: Ts must be positive, got %g", p.Ts)
	case p.Ld <= 0 || p.Lq <= 0:
		return fmt.Errorf("flux vector control: Ld and Lq must be positive, got %g and %g", p.Ld, p.Lq)
	case p.NP < 1:
		return fmt.Errorf("flux vector control: NP must be at least 1, got %d", p.NP)
	case p.PsiRef <= 0:
		return fmt.Errorf("flux vector control: PsiRef must be positive, got %g", p.PsiRef)
	case p.IMax <= 0:
		return fmt.Errorf("flux vector control: IMax must be positive, got %g", p.IMax)
	case p.J <= 0:
		return fmt.Errorf("flux vector control: J must be positive, got %g", p.J)
	case p.SpeedRef == nil:
		return fmt.Errorf("flux vector control: SpeedRef is required")
	}
	return nil
}

func (p *FluxVectorParams) applyDefaults() {
	if p.AlphaPsi == 0 {
		p.AlphaPsi = 2 * math.Pi * 100
	}
	if p.AlphaTau == 0 {
		p.AlphaTau = 2 * math.Pi * 100
	}
	if p.AlphaS == 0 {
		p.AlphaS = 2 * math.Pi * 4
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

// FluxVectorControl controls the stator flux magnitude and the torque
// of a synchronous machine directly, by proportional feedback
// linearization of the flux dynamics: the voltage reference cancels
// the resistive drop and the rotational back-emf, then drives the flux
// error radially and the torque error tangentially. Compared to
// current-vector control this keeps authority in deep field weakening
// where the current loops lose their voltage margin.
type FluxVectorControl struct {
	par FluxVectorParams

	motionObs *observer.MotionObserver
	speedPI   *PIController
	ramp      *RateLimiter
	trace     *Trace
}

func NewFluxVectorControl(par FluxVectorParams) (*FluxVectorControl, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	par.applyDefaults()

	m := par.J / float64(par.NP)
	c := &FluxVectorControl{
		par:     par,
		speedPI: NewPIController(2*par.AlphaS*m, par.AlphaS*par.AlphaS*m, par.AlphaS*m),
		ramp:    NewRateLimiter(par.RampRate, 0),
		trace:   NewTrace(),
	}
	if par.Sensorless {
		c.motionObs = observer.NewMotionObserver(par.Rs,
			observer.LinearFluxLaw(par.Ld, par.Lq, par.PsiF),
			par.AlphaObs, par.ZetaObs, par.SigmaMin)
	}
	return c, nil
}

func (c *FluxVectorControl) Trace() *Trace { return c.trace }

func (c *FluxVectorControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	par := &c.par
	ts := par.Ts
	np := float64(par.NP)

	// Feedback. Flux is reconstructed from the current law; in
	// sensorless mode the observer's blended estimate is used directly.
	var theta, wEl float64
	var psi complex128
	if par.Sensorless {
		theta = c.motionObs.Angle()
		wEl = c.motionObs.Speed()
		psi = c.motionObs.Flux()
	} else {
		theta = np * m.ThetaM
		wEl = np * m.WM
		i := spacevec.Rotate(m.Is, -theta)
		psi = complex(par.Ld*real(i)+par.PsiF, par.Lq*imag(i))
	}
	i := spacevec.Rotate(m.Is, -theta)
	psiAbs := cmplx.Abs(psi)
	tau := 1.5 * np * imag(i*cmplx.Conj(psi))

	// References. The torque limit shrinks with flux so the implied
	// current stays inside the circle.
	wRef := c.ramp.Step(ts, np*par.SpeedRef(t))
	tauLim := math.Min(par.TauMax, 1.5*np*psiAbs*par.IMax)
	tauRef := clamp(c.speedPI.Output(wRef, wEl), -tauLim, tauLim)

	// Output: feedback linearization on flux magnitude and torque. The
	// torque channel degenerates gracefully at zero flux.
	psiDir := complex(1, 0)
	if psiAbs > 1e-9 {
		psiDir = psi / complex(psiAbs, 0)
	}
	uPsi := complex(par.AlphaPsi*(par.PsiRef-psiAbs), 0) * psiDir
	var uTau complex128
	if psiAbs > 0.1*par.PsiRef {
		uTau = complex(0, par.AlphaTau*(tauRef-tau)/(1.5*np*psiAbs)) * psiDir * complex(par.Lq, 0)
	}
	uRef := complex(par.Rs, 0)*i + complex(0, wEl)*psi + uPsi + uTau

	uMax := m.UDC / math.Sqrt(3)
	uLim := limitMagnitude(uRef, uMax)
	usStator := spacevec.Rotate(uLim, theta)
	duty := spacevec.DutyRatios(usStator, m.UDC)

	// Update.
	c.speedPI.Update(ts, tauRef)
	if par.Sensorless {
		c.motionObs.Update(ts, usStator, m.Is)
	}

	c.trace.Append("w_ref", wRef/np)
	c.trace.Append("w_est", wEl/np)
	c.trace.Append("tau_ref", tauRef)
	c.trace.Append("tau", tau)
	c.trace.Append("psi", psiAbs)
	c.trace.Append("u_d", real(uLim))
	c.trace.Append("u_q", imag(uLim))

	return duty, ts
}
