package control

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emdrive/drivesim/internal/model"
	"github.com/emdrive/drivesim/internal/observer"
	"github.com/emdrive/drivesim/internal/spacevec"
)

// GridParams configures GridCurrentControl, a grid-following converter
// current controller.
type GridParams struct {
	L  float64 // converter-side filter inductance estimate
	R  float64 // series resistance estimate, may be zero
	Ts float64

	UGNom float64 // nominal grid voltage magnitude (peak, line-to-neutral)
	WGNom float64 // nominal grid angular frequency, for PLL seeding
	IMax  float64

	// CurrentRef is the current reference in grid-voltage coordinates
	// (real part active, imaginary part reactive).
	CurrentRef func(t float64) complex128

	AlphaC   float64 // current-control bandwidth; 0 selects 2*pi*400
	AlphaPLL float64 // PLL bandwidth; 0 selects 2*pi*20
}

func (p *GridParams) validate() error {
	switch {
	case p.Ts <= 0:
		return fmt.Errorf("grid control: Ts must be positive, got %g", p.Ts)
	case p.L <= 0:
		return fmt.Errorf("grid control: L must be positive, got %g", p.L)
	case p.UGNom <= 0:
		return fmt.Errorf("grid control: UGNom must be positive, got %g", p.UGNom)
	case p.IMax <= 0:
		return fmt.Errorf("grid control: IMax must be positive, got %g", p.IMax)
	case p.CurrentRef == nil:
		return fmt.Errorf("grid control: CurrentRef is required")
	}
	return nil
}

func (p *GridParams) applyDefaults() {
	if p.AlphaC == 0 {
		p.AlphaC = 2 * math.Pi * 400
	}
	if p.AlphaPLL == 0 {
		p.AlphaPLL = 2 * math.Pi * 20
	}
}

// GridCurrentControl regulates the converter current of a
// grid-connected converter in the synchronous frame tracked by a PLL.
// The current reference is clipped to the current limit; the voltage
// reference feeds forward the measured grid voltage and the inductive
// cross-coupling.
type GridCurrentControl struct {
	par GridParams

	pll       *observer.PLL
	currentPI *ComplexPIController
	trace     *Trace
}

func NewGridCurrentControl(par GridParams) (*GridCurrentControl, error) {
	if err := par.validate(); err != nil {
		return nil, err
	}
	par.applyDefaults()
	return &GridCurrentControl{
		par:       par,
		pll:       observer.NewPLL(par.AlphaPLL, par.UGNom, par.WGNom),
		currentPI: NewComplexPIController(2*par.AlphaC*par.L, par.AlphaC*par.AlphaC*par.L, par.AlphaC*par.L),
		trace:     NewTrace(),
	}, nil
}

func (c *GridCurrentControl) Trace() *Trace { return c.trace }

func (c *GridCurrentControl) Sample(t float64, m model.Measurement) ([3]float64, float64) {
	par := &c.par
	ts := par.Ts

	// Feedback in PLL coordinates.
	theta := c.pll.Angle()
	wg := c.pll.Frequency()
	i := spacevec.Rotate(m.Is, -theta)
	ug := spacevec.Rotate(m.UG, -theta)

	// Reference, clipped to the current limit.
	iRef := limitMagnitude(par.CurrentRef(t), par.IMax)

	// Output with grid-voltage and cross-coupling feedforward.
	ff := ug + complex(par.R, wg*par.L)*i
	uRef := c.currentPI.Output(iRef, i, ff)
	uLim := limitMagnitude(uRef, m.UDC/math.Sqrt(3))
	ucStator := spacevec.Rotate(uLim, theta)
	duty := spacevec.DutyRatios(ucStator, m.UDC)

	// Update.
	c.currentPI.Update(ts, uLim)
	c.pll.Update(ts, m.UG)

	c.trace.Append("w_g", wg)
	c.trace.Append("i_d_ref", real(iRef))
	c.trace.Append("i_q_ref", imag(iRef))
	c.trace.Append("i_d", real(i))
	c.trace.Append("i_q", imag(i))
	c.trace.Append("u_d", real(uLim))
	c.trace.Append("u_q", imag(uLim))
	c.trace.Append("u_g_abs", cmplx.Abs(m.UG))

	return duty, ts
}
